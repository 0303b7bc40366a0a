// Package protocol implements the line-oriented wire format shared by the
// server and the client: layered multi-character delimiters, request and
// response envelopes, record encodings and the reserved-token check that
// keeps user-supplied text from desynchronizing the stream.
package protocol

import "strings"

// Delimiters for the network protocol, outermost layer first. Each token is
// multi-character so it is vanishingly unlikely to show up in real input,
// and every free-text field is still checked against all of them before a
// record is built (see ContainsReservedDelimiter).
const (
	LineDelimiter           = "__LINE__"       // separates records inside a serialized list
	RequestDelimiter        = "__REQ__"        // separates the top-level fields of a request
	RequestContentDelimiter = "__REQCONTENT__" // separates fields inside a request payload
	ResponseDelimiter       = "__RESP__"       // separates the top-level fields of a response
	UserFieldDelimiter      = "__USER__"       // separates fields inside a serialized user
	MessageFieldDelimiter   = "__MESG__"       // separates fields inside a serialized message
	KeyValueDelimiter       = "__KV__"         // separates a key from its value
)

// reservedDelimiters is every structural token, in layering order.
var reservedDelimiters = []string{
	LineDelimiter,
	RequestDelimiter,
	RequestContentDelimiter,
	ResponseDelimiter,
	UserFieldDelimiter,
	MessageFieldDelimiter,
	KeyValueDelimiter,
}

// ReservedDelimiters returns a copy of the protocol's structural tokens.
func ReservedDelimiters() []string {
	out := make([]string, len(reservedDelimiters))
	copy(out, reservedDelimiters)
	return out
}

// ContainsReservedDelimiter reports whether s contains any structural token.
// Producers must reject such values before serialization; the codec itself
// does not re-check.
func ContainsReservedDelimiter(s string) bool {
	for _, token := range reservedDelimiters {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

// serialize joins a field-map into key__KV__value pairs separated by delim.
// Field order is map order; parsing never depends on it. Empty or nil maps
// serialize to the empty string.
func serialize(fields map[string]string, delim string) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for key, value := range fields {
		parts = append(parts, key+KeyValueDelimiter+value)
	}
	return strings.Join(parts, delim)
}

// parse is the inverse of serialize. Each part is split on the key/value
// token at most once, so values may legally be empty; parts without the
// token are silently dropped. "" parses to an empty map.
func parse(s, delim string) map[string]string {
	fields := make(map[string]string)
	if s == "" {
		return fields
	}
	for _, part := range strings.Split(s, delim) {
		kv := strings.SplitN(part, KeyValueDelimiter, 2)
		if len(kv) == 2 {
			fields[kv[0]] = kv[1]
		}
	}
	return fields
}

// EncodeContent serializes a request payload field-map with the content
// delimiter.
func EncodeContent(fields map[string]string) string {
	return serialize(fields, RequestContentDelimiter)
}

// ParseContent parses a request payload back into a field-map.
func ParseContent(s string) map[string]string {
	return parse(s, RequestContentDelimiter)
}
