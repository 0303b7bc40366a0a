package protocol

import (
	"fmt"
	"strconv"
)

// Response is one server reply: an outcome status plus an opaque payload
// whose encoding depends on the request that produced it.
type Response struct {
	Status  Status
	Content string
}

// EncodeResponse serializes a response into a single envelope line.
func EncodeResponse(resp Response) string {
	return serialize(map[string]string{
		"responseCode":              strconv.Itoa(resp.Status.Code()),
		"serializedResponseContent": resp.Content,
	}, ResponseDelimiter)
}

// DecodeResponse parses an envelope line back into a response.
func DecodeResponse(line string) (Response, error) {
	fields := parse(line, ResponseDelimiter)
	raw, ok := fields["responseCode"]
	if !ok {
		return Response{}, fmt.Errorf("malformed response: missing responseCode")
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return Response{}, fmt.Errorf("malformed response code %q: %w", raw, err)
	}
	return Response{
		Status:  StatusFromCode(code),
		Content: fields["serializedResponseContent"],
	}, nil
}
