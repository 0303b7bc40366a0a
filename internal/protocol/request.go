package protocol

import "errors"

// Action names accepted by the dispatcher.
const (
	ActionLogin       = "LOGIN"
	ActionLogout      = "LOGOUT"
	ActionInbox       = "INBOX"
	ActionOutbox      = "OUTBOX"
	ActionSendMessage = "SEND_MESSAGE"
	ActionAddUser     = "ADD_USER"
	ActionUpdateUser  = "UPDATE_USER"
	ActionRemoveUser  = "REMOVE_USER"
	ActionListUsers   = "LIST_USERS"
)

// ErrMalformedRequest is returned when a line cannot be decoded into a
// request envelope at all. The connection loop treats it as fatal.
var ErrMalformedRequest = errors.New("malformed request: missing action")

// Request is one client request: an action name plus an opaque,
// already-encoded payload specific to that action. Immutable once built.
type Request struct {
	Action  string
	Content string
}

// EncodeRequest serializes a request into a single envelope line.
func EncodeRequest(req Request) string {
	return serialize(map[string]string{
		"action":                   req.Action,
		"serializedRequestContent": req.Content,
	}, RequestDelimiter)
}

// DecodeRequest parses an envelope line. A line without an action field is
// undecodable; a present-but-unknown action is the dispatcher's problem.
func DecodeRequest(line string) (Request, error) {
	fields := parse(line, RequestDelimiter)
	action, ok := fields["action"]
	if !ok || action == "" {
		return Request{}, ErrMalformedRequest
	}
	return Request{
		Action:  action,
		Content: fields["serializedRequestContent"],
	}, nil
}
