package protocol

import "fmt"

// Status is the closed set of response outcomes. Each value carries a stable
// numeric wire code and a human message.
type Status int

const (
	StatusSuccess Status = iota
	StatusLoginFailed
	StatusLogoutFailed
	StatusUnauthorized
	StatusNotFound
	StatusInvalidFields
	StatusUsernameTaken
	StatusAccountRemoved
	StatusError
	StatusExit
)

// statusInfo pairs a wire code with its message. StatusAccountRemoved and
// StatusError share code 503 on purpose: the original protocol assigned both
// the same number, and peers in the field decode 503 as account-removed.
// Changing either number would be a wire-format break.
var statusInfo = map[Status]struct {
	code    int
	message string
}{
	StatusSuccess:        {200, "success"},
	StatusLoginFailed:    {201, "login failed"},
	StatusLogoutFailed:   {301, "logout failed"},
	StatusUnauthorized:   {401, "unauthorized"},
	StatusNotFound:       {404, "not found"},
	StatusInvalidFields:  {501, "invalid field values"},
	StatusUsernameTaken:  {502, "username already exists"},
	StatusAccountRemoved: {503, "removed account"},
	StatusError:          {503, "error"},
	StatusExit:           {601, "exit"},
}

// Code returns the numeric wire value of the status.
func (s Status) Code() int {
	if info, ok := statusInfo[s]; ok {
		return info.code
	}
	return statusInfo[StatusError].code
}

// Message returns the human-readable label of the status.
func (s Status) Message() string {
	if info, ok := statusInfo[s]; ok {
		return info.message
	}
	return statusInfo[StatusError].message
}

func (s Status) String() string {
	return fmt.Sprintf("%d %s", s.Code(), s.Message())
}

// statusOrder is the decode precedence: 503 resolves to StatusAccountRemoved
// because it is declared before StatusError, matching the original decoder.
var statusOrder = []Status{
	StatusSuccess,
	StatusLoginFailed,
	StatusLogoutFailed,
	StatusUnauthorized,
	StatusNotFound,
	StatusInvalidFields,
	StatusUsernameTaken,
	StatusAccountRemoved,
	StatusError,
	StatusExit,
}

// StatusFromCode maps a wire code back to a Status. Unknown codes map to
// StatusError rather than failing, so a peer speaking a newer revision
// degrades to a generic failure instead of killing the connection.
func StatusFromCode(code int) Status {
	for _, s := range statusOrder {
		if statusInfo[s].code == code {
			return s
		}
	}
	return StatusError
}
