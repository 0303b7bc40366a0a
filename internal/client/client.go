// Package client is the Go-side counterpart of the TCP protocol: one
// persistent connection, strictly sequential request/response exchanges.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"msghub/internal/model"
	"msghub/internal/protocol"
)

// ErrReservedDelimiter is returned before anything is sent when a free-text
// field contains one of the protocol's structural tokens. Sending such a
// value would desynchronize the stream, so it is refused locally.
var ErrReservedDelimiter = errors.New("field contains a reserved delimiter token")

// Client is a synchronous protocol client over one TCP connection. It is not
// safe for concurrent use; the protocol itself is one-request-at-a-time per
// connection.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
}

// Dial connects to a server.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
	}, nil
}

// Close shuts the connection down. The server observes end-of-stream and
// tears down the session, if any.
func (c *Client) Close() error {
	return c.conn.Close()
}

// roundTrip sends one request line and blocks for the single response line.
func (c *Client) roundTrip(req protocol.Request) (protocol.Response, error) {
	if _, err := c.writer.WriteString(protocol.EncodeRequest(req)); err != nil {
		return protocol.Response{}, err
	}
	if err := c.writer.WriteByte('\n'); err != nil {
		return protocol.Response{}, err
	}
	if err := c.writer.Flush(); err != nil {
		return protocol.Response{}, err
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.DecodeResponse(strings.TrimRight(line, "\r\n"))
}

// checkFields refuses any value carrying a reserved delimiter token.
func checkFields(values ...string) error {
	for _, v := range values {
		if protocol.ContainsReservedDelimiter(v) {
			return ErrReservedDelimiter
		}
	}
	return nil
}

// Login authenticates and returns the account record on success. Non-success
// statuses are not errors; the caller inspects the status.
func (c *Client) Login(username, password string) (*model.User, protocol.Status, error) {
	if err := checkFields(username, password); err != nil {
		return nil, protocol.StatusInvalidFields, err
	}

	resp, err := c.roundTrip(protocol.Request{
		Action: protocol.ActionLogin,
		Content: protocol.EncodeContent(map[string]string{
			"username": username,
			"password": password,
		}),
	})
	if err != nil {
		return nil, protocol.StatusError, err
	}
	if resp.Status != protocol.StatusSuccess {
		return nil, resp.Status, nil
	}
	u := protocol.DecodeUser(resp.Content)
	return &u, resp.Status, nil
}

// Logout clears the server-side session binding.
func (c *Client) Logout() (protocol.Status, error) {
	resp, err := c.roundTrip(protocol.Request{Action: protocol.ActionLogout})
	if err != nil {
		return protocol.StatusError, err
	}
	return resp.Status, nil
}

// Inbox fetches the most recent messages addressed to the logged-in user,
// newest first.
func (c *Client) Inbox() ([]model.Message, protocol.Status, error) {
	return c.box(protocol.ActionInbox)
}

// Outbox fetches the most recent messages sent by the logged-in user, newest
// first.
func (c *Client) Outbox() ([]model.Message, protocol.Status, error) {
	return c.box(protocol.ActionOutbox)
}

func (c *Client) box(action string) ([]model.Message, protocol.Status, error) {
	resp, err := c.roundTrip(protocol.Request{Action: action})
	if err != nil {
		return nil, protocol.StatusError, err
	}
	if resp.Status != protocol.StatusSuccess {
		return nil, resp.Status, nil
	}
	return protocol.DecodeMessageList(resp.Content), resp.Status, nil
}

// SendMessage delivers one message. Sender defaults to the logged-in user on
// the server side; time defaults to now when empty.
func (c *Client) SendMessage(sender, receiver, title, content string) (protocol.Status, error) {
	if err := checkFields(sender, receiver, title, content); err != nil {
		return protocol.StatusInvalidFields, err
	}

	resp, err := c.roundTrip(protocol.Request{
		Action: protocol.ActionSendMessage,
		Content: protocol.EncodeContent(map[string]string{
			"sender":   sender,
			"receiver": receiver,
			"title":    title,
			"content":  content,
			"time":     model.Now(),
		}),
	})
	if err != nil {
		return protocol.StatusError, err
	}
	return resp.Status, nil
}

// userFields flattens an account record plus password into a request payload.
func userFields(u model.User, password string) map[string]string {
	return map[string]string{
		"username":  u.Username,
		"password":  password,
		"name":      u.Name,
		"surname":   u.Surname,
		"birthdate": u.Birthdate,
		"gender":    u.Gender,
		"email":     u.Email,
		"location":  u.Location,
		"isAdmin":   strconv.FormatBool(u.IsAdmin),
	}
}

func checkUserFields(u model.User, password string) error {
	return checkFields(u.Username, password, u.Name, u.Surname, u.Birthdate,
		u.Gender, u.Email, u.Location)
}

// AddUser registers a new account. Requires an admin session.
func (c *Client) AddUser(u model.User, password string) (protocol.Status, error) {
	if err := checkUserFields(u, password); err != nil {
		return protocol.StatusInvalidFields, err
	}

	resp, err := c.roundTrip(protocol.Request{
		Action:  protocol.ActionAddUser,
		Content: protocol.EncodeContent(userFields(u, password)),
	})
	if err != nil {
		return protocol.StatusError, err
	}
	return resp.Status, nil
}

// UpdateUser replaces the account stored under username with u, possibly
// renaming it. Requires an admin session.
func (c *Client) UpdateUser(username string, u model.User, password string) (protocol.Status, error) {
	if err := checkUserFields(u, password); err != nil {
		return protocol.StatusInvalidFields, err
	}
	if protocol.ContainsReservedDelimiter(username) {
		return protocol.StatusInvalidFields, ErrReservedDelimiter
	}

	fields := userFields(u, password)
	fields["newUsername"] = u.Username
	fields["username"] = username
	resp, err := c.roundTrip(protocol.Request{
		Action:  protocol.ActionUpdateUser,
		Content: protocol.EncodeContent(fields),
	})
	if err != nil {
		return protocol.StatusError, err
	}
	return resp.Status, nil
}

// RemoveUser deletes an account. Requires an admin session; a live session
// under that username is forcibly disconnected by the server.
func (c *Client) RemoveUser(username string) (protocol.Status, error) {
	if protocol.ContainsReservedDelimiter(username) {
		return protocol.StatusInvalidFields, ErrReservedDelimiter
	}

	resp, err := c.roundTrip(protocol.Request{
		Action:  protocol.ActionRemoveUser,
		Content: protocol.EncodeContent(map[string]string{"username": username}),
	})
	if err != nil {
		return protocol.StatusError, err
	}
	return resp.Status, nil
}

// ListUsers fetches every account. Requires an admin session.
func (c *Client) ListUsers() ([]model.User, protocol.Status, error) {
	resp, err := c.roundTrip(protocol.Request{Action: protocol.ActionListUsers})
	if err != nil {
		return nil, protocol.StatusError, err
	}
	if resp.Status != protocol.StatusSuccess {
		return nil, resp.Status, nil
	}
	return protocol.DecodeUserList(resp.Content), resp.Status, nil
}

// AwaitNotice blocks until the server pushes a line outside a request
// exchange. The only such push is the account-removed notice that precedes
// a forced disconnect.
func (c *Client) AwaitNotice() (protocol.Response, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.DecodeResponse(strings.TrimRight(line, "\r\n"))
}
