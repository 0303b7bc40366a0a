package tcp

import (
	"errors"
	"strconv"

	"msghub/internal/model"
	"msghub/internal/protocol"
	"msghub/internal/storage"
)

// userFromFields assembles an account record from a request payload. Missing
// keys come back as empty strings, matching the decode side of the codec.
func userFromFields(fields map[string]string) *model.User {
	isAdmin, _ := strconv.ParseBool(fields["isAdmin"])
	return &model.User{
		Username:  fields["username"],
		Name:      fields["name"],
		Surname:   fields["surname"],
		Birthdate: fields["birthdate"],
		Gender:    fields["gender"],
		Email:     fields["email"],
		Location:  fields["location"],
		IsAdmin:   isAdmin,
	}
}

// requireAdmin gates the account-management actions on the bound user's
// admin flag. An unbound connection is unauthorized too.
func requireAdmin(c *ClientConnection) protocol.Status {
	u := c.User()
	if u == nil || !u.IsAdmin {
		return protocol.StatusUnauthorized
	}
	return protocol.StatusSuccess
}

// --- LOGIN ---

func (d *Dispatcher) validateLogin(c *ClientConnection, fields map[string]string) protocol.Status {
	username := fields["username"]
	password := fields["password"]
	if username == "" || password == "" {
		return protocol.StatusInvalidFields
	}

	exists, err := d.store.UserExists(username)
	if err != nil {
		return protocol.StatusError
	}
	if !exists {
		return protocol.StatusNotFound
	}

	ok, err := d.store.Authenticate(username, password)
	if err != nil {
		return protocol.StatusError
	}
	if !ok {
		return protocol.StatusLoginFailed
	}
	return protocol.StatusSuccess
}

func (d *Dispatcher) executeLogin(c *ClientConnection, fields map[string]string) (string, protocol.Status) {
	u, err := d.store.GetUser(fields["username"])
	if err != nil {
		return "", protocol.StatusError
	}
	c.Bind(u)
	d.logger.Info("user_logged_in",
		"username", u.Username,
		"client_id", c.ID,
	)
	return protocol.EncodeUser(*u), protocol.StatusSuccess
}

// --- LOGOUT ---

func (d *Dispatcher) validateLogout(c *ClientConnection, fields map[string]string) protocol.Status {
	if c.User() == nil {
		return protocol.StatusLogoutFailed
	}
	return protocol.StatusSuccess
}

func (d *Dispatcher) executeLogout(c *ClientConnection, fields map[string]string) (string, protocol.Status) {
	u := c.User()
	c.Unbind()
	d.logger.Info("user_logged_out",
		"username", u.Username,
		"client_id", c.ID,
	)
	return "", protocol.StatusSuccess
}

// --- INBOX / OUTBOX ---

func (d *Dispatcher) validateBox(c *ClientConnection, fields map[string]string) protocol.Status {
	if c.User() == nil {
		return protocol.StatusError
	}
	return protocol.StatusSuccess
}

func (d *Dispatcher) executeInbox(c *ClientConnection, fields map[string]string) (string, protocol.Status) {
	messages, err := d.store.InboxOf(c.User().Username)
	if err != nil {
		return "", protocol.StatusError
	}
	return protocol.EncodeMessageList(messages), protocol.StatusSuccess
}

func (d *Dispatcher) executeOutbox(c *ClientConnection, fields map[string]string) (string, protocol.Status) {
	messages, err := d.store.OutboxOf(c.User().Username)
	if err != nil {
		return "", protocol.StatusError
	}
	return protocol.EncodeMessageList(messages), protocol.StatusSuccess
}

// --- SEND_MESSAGE ---

func (d *Dispatcher) validateSendMessage(c *ClientConnection, fields map[string]string) protocol.Status {
	// A logged-in sender is always the bound user, whatever the payload
	// claims.
	if u := c.User(); u != nil {
		fields["sender"] = u.Username
	}

	if fields["sender"] == "" || fields["receiver"] == "" {
		return protocol.StatusInvalidFields
	}
	if fields["title"] == "" && fields["content"] == "" {
		return protocol.StatusInvalidFields
	}
	for _, key := range []string{"sender", "receiver", "title", "content", "time"} {
		if protocol.ContainsReservedDelimiter(fields[key]) {
			return protocol.StatusInvalidFields
		}
	}

	for _, username := range []string{fields["sender"], fields["receiver"]} {
		exists, err := d.store.UserExists(username)
		if err != nil {
			return protocol.StatusError
		}
		if !exists {
			return protocol.StatusNotFound
		}
	}
	return protocol.StatusSuccess
}

func (d *Dispatcher) executeSendMessage(c *ClientConnection, fields map[string]string) (string, protocol.Status) {
	sender, err := d.store.GetUser(fields["sender"])
	if err != nil {
		return "", protocol.StatusError
	}
	receiver, err := d.store.GetUser(fields["receiver"])
	if err != nil {
		return "", protocol.StatusError
	}

	ts := fields["time"]
	if ts == "" {
		ts = model.Now()
	}
	msg := model.Message{
		Sender:   *sender,
		Receiver: *receiver,
		Title:    fields["title"],
		Content:  fields["content"],
		Time:     ts,
	}
	if err := d.store.InsertMessage(&msg); err != nil {
		d.logger.Error("message_insert_failed",
			"sender", sender.Username,
			"receiver", receiver.Username,
			"error", err.Error(),
		)
		return "", protocol.StatusError
	}
	return "", protocol.StatusSuccess
}

// --- ADD_USER ---

func (d *Dispatcher) validateAddUser(c *ClientConnection, fields map[string]string) protocol.Status {
	if status := requireAdmin(c); status != protocol.StatusSuccess {
		return status
	}
	if fields["username"] == "" || fields["password"] == "" {
		return protocol.StatusInvalidFields
	}

	exists, err := d.store.UserExists(fields["username"])
	if err != nil {
		return protocol.StatusError
	}
	if exists {
		return protocol.StatusUsernameTaken
	}
	return protocol.StatusSuccess
}

func (d *Dispatcher) executeAddUser(c *ClientConnection, fields map[string]string) (string, protocol.Status) {
	u := userFromFields(fields)
	if err := d.store.InsertUser(u, fields["password"]); err != nil {
		return "", protocol.StatusError
	}
	d.logger.Info("user_added", "username", u.Username)
	return "", protocol.StatusSuccess
}

// --- UPDATE_USER ---

func (d *Dispatcher) validateUpdateUser(c *ClientConnection, fields map[string]string) protocol.Status {
	if status := requireAdmin(c); status != protocol.StatusSuccess {
		return status
	}
	username := fields["username"]
	if username == "" {
		return protocol.StatusInvalidFields
	}

	exists, err := d.store.UserExists(username)
	if err != nil {
		return protocol.StatusError
	}
	if !exists {
		return protocol.StatusNotFound
	}

	if newUsername := fields["newUsername"]; newUsername != "" && newUsername != username {
		taken, err := d.store.UserExists(newUsername)
		if err != nil {
			return protocol.StatusError
		}
		if taken {
			return protocol.StatusUsernameTaken
		}
	}
	return protocol.StatusSuccess
}

func (d *Dispatcher) executeUpdateUser(c *ClientConnection, fields map[string]string) (string, protocol.Status) {
	u := userFromFields(fields)
	if newUsername := fields["newUsername"]; newUsername != "" {
		u.Username = newUsername
	}
	if err := d.store.UpdateUser(fields["username"], u, fields["password"]); err != nil {
		return "", protocol.StatusError
	}
	d.logger.Info("user_updated",
		"username", fields["username"],
		"new_username", u.Username,
	)
	return "", protocol.StatusSuccess
}

// --- REMOVE_USER ---

func (d *Dispatcher) validateRemoveUser(c *ClientConnection, fields map[string]string) protocol.Status {
	if status := requireAdmin(c); status != protocol.StatusSuccess {
		return status
	}
	username := fields["username"]
	if username == "" {
		return protocol.StatusInvalidFields
	}

	exists, err := d.store.UserExists(username)
	if err != nil {
		return protocol.StatusError
	}
	if !exists {
		return protocol.StatusNotFound
	}
	return protocol.StatusSuccess
}

func (d *Dispatcher) executeRemoveUser(c *ClientConnection, fields map[string]string) (string, protocol.Status) {
	username := fields["username"]
	if err := d.store.RemoveUser(username); err != nil {
		if errors.Is(err, storage.ErrReservedUsername) {
			return "", protocol.StatusUnauthorized
		}
		return "", protocol.StatusError
	}

	evicted := d.evictor.Evict(username)
	d.logger.Info("user_removed",
		"username", username,
		"session_evicted", evicted,
	)
	return "", protocol.StatusSuccess
}

// --- LIST_USERS ---

func (d *Dispatcher) validateListUsers(c *ClientConnection, fields map[string]string) protocol.Status {
	return requireAdmin(c)
}

func (d *Dispatcher) executeListUsers(c *ClientConnection, fields map[string]string) (string, protocol.Status) {
	users, err := d.store.ListUsers()
	if err != nil {
		return "", protocol.StatusError
	}
	return protocol.EncodeUserList(users), protocol.StatusSuccess
}
