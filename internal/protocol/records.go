package protocol

import (
	"strconv"
	"strings"

	"msghub/internal/model"
)

// EncodeUser serializes an account record. Passwords are not part of the
// wire model, so they can never leak through here.
func EncodeUser(u model.User) string {
	return serialize(map[string]string{
		"username":  u.Username,
		"name":      u.Name,
		"surname":   u.Surname,
		"birthdate": u.Birthdate,
		"gender":    u.Gender,
		"email":     u.Email,
		"location":  u.Location,
		"isAdmin":   strconv.FormatBool(u.IsAdmin),
	}, UserFieldDelimiter)
}

// DecodeUser parses a serialized account record. Missing fields come back
// empty; a missing or unparsable isAdmin decodes as false.
func DecodeUser(s string) model.User {
	fields := parse(s, UserFieldDelimiter)
	isAdmin, _ := strconv.ParseBool(fields["isAdmin"])
	return model.User{
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

// EncodeMessage serializes a message record. Sender and receiver travel as
// nested user encodings; the nesting is safe because the user delimiter is
// distinct from the message delimiter.
func EncodeMessage(m model.Message) string {
	return serialize(map[string]string{
		"sender":   EncodeUser(m.Sender),
		"receiver": EncodeUser(m.Receiver),
		"title":    m.Title,
		"content":  m.Content,
		"time":     m.Time,
	}, MessageFieldDelimiter)
}

// DecodeMessage parses a serialized message record.
func DecodeMessage(s string) model.Message {
	fields := parse(s, MessageFieldDelimiter)
	return model.Message{
		Sender:   DecodeUser(fields["sender"]),
		Receiver: DecodeUser(fields["receiver"]),
		Title:    fields["title"],
		Content:  fields["content"],
		Time:     fields["time"],
	}
}

// EncodeMessageList serializes messages in order, joined by the line
// delimiter. An empty list serializes to the empty string.
func EncodeMessageList(messages []model.Message) string {
	if len(messages) == 0 {
		return ""
	}
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = EncodeMessage(m)
	}
	return strings.Join(parts, LineDelimiter)
}

// DecodeMessageList parses a serialized message list, preserving order.
func DecodeMessageList(s string) []model.Message {
	if s == "" {
		return []model.Message{}
	}
	lines := strings.Split(s, LineDelimiter)
	messages := make([]model.Message, len(lines))
	for i, line := range lines {
		messages[i] = DecodeMessage(line)
	}
	return messages
}

// EncodeUserList serializes accounts in order, joined by the line delimiter.
func EncodeUserList(users []model.User) string {
	if len(users) == 0 {
		return ""
	}
	parts := make([]string, len(users))
	for i, u := range users {
		parts[i] = EncodeUser(u)
	}
	return strings.Join(parts, LineDelimiter)
}

// DecodeUserList parses a serialized account list, preserving order.
func DecodeUserList(s string) []model.User {
	if s == "" {
		return []model.User{}
	}
	lines := strings.Split(s, LineDelimiter)
	users := make([]model.User, len(lines))
	for i, line := range lines {
		users[i] = DecodeUser(line)
	}
	return users
}
