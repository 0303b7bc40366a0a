package storage

import (
	"time"

	"msghub/internal/model"
)

// UserRecord is the persisted account row. The password lives only here,
// as a bcrypt hash; it never crosses into the wire model.
type UserRecord struct {
	ID        uint   `gorm:"primaryKey;column:user_id"`
	Username  string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"column:password_hash;not null"`
	Name      string
	Surname   string
	Birthdate string
	Gender    string
	Email     string
	Location  string
	IsAdmin   bool `gorm:"column:is_admin"`
}

func (UserRecord) TableName() string {
	return "users"
}

// MessageRecord is the persisted message row. Sender and receiver are stored
// by user id so account removal can reassign history in two updates.
type MessageRecord struct {
	ID         uint      `gorm:"primaryKey;column:message_id"`
	SenderID   uint      `gorm:"not null;index:idx_messages_sender_id"`
	ReceiverID uint      `gorm:"not null;index:idx_messages_receiver_id"`
	Title      string    `gorm:"not null"`
	Content    string    `gorm:"not null"`
	Time       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (MessageRecord) TableName() string {
	return "messages"
}

func (r *UserRecord) toModel() model.User {
	return model.User{
		Username:  r.Username,
		Name:      r.Name,
		Surname:   r.Surname,
		Birthdate: r.Birthdate,
		Gender:    r.Gender,
		Email:     r.Email,
		Location:  r.Location,
		IsAdmin:   r.IsAdmin,
	}
}

func recordFromUser(u model.User, passwordHash string) UserRecord {
	return UserRecord{
		Username:  u.Username,
		Password:  passwordHash,
		Name:      u.Name,
		Surname:   u.Surname,
		Birthdate: u.Birthdate,
		Gender:    u.Gender,
		Email:     u.Email,
		Location:  u.Location,
		IsAdmin:   u.IsAdmin,
	}
}
