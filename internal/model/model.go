package model

import "time"

// TimeLayout is the timestamp format carried inside message records on the
// wire. It matches what the database hands back for the `time` column.
const TimeLayout = "2006-01-02 15:04:05"

// User is the wire-level account record. The password never appears here;
// it only travels inside request payloads and is stored hashed.
type User struct {
	Username  string `json:"username"`
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	Birthdate string `json:"birthdate"`
	Gender    string `json:"gender"`
	Email     string `json:"email"`
	Location  string `json:"location"`
	IsAdmin   bool   `json:"is_admin"`
}

// Message is the wire-level message record. Sender and receiver are embedded
// as full user records so the client can render names without extra lookups.
type Message struct {
	Sender   User   `json:"sender"`
	Receiver User   `json:"receiver"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Time     string `json:"time"`
}

// Now returns the current time formatted for a message record.
func Now() string {
	return time.Now().Format(TimeLayout)
}
