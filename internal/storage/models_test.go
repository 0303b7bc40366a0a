package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"msghub/internal/model"
)

func TestRecordModelRoundTrip(t *testing.T) {
	u := model.User{
		Username:  "alice",
		Name:      "Alice",
		Surname:   "Nilsen",
		Birthdate: "1991-03-14",
		Gender:    "F",
		Email:     "alice@example.com",
		Location:  "Bergen",
		IsAdmin:   true,
	}

	rec := recordFromUser(u, "hash-goes-here")
	assert.Equal(t, "hash-goes-here", rec.Password)
	assert.Equal(t, u, rec.toModel())
}

func TestIsReserved(t *testing.T) {
	assert.True(t, isReserved(DeletedUsername))
	assert.True(t, isReserved(AdminUsername))
	assert.False(t, isReserved("alice"))
	assert.False(t, isReserved(""))
}
