// Package storage persists accounts and messages in Postgres through GORM,
// with an optional Redis read-through cache for the inbox/outbox queries.
package storage

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"msghub/internal/auth"
	"msghub/internal/model"
)

// Reserved usernames. deleted_user inherits the message history of removed
// accounts; admin_user is the bootstrap administrator. Neither can be
// updated or removed.
const (
	DeletedUsername = "deleted_user"
	AdminUsername   = "admin_user"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrReservedUsername = errors.New("username is reserved")
)

// Store is the persistence collaborator consumed by the dispatcher. All
// methods are safe for concurrent use from many connection goroutines; the
// underlying database serializes conflicting writes.
type Store interface {
	UserExists(username string) (bool, error)
	GetUser(username string) (*model.User, error)
	GetUserByID(id uint) (*model.User, error)
	InsertUser(u *model.User, password string) error
	UpdateUser(oldUsername string, u *model.User, password string) error
	RemoveUser(username string) error
	Authenticate(username, password string) (bool, error)
	InsertMessage(m *model.Message) error
	InboxOf(username string) ([]model.Message, error)
	OutboxOf(username string) ([]model.Message, error)
	ListUsers() ([]model.User, error)
}

// GormStore is the Postgres implementation of Store.
type GormStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to Postgres, migrates the schema and seeds the reserved
// accounts. A failure here is fatal to server startup.
func Open(dsn string, logger *slog.Logger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&UserRecord{}, &MessageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	s := &GormStore{db: db, logger: logger}
	if err := s.seedReservedUsers(); err != nil {
		return nil, fmt.Errorf("failed to seed reserved users: %w", err)
	}

	logger.Info("connected_to_database")
	return s, nil
}

// seedReservedUsers inserts deleted_user and admin_user when missing, so a
// fresh database is immediately usable and removals always have a
// reassignment target.
func (s *GormStore) seedReservedUsers() error {
	seeds := []struct {
		user     model.User
		password string
	}{
		{
			user: model.User{
				Username: DeletedUsername, Name: "deleted", Surname: "deleted",
				Birthdate: "1900-01-01", Gender: "O", Email: "deleted@example.com",
				Location: "deleted", IsAdmin: false,
			},
			password: "deleted",
		},
		{
			user: model.User{
				Username: AdminUsername, Name: "admin", Surname: "admin",
				Birthdate: "1900-01-01", Gender: "O", Email: "admin@example.com",
				Location: "admin", IsAdmin: true,
			},
			password: "admin",
		},
	}

	for _, seed := range seeds {
		exists, err := s.UserExists(seed.user.Username)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := s.InsertUser(&seed.user, seed.password); err != nil {
			return err
		}
		s.logger.Info("reserved_user_seeded", "username", seed.user.Username)
	}
	return nil
}

// Close releases the underlying database connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Authenticate verifies a username/password pair against the stored bcrypt
// hash. A missing user is an error, not a mismatch; the login handler checks
// existence before calling this.
func (s *GormStore) Authenticate(username, password string) (bool, error) {
	rec, err := s.getRecord(username)
	if err != nil {
		return false, err
	}
	if err := auth.VerifyPassword(rec.Password, password); err != nil {
		return false, nil
	}
	return true, nil
}
