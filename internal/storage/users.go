package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"msghub/internal/auth"
	"msghub/internal/model"
)

func (s *GormStore) getRecord(username string) (*UserRecord, error) {
	var rec UserRecord
	if err := s.db.Where("username = ?", username).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) getRecordByID(id uint) (*UserRecord, error) {
	var rec UserRecord
	if err := s.db.First(&rec, "user_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) UserExists(username string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserRecord{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) GetUser(username string) (*model.User, error) {
	rec, err := s.getRecord(username)
	if err != nil {
		return nil, err
	}
	u := rec.toModel()
	return &u, nil
}

func (s *GormStore) GetUserByID(id uint) (*model.User, error) {
	rec, err := s.getRecordByID(id)
	if err != nil {
		return nil, err
	}
	u := rec.toModel()
	return &u, nil
}

func (s *GormStore) InsertUser(u *model.User, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	rec := recordFromUser(*u, hash)
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	s.logger.Info("user_inserted", "username", u.Username)
	return nil
}

// UpdateUser replaces the record stored under oldUsername, possibly renaming
// it. Reserved accounts are refused on both sides of the rename.
func (s *GormStore) UpdateUser(oldUsername string, u *model.User, password string) error {
	if isReserved(oldUsername) || isReserved(u.Username) {
		return ErrReservedUsername
	}

	if _, err := s.getRecord(oldUsername); err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// Map form so cleared fields and is_admin=false actually persist.
	updates := map[string]any{
		"username":      u.Username,
		"password_hash": hash,
		"name":          u.Name,
		"surname":       u.Surname,
		"birthdate":     u.Birthdate,
		"gender":        u.Gender,
		"email":         u.Email,
		"location":      u.Location,
		"is_admin":      u.IsAdmin,
	}
	if err := s.db.Model(&UserRecord{}).Where("username = ?", oldUsername).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.Info("user_updated", "username", oldUsername, "new_username", u.Username)
	return nil
}

// RemoveUser deletes an account and reassigns its message history to the
// deleted_user placeholder, atomically.
func (s *GormStore) RemoveUser(username string) error {
	if isReserved(username) {
		return ErrReservedUsername
	}

	target, err := s.getRecord(username)
	if err != nil {
		return err
	}
	placeholder, err := s.getRecord(DeletedUsername)
	if err != nil {
		return fmt.Errorf("placeholder account missing: %w", err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&MessageRecord{}).Where("sender_id = ?", target.ID).
			Update("sender_id", placeholder.ID).Error; err != nil {
			return err
		}
		if err := tx.Model(&MessageRecord{}).Where("receiver_id = ?", target.ID).
			Update("receiver_id", placeholder.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&UserRecord{}, "user_id = ?", target.ID).Error
	})
	if err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}

	s.logger.Info("user_removed", "username", username)
	return nil
}

func (s *GormStore) ListUsers() ([]model.User, error) {
	var recs []UserRecord
	if err := s.db.Order("user_id").Find(&recs).Error; err != nil {
		return nil, err
	}

	users := make([]model.User, len(recs))
	for i := range recs {
		users[i] = recs[i].toModel()
	}
	return users, nil
}

func isReserved(username string) bool {
	return username == DeletedUsername || username == AdminUsername
}
