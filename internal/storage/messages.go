package storage

import (
	"fmt"
	"time"

	"msghub/internal/model"
)

// boxLimit caps inbox/outbox results to the most recent messages.
const boxLimit = 5

func (s *GormStore) InsertMessage(m *model.Message) error {
	when, err := time.Parse(model.TimeLayout, m.Time)
	if err != nil {
		return fmt.Errorf("invalid message time %q: %w", m.Time, err)
	}

	sender, err := s.getRecord(m.Sender.Username)
	if err != nil {
		return err
	}
	receiver, err := s.getRecord(m.Receiver.Username)
	if err != nil {
		return err
	}

	rec := MessageRecord{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Title:      m.Title,
		Content:    m.Content,
		Time:       when,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	s.logger.Info("message_inserted",
		"sender", m.Sender.Username,
		"receiver", m.Receiver.Username,
	)
	return nil
}

// InboxOf returns the newest messages addressed to the user, newest first.
func (s *GormStore) InboxOf(username string) ([]model.Message, error) {
	return s.messageBox(username, "receiver_id")
}

// OutboxOf returns the newest messages sent by the user, newest first.
func (s *GormStore) OutboxOf(username string) ([]model.Message, error) {
	return s.messageBox(username, "sender_id")
}

func (s *GormStore) messageBox(username, column string) ([]model.Message, error) {
	owner, err := s.getRecord(username)
	if err != nil {
		return nil, err
	}

	var rows []MessageRecord
	if err := s.db.Where(column+" = ?", owner.ID).
		Order("time DESC").Limit(boxLimit).Find(&rows).Error; err != nil {
		return nil, err
	}

	messages := make([]model.Message, 0, len(rows))
	for _, row := range rows {
		counterpartID := row.SenderID
		if column == "sender_id" {
			counterpartID = row.ReceiverID
		}
		counterpart, err := s.getRecordByID(counterpartID)
		if err != nil {
			return nil, err
		}

		msg := model.Message{
			Title:   row.Title,
			Content: row.Content,
			Time:    row.Time.Format(model.TimeLayout),
		}
		if column == "receiver_id" {
			msg.Sender = counterpart.toModel()
			msg.Receiver = owner.toModel()
		} else {
			msg.Sender = owner.toModel()
			msg.Receiver = counterpart.toModel()
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
