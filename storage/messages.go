package storage

import (
	"errors"
	"fmt"

	"supportchat/models"
)

// SaveMessage upserts a message row. Conflicting saves keep the original
// arrival position so conversation order stays append-only.
func (s *Store) SaveMessage(message models.Message) error {
	if message.ID == "" {
		return errors.New("message id is required")
	}
	if message.Room == "" {
		return errors.New("room is required")
	}
	if message.Timestamp == 0 {
		message.Timestamp = nowUnixMilli()
	}

	_, err := s.db.Exec(
		`INSERT INTO messages (message_id, sender, room, content, created_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			content = excluded.content,
			is_read = excluded.is_read`,
		message.ID,
		message.Sender,
		message.Room,
		message.Content,
		message.Timestamp,
		boolToInt(message.IsRead),
	)
	if err != nil {
		return fmt.Errorf("upsert message %q: %w", message.ID, err)
	}

	return nil
}

// SaveMessages upserts a batch of messages in one transaction.
func (s *Store) SaveMessages(messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin message batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.Prepare(
		`INSERT INTO messages (message_id, sender, room, content, created_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			content = excluded.content,
			is_read = excluded.is_read`,
	)
	if err != nil {
		return fmt.Errorf("prepare message upsert: %w", err)
	}
	defer stmt.Close()

	for _, message := range messages {
		if message.ID == "" || message.Room == "" {
			continue
		}
		if message.Timestamp == 0 {
			message.Timestamp = nowUnixMilli()
		}
		if _, err := stmt.Exec(
			message.ID,
			message.Sender,
			message.Room,
			message.Content,
			message.Timestamp,
			boolToInt(message.IsRead),
		); err != nil {
			return fmt.Errorf("upsert message %q: %w", message.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message batch: %w", err)
	}

	return nil
}

// MessagesByRoom returns a conversation's cached messages in arrival order.
func (s *Store) MessagesByRoom(room string) ([]models.Message, error) {
	if room == "" {
		return nil, errors.New("room is required")
	}

	rows, err := s.db.Query(
		`SELECT message_id, sender, room, content, created_at, is_read
		FROM messages
		WHERE room = ?
		ORDER BY rowid ASC`,
		room,
	)
	if err != nil {
		return nil, fmt.Errorf("get messages for room %q: %w", room, err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		message, err := scanStoredMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	return messages, nil
}

// LastMessageByRoom returns the most recently arrived cached message of a
// room, or ErrNotFound for an empty conversation.
func (s *Store) LastMessageByRoom(room string) (models.Message, error) {
	if room == "" {
		return models.Message{}, errors.New("room is required")
	}

	row := s.db.QueryRow(
		`SELECT message_id, sender, room, content, created_at, is_read
		FROM messages
		WHERE room = ?
		ORDER BY rowid DESC
		LIMIT 1`,
		room,
	)
	message, err := scanStoredMessage(row)
	if err != nil {
		if isNoRows(err) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, fmt.Errorf("get last message for room %q: %w", room, err)
	}
	return message, nil
}

// MarkSenderRead flags a room's cached messages from one sender as read.
func (s *Store) MarkSenderRead(room, sender string) error {
	if room == "" {
		return errors.New("room is required")
	}
	if sender == "" {
		return errors.New("sender is required")
	}

	if _, err := s.db.Exec(
		`UPDATE messages SET is_read = 1 WHERE room = ? AND sender = ?`,
		room,
		sender,
	); err != nil {
		return fmt.Errorf("mark read for room %q sender %q: %w", room, sender, err)
	}
	return nil
}

func scanStoredMessage(row scanner) (models.Message, error) {
	var (
		message models.Message
		isRead  int
	)
	if err := row.Scan(
		&message.ID,
		&message.Sender,
		&message.Room,
		&message.Content,
		&message.Timestamp,
		&isRead,
	); err != nil {
		return models.Message{}, err
	}
	message.IsRead = isRead == 1
	return message, nil
}
