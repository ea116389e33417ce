package storage

import (
	"errors"
	"fmt"

	"supportchat/models"
)

// UpsertPreview stores the last-message preview for one conversation.
func (s *Store) UpsertPreview(userID string, preview models.Preview) error {
	if userID == "" {
		return errors.New("user id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO previews (user_id, content, is_unread, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			content = excluded.content,
			is_unread = excluded.is_unread,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		userID,
		preview.Content,
		boolToInt(preview.Unread),
		preview.Timestamp,
		nowUnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert preview for %q: %w", userID, err)
	}

	return nil
}

// MarkPreviewRead clears the unread flag of one conversation preview.
func (s *Store) MarkPreviewRead(userID string) error {
	if userID == "" {
		return errors.New("user id is required")
	}

	if _, err := s.db.Exec(
		`UPDATE previews SET is_unread = 0, updated_at = ? WHERE user_id = ?`,
		nowUnixMilli(),
		userID,
	); err != nil {
		return fmt.Errorf("mark preview read for %q: %w", userID, err)
	}
	return nil
}

// ListPreviews returns every cached conversation preview keyed by user id.
func (s *Store) ListPreviews() (map[string]models.Preview, error) {
	rows, err := s.db.Query(
		`SELECT user_id, content, is_unread, created_at FROM previews`,
	)
	if err != nil {
		return nil, fmt.Errorf("list previews: %w", err)
	}
	defer rows.Close()

	previews := make(map[string]models.Preview)
	for rows.Next() {
		var (
			userID   string
			preview  models.Preview
			isUnread int
		)
		if err := rows.Scan(&userID, &preview.Content, &isUnread, &preview.Timestamp); err != nil {
			return nil, fmt.Errorf("scan preview row: %w", err)
		}
		preview.Unread = isUnread == 1
		previews[userID] = preview
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preview rows: %w", err)
	}

	return previews, nil
}
