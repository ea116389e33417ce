package storage

import (
	"errors"
	"fmt"

	"supportchat/models"
)

// SaveContact upserts one counterpart user record.
func (s *Store) SaveContact(user models.User) error {
	if user.ID == "" {
		return errors.New("user id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO contacts (user_id, name, email, avatar_url, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at`,
		user.ID,
		user.Name,
		user.Email,
		user.Avatar,
		nowUnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert contact %q: %w", user.ID, err)
	}

	return nil
}

// SaveContacts upserts a batch of user records in one transaction.
func (s *Store) SaveContacts(users []models.User) error {
	if len(users) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin contact batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.Prepare(
		`INSERT INTO contacts (user_id, name, email, avatar_url, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at`,
	)
	if err != nil {
		return fmt.Errorf("prepare contact upsert: %w", err)
	}
	defer stmt.Close()

	now := nowUnixMilli()
	for _, user := range users {
		if user.ID == "" {
			continue
		}
		if _, err := stmt.Exec(user.ID, user.Name, user.Email, user.Avatar, now); err != nil {
			return fmt.Errorf("upsert contact %q: %w", user.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit contact batch: %w", err)
	}

	return nil
}

// ListContacts returns every cached user record ordered by name.
func (s *Store) ListContacts() ([]models.User, error) {
	rows, err := s.db.Query(
		`SELECT user_id, name, email, avatar_url
		FROM contacts
		ORDER BY name ASC, user_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Avatar); err != nil {
			return nil, fmt.Errorf("scan contact row: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contact rows: %w", err)
	}

	return users, nil
}
