package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fieldbook/internal/models"
)

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, name, phone, email, telegram_chat_id, is_admin, points, created_at, updated_at
              FROM users WHERE id = ?`
	var u models.User
	var phone, email sql.NullString
	err := db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Name, &phone, &email, &u.TelegramChatID,
		&u.IsAdmin, &u.Points, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id=%d", ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Phone = phone.String
	u.Email = email.String
	return &u, nil
}

// EnsureUser inserts the user row when absent and refreshes contact fields
// when present. The points counter is never touched here, and a zero
// telegram_chat_id never overwrites an existing binding.
func (db *DB) EnsureUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	query := `INSERT INTO users (id, name, phone, email, telegram_chat_id, is_admin, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                phone = excluded.phone,
                email = excluded.email,
                telegram_chat_id = CASE WHEN excluded.telegram_chat_id != 0
                    THEN excluded.telegram_chat_id ELSE users.telegram_chat_id END,
                updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query,
		user.ID, user.Name, user.Phone, user.Email,
		user.TelegramChatID, user.IsAdmin, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// AddUserPoints moves the running loyalty counter by delta (negative on
// cancellation). The counter is a single integer, not a ledger.
func (db *DB) AddUserPoints(ctx context.Context, userID, delta int64) error {
	query := `UPDATE users SET points = points + ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, delta, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to adjust points: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: id=%d", ErrUserNotFound, userID)
	}
	return nil
}
