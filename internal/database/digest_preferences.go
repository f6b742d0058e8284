package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Tih000/max/internal/models"
)

// DigestPreferenceRepository handles digest preference database operations
type DigestPreferenceRepository struct {
	db *DB
}

// NewDigestPreferenceRepository creates a new digest preference repository
func NewDigestPreferenceRepository(db *DB) *DigestPreferenceRepository {
	return &DigestPreferenceRepository{db: db}
}

// Set stores or updates a user's digest schedule for a chat. An empty cron
// spec disables the digest without removing the row.
func (r *DigestPreferenceRepository) Set(ctx context.Context, pref *models.DigestPreference) error {
	query := `
		INSERT INTO digest_preferences (chat_id, user_id, cron_spec, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id, user_id) DO UPDATE SET
			cron_spec = EXCLUDED.cron_spec,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, pref.ChatID, pref.UserID, pref.CronSpec, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set digest preference: %w", err)
	}

	return nil
}

// Delete removes a digest preference; missing rows are not an error
func (r *DigestPreferenceRepository) Delete(ctx context.Context, chatID, userID int64) error {
	query := `DELETE FROM digest_preferences WHERE chat_id = $1 AND user_id = $2`

	if _, err := r.db.ExecContext(ctx, query, chatID, userID); err != nil {
		return fmt.Errorf("failed to delete digest preference: %w", err)
	}

	return nil
}

// FindWithRecurrence returns every preference that declares a non-empty cron
// spec. This is the desired state the digest scheduler reconciles against.
func (r *DigestPreferenceRepository) FindWithRecurrence(ctx context.Context) ([]*models.DigestPreference, error) {
	query := `
		SELECT chat_id, user_id, cron_spec, updated_at
		FROM digest_preferences
		WHERE cron_spec <> ''
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query digest preferences: %w", err)
	}
	defer rows.Close()

	var prefs []*models.DigestPreference
	for rows.Next() {
		pref := &models.DigestPreference{}
		if err := rows.Scan(&pref.ChatID, &pref.UserID, &pref.CronSpec, &pref.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan digest preference: %w", err)
		}
		prefs = append(prefs, pref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating digest preferences: %w", err)
	}

	return prefs, nil
}
