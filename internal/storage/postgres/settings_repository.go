package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/registration/internal/domain/settings"
)

// SettingsChannel is the NOTIFY channel carrying setting changes.
const SettingsChannel = "settings_changed"

type SettingsRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *SettingsRepository) Get(ctx context.Context, key string) (*settings.Setting, error) {
	var s settings.Setting
	err := r.queryer().QueryRow(ctx,
		`SELECT key, value, updated_at FROM settings WHERE key = $1`, key,
	).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, settings.ErrNotFound
		}
		return nil, fmt.Errorf("get setting: %w", err)
	}
	return &s, nil
}

// Set upserts the value and notifies listeners on SettingsChannel. Both
// statements run in one transaction so the notification is delivered only
// once the new value is visible.
func (r *SettingsRepository) Set(ctx context.Context, key string, value bool) (*settings.Setting, error) {
	if r.tx == nil {
		var out *settings.Setting
		err := (&Repository{pool: r.pool}).WithTx(ctx, func(ctx context.Context, tx *Repository) error {
			var err error
			out, err = tx.Settings().Set(ctx, key, value)
			return err
		})
		return out, err
	}

	payload, err := json.Marshal(settings.Change{Key: key, Value: value})
	if err != nil {
		return nil, fmt.Errorf("encode setting change: %w", err)
	}

	var s settings.Setting
	err = r.queryer().QueryRow(ctx, `
INSERT INTO settings (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
RETURNING key, value, updated_at
`, key, value).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert setting: %w", err)
	}

	if _, err := r.queryer().Exec(ctx, `SELECT pg_notify($1, $2)`, SettingsChannel, string(payload)); err != nil {
		return nil, fmt.Errorf("notify setting change: %w", err)
	}
	return &s, nil
}

func (r *SettingsRepository) List(ctx context.Context) ([]settings.Setting, error) {
	rows, err := r.queryer().Query(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []settings.Setting
	for rows.Next() {
		var s settings.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return out, nil
}

func (r *SettingsRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}
