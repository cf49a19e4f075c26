package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/registration/internal/domain/settings"
)

// SettingsListener relays NOTIFY payloads on SettingsChannel to a handler so
// every server instance sees changes made through any other.
type SettingsListener struct {
	pool    *pgxpool.Pool
	handler func(settings.Change)
	logger  zerolog.Logger
	backoff time.Duration
}

func NewSettingsListener(pool *pgxpool.Pool, handler func(settings.Change), logger zerolog.Logger) *SettingsListener {
	return &SettingsListener{
		pool:    pool,
		handler: handler,
		logger:  logger.With().Str("component", "settings_listener").Logger(),
		backoff: 2 * time.Second,
	}
}

// Run listens until ctx is cancelled, reconnecting after connection errors.
func (l *SettingsListener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn().Err(err).Dur("retry_in", l.backoff).Msg("settings listener disconnected")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.backoff):
		}
	}
}

func (l *SettingsListener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+SettingsChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.logger.Info().Str("channel", SettingsChannel).Msg("listening for setting changes")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var change settings.Change
		if err := json.Unmarshal([]byte(n.Payload), &change); err != nil {
			l.logger.Warn().Err(err).Str("payload", n.Payload).Msg("ignoring malformed setting change")
			continue
		}
		l.handler(change)
	}
}
