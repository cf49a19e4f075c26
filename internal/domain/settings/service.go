package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/registration/internal/metrics"
)

// Service reads and writes the global flags. The store is authoritative; the
// in-memory cache answers when the store cannot be reached and suppresses
// duplicate change events.
type Service struct {
	repo   Repository
	broker *Broker
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[string]bool
}

func NewService(repo Repository, broker *Broker, logger zerolog.Logger) *Service {
	if broker == nil {
		broker = NewBroker(0)
	}
	return &Service{
		repo:   repo,
		broker: broker,
		logger: logger.With().Str("component", "settings").Logger(),
		cache:  map[string]bool{},
	}
}

func (s *Service) Broker() *Broker {
	return s.broker
}

// Get returns the current value of key. Unwritten keys report their default.
// Store failures fall back to the last known value.
func (s *Service) Get(ctx context.Context, key string) (bool, error) {
	if !KnownKey(key) {
		return false, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	setting, err := s.repo.Get(ctx, key)
	switch {
	case err == nil:
		s.remember(key, setting.Value)
		return setting.Value, nil
	case errors.Is(err, ErrNotFound):
		return Default(key), nil
	}

	value, cached := s.cached(key)
	if !cached {
		value = Default(key)
	}
	s.logger.Warn().Err(err).Str("key", key).Bool("cached", cached).Bool("value", value).
		Msg("settings store unavailable, using last known value")
	return value, nil
}

// Snapshot returns every known key with its current value.
func (s *Service) Snapshot(ctx context.Context) map[string]bool {
	out := make(map[string]bool, len(defaults))
	for _, key := range Keys() {
		out[key], _ = s.Get(ctx, key)
	}
	return out
}

// List returns the stored settings merged with defaults. Unlike Get it
// surfaces store errors.
func (s *Service) List(ctx context.Context) ([]Setting, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	byKey := make(map[string]Setting, len(stored))
	for _, st := range stored {
		byKey[st.Key] = st
	}
	out := make([]Setting, 0, len(defaults))
	for _, key := range Keys() {
		st, ok := byKey[key]
		if !ok {
			st = Setting{Key: key, Value: Default(key)}
		}
		out = append(out, st)
	}
	return out, nil
}

// Set upserts key and notifies subscribers.
func (s *Service) Set(ctx context.Context, key string, value bool) (*Setting, error) {
	if !KnownKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	setting, err := s.repo.Set(ctx, key, value)
	if err != nil {
		return nil, fmt.Errorf("save setting %s: %w", key, err)
	}
	s.remember(key, value)
	metrics.SettingsChanges.WithLabelValues(key).Inc()
	s.broker.Publish(Change{Key: key, Value: value})
	s.logger.Info().Str("key", key).Bool("value", value).Msg("setting saved")
	return setting, nil
}

// Apply records a change made elsewhere, for example by another server
// instance, and publishes it if it differs from what this process knew.
func (s *Service) Apply(c Change) {
	if !KnownKey(c.Key) {
		return
	}
	s.mu.Lock()
	prev, known := s.cache[c.Key]
	s.cache[c.Key] = c.Value
	s.mu.Unlock()
	if known && prev == c.Value {
		return
	}
	s.broker.Publish(c)
}

func (s *Service) remember(key string, value bool) {
	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()
}

func (s *Service) cached(key string) (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[key]
	return v, ok
}
