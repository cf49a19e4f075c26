package settings

import (
	"context"
	"errors"
	"time"
)

// Known global flags.
const (
	// ResultsFinal gates the public ranking.
	ResultsFinal = "final_corrida"
	// RegistrationsOpen gates intake.
	RegistrationsOpen = "inscricoes_abertas"
)

var (
	ErrNotFound   = errors.New("setting not found")
	ErrUnknownKey = errors.New("unknown setting key")
)

// defaults applies when a key has never been written.
var defaults = map[string]bool{
	ResultsFinal:      false,
	RegistrationsOpen: true,
}

// Keys lists the recognised setting keys in display order.
func Keys() []string {
	return []string{ResultsFinal, RegistrationsOpen}
}

func KnownKey(key string) bool {
	_, ok := defaults[key]
	return ok
}

func Default(key string) bool {
	return defaults[key]
}

type Setting struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Change is published whenever a setting is written.
type Change struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

type Repository interface {
	// Get returns ErrNotFound when the key was never written.
	Get(ctx context.Context, key string) (*Setting, error)
	// Set upserts the value and refreshes updated_at.
	Set(ctx context.Context, key string, value bool) (*Setting, error)
	List(ctx context.Context) ([]Setting, error)
}
