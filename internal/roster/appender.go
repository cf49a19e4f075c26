package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/registration/internal/config"
	"github.com/Togather-Foundation/registration/internal/metrics"
	"github.com/Togather-Foundation/registration/internal/sanitize"
)

// ErrMissingName is returned when the name to append is blank.
var ErrMissingName = errors.New("athlete name is required")

// Contents is the subset of the contents API used by the appender and source.
type Contents interface {
	Get(ctx context.Context, path, ref string) (*File, error)
	Put(ctx context.Context, path string, in PutRequest) error
}

// Appender adds lines to the legacy roster file. Each append is a single
// read-modify-write guarded by the file SHA; a concurrent writer makes the
// write fail with ErrRevisionConflict and nothing is retried.
type Appender struct {
	contents Contents
	path     string
	branch   string
	logger   zerolog.Logger
	now      func() time.Time
}

func NewAppender(contents Contents, cfg config.RosterConfig, logger zerolog.Logger) *Appender {
	return &Appender{
		contents: contents,
		path:     cfg.Path,
		branch:   cfg.GitHubBranch,
		logger:   logger.With().Str("component", "roster").Logger(),
		now:      time.Now,
	}
}

// NewAppenderFromConfig wires an Appender to the GitHub contents API. It
// returns nil when no token, owner or repository is configured.
func NewAppenderFromConfig(cfg config.RosterConfig, logger zerolog.Logger) *Appender {
	if !cfg.GitHubConfigured() {
		return nil
	}
	client := NewContentsClient(cfg.GitHubToken, cfg.GitHubOwner, cfg.GitHubRepo, WithBaseURL(cfg.GitHubAPIURL))
	return NewAppender(client, cfg, logger)
}

// Configured reports whether a is usable; a nil Appender is not.
func (a *Appender) Configured() bool {
	return a != nil
}

// Append writes one line for name with the current UTC timestamp.
func (a *Appender) Append(ctx context.Context, name string) error {
	name = sanitize.Field(name)
	if name == "" {
		return ErrMissingName
	}
	if err := a.append(ctx, name); err != nil {
		outcome := "failed"
		if errors.Is(err, ErrRevisionConflict) {
			outcome = "conflict"
		}
		metrics.RosterAppends.WithLabelValues(outcome).Inc()
		return err
	}
	metrics.RosterAppends.WithLabelValues("appended").Inc()
	a.logger.Info().Str("athlete", name).Str("path", a.path).Msg("roster line appended")
	return nil
}

func (a *Appender) append(ctx context.Context, name string) error {
	var (
		content string
		sha     string
	)
	file, err := a.contents.Get(ctx, a.path, a.branch)
	switch {
	case errors.Is(err, ErrFileNotFound):
		content = Header + "\n"
	case err != nil:
		return fmt.Errorf("read roster file: %w", err)
	default:
		content = string(file.Content)
		sha = file.SHA
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
	}

	content += FormatLine(Entry{Name: name, Date: a.now().UTC().Format(time.RFC3339)})

	err = a.contents.Put(ctx, a.path, PutRequest{
		Message: "Append atleta: " + name,
		Content: []byte(content),
		SHA:     sha,
		Branch:  a.branch,
	})
	if err != nil {
		return fmt.Errorf("write roster file: %w", err)
	}
	return nil
}
