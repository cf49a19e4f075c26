package standings

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/registration/internal/domain/registrations"
	"github.com/Togather-Foundation/registration/internal/metrics"
	"github.com/Togather-Foundation/registration/internal/roster"
)

// Source names the tier a view was read from.
const (
	SourceStore  = "store"
	SourceLegacy = "legacy"
	SourceNone   = "none"
)

// ErrUnavailable means neither tier could be read.
var ErrUnavailable = errors.New("roster unavailable")

// RegistrationLister is the store tier. registrations.Service satisfies it.
type RegistrationLister interface {
	List(ctx context.Context, filters registrations.Filters) ([]registrations.Registration, error)
}

// LegacySource is the fallback tier. roster.Source satisfies it.
type LegacySource interface {
	Configured() bool
	Roster(ctx context.Context) ([]roster.Entry, error)
	Ranking(ctx context.Context) ([]roster.RankingRow, error)
}

// PublicEntry is what the public roster exposes about a registration.
// Contact details are never included.
type PublicEntry struct {
	Name       string `json:"nome"`
	WantsShirt bool   `json:"quer_camisa"`
	ShirtSize  string `json:"tamanho_camisa,omitempty"`
	Date       string `json:"data,omitempty"`
}

type RosterResult struct {
	Source  string        `json:"source"`
	Entries []PublicEntry `json:"entries"`
}

// RosterView reads the public roster from the store when one is configured
// and from the legacy file otherwise, or when the store fails.
type RosterView struct {
	store  RegistrationLister
	legacy LegacySource
	logger zerolog.Logger
}

// NewRosterView builds the view. store or legacy may be nil when that tier
// is not configured.
func NewRosterView(store RegistrationLister, legacy LegacySource, logger zerolog.Logger) *RosterView {
	return &RosterView{
		store:  store,
		legacy: legacy,
		logger: logger.With().Str("component", "roster_view").Logger(),
	}
}

// List returns entries in registration order, oldest first.
func (v *RosterView) List(ctx context.Context) (RosterResult, error) {
	if v.store != nil {
		regs, err := v.store.List(ctx, registrations.Filters{})
		if err == nil {
			metrics.RosterReads.WithLabelValues("roster", SourceStore).Inc()
			return RosterResult{Source: SourceStore, Entries: fromRegistrations(regs)}, nil
		}
		v.logger.Warn().Err(err).Msg("store roster read failed, falling back to legacy file")
	}

	if v.legacy == nil || !v.legacy.Configured() {
		if v.store != nil {
			return RosterResult{}, ErrUnavailable
		}
		metrics.RosterReads.WithLabelValues("roster", SourceNone).Inc()
		return RosterResult{Source: SourceNone, Entries: []PublicEntry{}}, nil
	}

	entries, err := v.legacy.Roster(ctx)
	if err != nil {
		return RosterResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	metrics.RosterReads.WithLabelValues("roster", SourceLegacy).Inc()
	return RosterResult{Source: SourceLegacy, Entries: fromLegacy(entries)}, nil
}

func fromRegistrations(regs []registrations.Registration) []PublicEntry {
	// The store lists newest first; the public roster reads like the file.
	out := make([]PublicEntry, 0, len(regs))
	for _, r := range slices.Backward(regs) {
		e := PublicEntry{
			Name:       r.Name,
			WantsShirt: r.WantsShirt,
			Date:       r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if r.ShirtSize != nil {
			e.ShirtSize = string(*r.ShirtSize)
		}
		out = append(out, e)
	}
	return out
}

func fromLegacy(entries []roster.Entry) []PublicEntry {
	out := make([]PublicEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, PublicEntry{
			Name:       e.Name,
			WantsShirt: truthy(e.Shirt),
			ShirtSize:  strings.ToUpper(e.Size),
			Date:       e.Date,
		})
	}
	return out
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sim", "s", "true", "1", "yes", "x":
		return true
	}
	return false
}
