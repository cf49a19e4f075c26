package standings

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/registration/internal/domain/registrations"
	"github.com/Togather-Foundation/registration/internal/domain/settings"
	"github.com/Togather-Foundation/registration/internal/metrics"
	"github.com/Togather-Foundation/registration/internal/roster"
)

// FlagReader reads a boolean setting. settings.Service satisfies it.
type FlagReader interface {
	Get(ctx context.Context, key string) (bool, error)
}

// RankingEntry is one placed finisher.
type RankingEntry struct {
	Position   int    `json:"posicao"`
	Name       string `json:"nome"`
	FinishTime int    `json:"tempo"`
	Clock      string `json:"tempo_formatado"`

	createdAt time.Time
}

// Ranking is the public results board. When Visible is false both lists are
// empty.
type Ranking struct {
	Visible bool           `json:"visible"`
	Source  string         `json:"source,omitempty"`
	Male    []RankingEntry `json:"masculino"`
	Female  []RankingEntry `json:"feminino"`
}

// RankingView builds the results board once results are marked final.
type RankingView struct {
	flags  FlagReader
	store  RegistrationLister
	legacy LegacySource
	logger zerolog.Logger
}

func NewRankingView(flags FlagReader, store RegistrationLister, legacy LegacySource, logger zerolog.Logger) *RankingView {
	return &RankingView{
		flags:  flags,
		store:  store,
		legacy: legacy,
		logger: logger.With().Str("component", "ranking_view").Logger(),
	}
}

func (v *RankingView) Get(ctx context.Context) (Ranking, error) {
	hidden := Ranking{Male: []RankingEntry{}, Female: []RankingEntry{}}

	final, err := v.flags.Get(ctx, settings.ResultsFinal)
	if err != nil {
		return hidden, fmt.Errorf("read %s: %w", settings.ResultsFinal, err)
	}
	if !final {
		return hidden, nil
	}

	if v.store != nil {
		regs, err := v.store.List(ctx, registrations.Filters{})
		if err == nil {
			metrics.RosterReads.WithLabelValues("ranking", SourceStore).Inc()
			return buildRanking(SourceStore, rankingFromRegistrations(regs)), nil
		}
		v.logger.Warn().Err(err).Msg("store ranking read failed, falling back to legacy file")
	}

	if v.legacy == nil {
		if v.store != nil {
			return hidden, ErrUnavailable
		}
		metrics.RosterReads.WithLabelValues("ranking", SourceNone).Inc()
		return buildRanking(SourceNone, nil), nil
	}
	rows, err := v.legacy.Ranking(ctx)
	if errors.Is(err, roster.ErrSourceNotConfigured) && v.store == nil {
		metrics.RosterReads.WithLabelValues("ranking", SourceNone).Inc()
		return buildRanking(SourceNone, nil), nil
	}
	if err != nil {
		return hidden, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	candidates := make([]candidate, 0, len(rows))
	for i, row := range rows {
		// File order stands in for registration order.
		candidates = append(candidates, candidate{
			name:       row.Name,
			sex:        row.Sex,
			finishTime: row.FinishTime,
			createdAt:  time.Unix(int64(i), 0),
		})
	}
	metrics.RosterReads.WithLabelValues("ranking", SourceLegacy).Inc()
	return buildRanking(SourceLegacy, candidates), nil
}

type candidate struct {
	name       string
	sex        string
	finishTime *int
	createdAt  time.Time
}

func rankingFromRegistrations(regs []registrations.Registration) []candidate {
	out := make([]candidate, 0, len(regs))
	for _, r := range regs {
		c := candidate{name: r.Name, finishTime: r.FinishTime, createdAt: r.CreatedAt}
		if r.Sex != nil {
			c.sex = *r.Sex
		}
		out = append(out, c)
	}
	return out
}

// buildRanking drops entries without a time or an m/f sex, splits the rest
// and orders each list by time, then registration order, then name.
func buildRanking(source string, candidates []candidate) Ranking {
	r := Ranking{Visible: true, Source: source, Male: []RankingEntry{}, Female: []RankingEntry{}}
	for _, c := range candidates {
		if c.finishTime == nil {
			continue
		}
		entry := RankingEntry{
			Name:       c.name,
			FinishTime: *c.finishTime,
			Clock:      registrations.FormatClock(c.finishTime),
			createdAt:  c.createdAt,
		}
		switch category(c.sex) {
		case "m":
			r.Male = append(r.Male, entry)
		case "f":
			r.Female = append(r.Female, entry)
		}
	}
	rank(r.Male)
	rank(r.Female)
	return r
}

func rank(entries []RankingEntry) {
	slices.SortStableFunc(entries, func(a, b RankingEntry) int {
		return cmp.Or(
			cmp.Compare(a.FinishTime, b.FinishTime),
			a.createdAt.Compare(b.createdAt),
			strings.Compare(a.Name, b.Name),
		)
	})
	for i := range entries {
		entries[i].Position = i + 1
	}
}

func category(sex string) string {
	s := strings.ToLower(strings.TrimSpace(sex))
	switch {
	case strings.HasPrefix(s, "m"):
		return "m"
	case strings.HasPrefix(s, "f"):
		return "f"
	}
	return ""
}
