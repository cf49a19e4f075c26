package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Togather-Foundation/registration/internal/api/problem"
	"github.com/Togather-Foundation/registration/internal/standings"
)

type RosterReader interface {
	List(ctx context.Context) (standings.RosterResult, error)
}

type RankingReader interface {
	Get(ctx context.Context) (standings.Ranking, error)
}

// StandingsHandler serves the public roster and results board.
type StandingsHandler struct {
	Roster  RosterReader
	Ranking RankingReader
	Env     string
}

func NewStandingsHandler(rosterView RosterReader, rankingView RankingReader, env string) *StandingsHandler {
	return &StandingsHandler{Roster: rosterView, Ranking: rankingView, Env: env}
}

func (h *StandingsHandler) GetRoster(w http.ResponseWriter, r *http.Request) {
	result, err := h.Roster.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if result.Entries == nil {
		result.Entries = []standings.PublicEntry{}
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, result)
}

func (h *StandingsHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	ranking, err := h.Ranking.Get(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if ranking.Male == nil {
		ranking.Male = []standings.RankingEntry{}
	}
	if ranking.Female == nil {
		ranking.Female = []standings.RankingEntry{}
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, ranking)
}

func (h *StandingsHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, standings.ErrUnavailable) {
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Roster unavailable", err, h.Env)
		return
	}
	problem.Write(w, r, http.StatusInternalServerError, problem.TypeServer, "Server error", err, h.Env)
}
