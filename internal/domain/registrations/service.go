package registrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/registration/internal/domain/ids"
)

type Service struct {
	repo   Repository
	ids    *ids.Generator
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		ids:    ids.NewGenerator(),
		logger: logger.With().Str("component", "registrations").Logger(),
	}
}

// Create stores a new registration. The input is normalized and validated
// first; payment status starts as pending and no finish time is set.
func (s *Service) Create(ctx context.Context, in Input) (*Registration, error) {
	in = Normalize(in)
	if err := Validate(in); err != nil {
		return nil, err
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate registration id: %w", err)
	}

	params := CreateParams{
		ID:         id,
		Name:       in.Name,
		Email:      in.Email,
		Phone:      in.Phone,
		WantsShirt: in.WantsShirt,
	}
	if in.WantsShirt {
		size := ShirtSize(in.ShirtSize)
		name := in.ShirtName
		params.ShirtSize = &size
		params.ShirtName = &name
	}
	if in.Sex != "" {
		sex := in.Sex
		params.Sex = &sex
	}

	reg, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create registration: %w", err)
	}
	s.logger.Info().Str("registration_id", reg.ID).Bool("wants_shirt", reg.WantsShirt).Msg("registration stored")
	return reg, nil
}

// List returns registrations newest first, optionally narrowed by a
// case-insensitive search on name or shirt print name.
func (s *Service) List(ctx context.Context, filters Filters) ([]Registration, error) {
	filters.Query = strings.TrimSpace(filters.Query)
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id string) (*Registration, error) {
	if !ids.IsULID(id) {
		return nil, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// UpdateResult writes the admin-editable fields that are present in params and
// leaves everything else untouched.
func (s *Service) UpdateResult(ctx context.Context, id string, params UpdateParams) (*Registration, error) {
	if params.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidUpdate)
	}
	if params.PaymentStatus != nil && !params.PaymentStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrInvalidUpdate, *params.PaymentStatus)
	}
	if params.FinishTime.Set && params.FinishTime.Seconds != nil && !ValidFinishTime(*params.FinishTime.Seconds) {
		return nil, fmt.Errorf("%w: finish time must be between 0 and %d seconds", ErrInvalidUpdate, MaxFinishTime)
	}

	if !ids.IsULID(id) {
		return nil, ErrNotFound
	}

	reg, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("registration_id", id).Msg("registration updated")
	return reg, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if !ids.IsULID(id) {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("registration_id", id).Msg("registration deleted")
	return nil
}

func (s *Service) newID() (string, error) {
	return s.ids.New()
}

// MatchesQuery applies the admin search rule to a single registration.
func MatchesQuery(r Registration, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(r.Name), q) {
		return true
	}
	return r.ShirtName != nil && strings.Contains(strings.ToLower(*r.ShirtName), q)
}
