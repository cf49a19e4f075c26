package registrations

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu    sync.Mutex
	rows  map[string]Registration
	clock time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: map[string]Registration{}, clock: time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC)}
}

func (m *memoryRepo) Create(_ context.Context, p CreateParams) (*Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Minute)
	r := Registration{
		ID: p.ID, CreatedAt: m.clock, Name: p.Name, Email: p.Email, Phone: p.Phone,
		WantsShirt: p.WantsShirt, ShirtSize: p.ShirtSize, ShirtName: p.ShirtName,
		PaymentStatus: PaymentPending, Sex: p.Sex,
	}
	m.rows[r.ID] = r
	return &r, nil
}

func (m *memoryRepo) List(_ context.Context, f Filters) ([]Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Registration
	for _, r := range m.rows {
		if MatchesQuery(r, f.Query) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (*Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *memoryRepo) Update(_ context.Context, id string, p UpdateParams) (*Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.PaymentStatus != nil {
		r.PaymentStatus = *p.PaymentStatus
	}
	if p.FinishTime.Set {
		r.FinishTime = p.FinishTime.Seconds
	}
	m.rows[id] = r
	return &r, nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func TestServiceCreate(t *testing.T) {
	svc := NewService(newMemoryRepo(), zerolog.Nop())

	reg, err := svc.Create(context.Background(), Input{
		Name:  "  Ana Silva ",
		Email: "ana@example.com",
		Phone: "22999998888",
	})

	require.NoError(t, err)
	require.Len(t, reg.ID, 26)
	require.Equal(t, "Ana Silva", reg.Name)
	require.Equal(t, "(22) 99999-8888", reg.Phone)
	require.Equal(t, PaymentPending, reg.PaymentStatus)
	require.Nil(t, reg.FinishTime)
	require.Nil(t, reg.ShirtSize)
	require.Nil(t, reg.ShirtName)
}

func TestServiceCreateWithShirt(t *testing.T) {
	svc := NewService(newMemoryRepo(), zerolog.Nop())

	reg, err := svc.Create(context.Background(), Input{
		Name: "Ana", Email: "ana@example.com", Phone: "2233334444",
		WantsShirt: true, ShirtSize: "m", ShirtName: "Aninha", Sex: "F",
	})

	require.NoError(t, err)
	require.NotNil(t, reg.ShirtSize)
	require.Equal(t, ShirtM, *reg.ShirtSize)
	require.Equal(t, "Aninha", *reg.ShirtName)
	require.Equal(t, "F", *reg.Sex)
}

func TestServiceCreateRejectsInvalid(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, zerolog.Nop())

	_, err := svc.Create(context.Background(), Input{Name: "Ana"})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Empty(t, repo.rows, "nothing stored on validation failure")
}

func TestServiceIDsAreUnique(t *testing.T) {
	svc := NewService(newMemoryRepo(), zerolog.Nop())
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := svc.newID()
		require.NoError(t, err)
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestServiceListSearch(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, zerolog.Nop())
	ctx := context.Background()
	for _, in := range []Input{
		{Name: "Ana Silva", Email: "a@example.com", Phone: "22999998888"},
		{Name: "Bruno Souza", Email: "b@example.com", Phone: "22999998888", WantsShirt: true, ShirtSize: "G", ShirtName: "Brunão"},
		{Name: "Carla Dias", Email: "c@example.com", Phone: "22999998888"},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, Filters{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "Carla Dias", all[0].Name, "newest first")

	byName, err := svc.List(ctx, Filters{Query: " SILVA "})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	require.Equal(t, "Ana Silva", byName[0].Name)

	byShirt, err := svc.List(ctx, Filters{Query: "brunão"})
	require.NoError(t, err)
	require.Len(t, byShirt, 1)
	require.Equal(t, "Bruno Souza", byShirt[0].Name)
}

func TestServiceUpdateResult(t *testing.T) {
	svc := NewService(newMemoryRepo(), zerolog.Nop())
	ctx := context.Background()
	reg, err := svc.Create(ctx, Input{Name: "Ana", Email: "a@example.com", Phone: "22999998888"})
	require.NoError(t, err)

	paid := PaymentPaid
	updated, err := svc.UpdateResult(ctx, reg.ID, UpdateParams{PaymentStatus: &paid})
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, updated.PaymentStatus)
	require.Nil(t, updated.FinishTime)

	updated, err = svc.UpdateResult(ctx, reg.ID, UpdateParams{FinishTime: FinishTimeUpdate{Set: true, Seconds: intPtr(2730)}})
	require.NoError(t, err)
	require.Equal(t, 2730, *updated.FinishTime)
	require.Equal(t, PaymentPaid, updated.PaymentStatus, "payment untouched")
	require.Equal(t, "Ana", updated.Name)

	updated, err = svc.UpdateResult(ctx, reg.ID, UpdateParams{FinishTime: FinishTimeUpdate{Set: true}})
	require.NoError(t, err)
	require.Nil(t, updated.FinishTime, "finish time cleared")
}

func TestServiceUpdateResultRejects(t *testing.T) {
	svc := NewService(newMemoryRepo(), zerolog.Nop())
	ctx := context.Background()

	_, err := svc.UpdateResult(ctx, "x", UpdateParams{})
	require.ErrorIs(t, err, ErrInvalidUpdate)

	bogus := PaymentStatus("refunded")
	_, err = svc.UpdateResult(ctx, "x", UpdateParams{PaymentStatus: &bogus})
	require.ErrorIs(t, err, ErrInvalidUpdate)

	_, err = svc.UpdateResult(ctx, "x", UpdateParams{FinishTime: FinishTimeUpdate{Set: true, Seconds: intPtr(-1)}})
	require.ErrorIs(t, err, ErrInvalidUpdate)

	_, err = svc.UpdateResult(ctx, "x", UpdateParams{FinishTime: FinishTimeUpdate{Set: true, Seconds: intPtr(MaxFinishTime + 1)}})
	require.ErrorIs(t, err, ErrInvalidUpdate)

	paid := PaymentPaid
	_, err = svc.UpdateResult(ctx, "missing", UpdateParams{PaymentStatus: &paid})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDelete(t *testing.T) {
	svc := NewService(newMemoryRepo(), zerolog.Nop())
	ctx := context.Background()
	reg, err := svc.Create(ctx, Input{Name: "Ana", Email: "a@example.com", Phone: "22999998888"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, reg.ID))
	_, err = svc.Get(ctx, reg.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, reg.ID), ErrNotFound)
}
