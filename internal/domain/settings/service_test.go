package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type flakyRepo struct {
	*MemoryRepository
	fail bool
}

func (f *flakyRepo) Get(ctx context.Context, key string) (*Setting, error) {
	if f.fail {
		return nil, errors.New("connection refused")
	}
	return f.MemoryRepository.Get(ctx, key)
}

func (f *flakyRepo) List(ctx context.Context) ([]Setting, error) {
	if f.fail {
		return nil, errors.New("connection refused")
	}
	return f.MemoryRepository.List(ctx)
}

func TestServiceDefaults(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, zerolog.Nop())
	ctx := context.Background()

	final, err := svc.Get(ctx, ResultsFinal)
	require.NoError(t, err)
	require.False(t, final)

	open, err := svc.Get(ctx, RegistrationsOpen)
	require.NoError(t, err)
	require.True(t, open)

	_, err = svc.Get(ctx, "dark_mode")
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestServiceSetPublishes(t *testing.T) {
	svc := NewService(NewMemoryRepository(), NewBroker(4), zerolog.Nop())
	ctx := context.Background()
	changes, cancel := svc.Broker().Subscribe()
	defer cancel()

	saved, err := svc.Set(ctx, ResultsFinal, true)
	require.NoError(t, err)
	require.True(t, saved.Value)
	require.False(t, saved.UpdatedAt.IsZero())

	select {
	case c := <-changes:
		require.Equal(t, Change{Key: ResultsFinal, Value: true}, c)
	case <-time.After(time.Second):
		t.Fatal("expected change to be published")
	}

	value, err := svc.Get(ctx, ResultsFinal)
	require.NoError(t, err)
	require.True(t, value)
}

func TestServiceSetRejectsUnknownKey(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, zerolog.Nop())
	_, err := svc.Set(context.Background(), "nope", true)
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestServiceFallsBackToCache(t *testing.T) {
	repo := &flakyRepo{MemoryRepository: NewMemoryRepository()}
	svc := NewService(repo, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Set(ctx, ResultsFinal, true)
	require.NoError(t, err)

	repo.fail = true
	value, err := svc.Get(ctx, ResultsFinal)
	require.NoError(t, err)
	require.True(t, value, "cached value used while store is down")

	open, err := svc.Get(ctx, RegistrationsOpen)
	require.NoError(t, err)
	require.True(t, open, "default used when nothing cached")

	_, err = svc.List(ctx)
	require.Error(t, err, "List surfaces store errors")
}

func TestServiceListMergesDefaults(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, zerolog.Nop())
	ctx := context.Background()
	_, err := svc.Set(ctx, RegistrationsOpen, false)
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, ResultsFinal, list[0].Key)
	require.False(t, list[0].Value)
	require.Equal(t, RegistrationsOpen, list[1].Key)
	require.False(t, list[1].Value)

	require.Equal(t, map[string]bool{ResultsFinal: false, RegistrationsOpen: false}, svc.Snapshot(ctx))
}

func TestServiceApplySuppressesEcho(t *testing.T) {
	svc := NewService(NewMemoryRepository(), NewBroker(4), zerolog.Nop())
	changes, cancel := svc.Broker().Subscribe()
	defer cancel()

	_, err := svc.Set(context.Background(), ResultsFinal, true)
	require.NoError(t, err)
	<-changes

	svc.Apply(Change{Key: ResultsFinal, Value: true})
	svc.Apply(Change{Key: "unknown", Value: true})
	select {
	case c := <-changes:
		t.Fatalf("unexpected change %+v", c)
	default:
	}

	svc.Apply(Change{Key: ResultsFinal, Value: false})
	select {
	case c := <-changes:
		require.Equal(t, Change{Key: ResultsFinal, Value: false}, c)
	case <-time.After(time.Second):
		t.Fatal("expected remote change to be published")
	}
}
