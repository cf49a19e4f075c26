package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/registration/internal/config"
	"github.com/Togather-Foundation/registration/internal/domain/registrations"
	"github.com/Togather-Foundation/registration/internal/domain/settings"
	"github.com/Togather-Foundation/registration/internal/email"
)

type recorder struct {
	calls []string
}

type fakeNotifier struct {
	rec     *recorder
	sent    []email.Participant
	err     error
	skipped bool
}

func (f *fakeNotifier) SendRegistration(_ context.Context, p email.Participant) (email.SendResult, error) {
	f.rec.calls = append(f.rec.calls, StepNotify)
	f.sent = append(f.sent, p)
	if f.err != nil {
		return email.SendResult{}, f.err
	}
	return email.SendResult{OrganizerEmailID: "org-1", ParticipantEmailSkipped: f.skipped}, nil
}

type fakeStore struct {
	rec     *recorder
	created []registrations.Input
	err     error
}

func (f *fakeStore) Create(_ context.Context, in registrations.Input) (*registrations.Registration, error) {
	f.rec.calls = append(f.rec.calls, StepStore)
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, in)
	return &registrations.Registration{
		ID:            "01JTEST",
		CreatedAt:     time.Now(),
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		WantsShirt:    in.WantsShirt,
		PaymentStatus: registrations.PaymentPending,
	}, nil
}

type fakeRoster struct {
	rec   *recorder
	names []string
	err   error
}

func (f *fakeRoster) Append(_ context.Context, name string) error {
	f.rec.calls = append(f.rec.calls, StepRoster)
	if f.err != nil {
		return f.err
	}
	f.names = append(f.names, name)
	return nil
}

type unconfiguredNotifier struct{ fakeNotifier }

func (unconfiguredNotifier) Configured() bool { return false }

type flags map[string]bool

func (f flags) Get(_ context.Context, key string) (bool, error) {
	v, ok := f[key]
	if !ok {
		return settings.Default(key), nil
	}
	return v, nil
}

func ana() registrations.Input {
	return registrations.Input{Name: "Ana", Email: "a@x.com", Phone: "(22) 99999-9999", WantsShirt: false}
}

type fixture struct {
	rec      *recorder
	notifier *fakeNotifier
	store    *fakeStore
	roster   *fakeRoster
}

func newFixture() *fixture {
	rec := &recorder{}
	return &fixture{
		rec:      rec,
		notifier: &fakeNotifier{rec: rec},
		store:    &fakeStore{rec: rec},
		roster:   &fakeRoster{rec: rec},
	}
}

func (f *fixture) pipeline(fl FlagReader) *Pipeline {
	return New(Dependencies{Flags: fl, Notifier: f.notifier, Store: f.store, Roster: f.roster}, zerolog.Nop())
}

func TestSubmitRunsStepsInOrder(t *testing.T) {
	f := newFixture()

	result, err := f.pipeline(flags{}).Submit(context.Background(), ana())

	require.NoError(t, err)
	require.Equal(t, []string{StepNotify, StepStore, StepRoster}, f.rec.calls)
	require.Len(t, f.notifier.sent, 1)
	require.Equal(t, "Ana", f.notifier.sent[0].Name)
	require.Equal(t, []string{"Ana"}, f.roster.names)
	require.NotNil(t, result.Registration)
	require.Equal(t, registrations.PaymentPending, result.Registration.PaymentStatus)
	require.Nil(t, result.Registration.ShirtSize)

	for _, s := range result.Steps {
		require.Equal(t, StatusSucceeded, s.Status, s.Name)
	}
	notify, ok := result.Step(StepNotify)
	require.True(t, ok)
	require.Equal(t, Mandatory, notify.Policy)
}

func TestSubmitRejectsInvalidInputBeforeAnyStep(t *testing.T) {
	f := newFixture()
	in := ana()
	in.Phone = "123"
	in.WantsShirt = true

	_, err := f.pipeline(flags{}).Submit(context.Background(), in)

	var verr *registrations.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Contains(t, verr.Fields, "telefone")
	require.Contains(t, verr.Fields, "tamanho_camisa")
	require.Contains(t, verr.Fields, "nome_na_camisa")
	require.Empty(t, f.rec.calls)
}

func TestSubmitClosed(t *testing.T) {
	f := newFixture()

	_, err := f.pipeline(flags{settings.RegistrationsOpen: false}).Submit(context.Background(), ana())

	require.ErrorIs(t, err, ErrRegistrationClosed)
	require.Empty(t, f.rec.calls)
}

func TestSubmitMandatoryFailureStops(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("resend down")

	result, err := f.pipeline(flags{}).Submit(context.Background(), ana())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	require.Equal(t, StepNotify, stepErr.Step)
	require.Equal(t, []string{StepNotify}, f.rec.calls)
	require.Len(t, result.Steps, 1)
	require.Equal(t, StatusFailed, result.Steps[0].Status)
	require.Contains(t, result.Steps[0].Error, "resend down")
}

func TestSubmitBestEffortFailuresAreRecorded(t *testing.T) {
	f := newFixture()
	f.store.err = errors.New("db down")
	f.roster.err = errors.New("sha mismatch")
	f.notifier.skipped = true

	result, err := f.pipeline(flags{}).Submit(context.Background(), ana())

	require.NoError(t, err)
	require.True(t, result.ParticipantEmailSkipped)
	require.Nil(t, result.Registration)
	store, _ := result.Step(StepStore)
	require.Equal(t, StatusFailed, store.Status)
	require.Equal(t, BestEffort, store.Policy)
	roster, _ := result.Step(StepRoster)
	require.Equal(t, StatusFailed, roster.Status)
	require.Equal(t, "sha mismatch", roster.Error)
}

func TestSubmitFailsWithoutNotifier(t *testing.T) {
	keyless, err := email.NewService(config.EmailConfig{}, config.EventConfig{}, zerolog.Nop())
	require.NoError(t, err)

	tests := []struct {
		name     string
		notifier Notifier
	}{
		{name: "nil notifier"},
		{name: "unconfigured notifier", notifier: &unconfiguredNotifier{fakeNotifier{rec: &recorder{}}}},
		{name: "email service without api key", notifier: keyless},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			p := New(Dependencies{Notifier: tt.notifier, Store: f.store, Roster: f.roster}, zerolog.Nop())

			result, err := p.Submit(context.Background(), ana())

			var stepErr *StepError
			require.True(t, errors.As(err, &stepErr))
			require.Equal(t, StepNotify, stepErr.Step)
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			require.Equal(t, StepNotify, cfgErr.Step)

			require.Empty(t, f.rec.calls, "no side effect may run")
			require.Len(t, result.Steps, 1)
			require.Equal(t, StatusFailed, result.Steps[0].Status)
			require.Nil(t, result.Registration)
		})
	}
}

func TestSubmitSkipsUnconfiguredBestEffortSteps(t *testing.T) {
	f := newFixture()
	p := New(Dependencies{Notifier: f.notifier}, zerolog.Nop())

	result, err := p.Submit(context.Background(), ana())

	require.NoError(t, err)
	require.Equal(t, []string{StepNotify}, f.rec.calls)
	require.Len(t, result.Steps, 3)
	notify, _ := result.Step(StepNotify)
	require.Equal(t, StatusSucceeded, notify.Status)
	for _, name := range []string{StepStore, StepRoster} {
		s, _ := result.Step(name)
		require.Equal(t, StatusSkipped, s.Status, name)
	}
}

func TestSubmitNormalizesBeforeSteps(t *testing.T) {
	f := newFixture()
	in := registrations.Input{
		Name:       "  Ana  ",
		Email:      " a@x.com ",
		Phone:      "22999999999",
		WantsShirt: false,
		ShirtSize:  "M",
		ShirtName:  "ANA",
	}

	_, err := f.pipeline(flags{}).Submit(context.Background(), in)

	require.NoError(t, err)
	stored := f.store.created[0]
	require.Equal(t, "Ana", stored.Name)
	require.Equal(t, "(22) 99999-9999", stored.Phone)
	require.Empty(t, stored.ShirtSize)
	require.Empty(t, stored.ShirtName)
}

func TestCustomSteps(t *testing.T) {
	var order []string
	step := func(name string, policy Policy, err error) Step {
		return Step{Name: name, Policy: policy, Run: func(context.Context, *Result) error {
			order = append(order, name)
			return err
		}}
	}
	p := NewWithSteps(nil, []Step{
		step("a", BestEffort, errors.New("soft")),
		step("b", Mandatory, nil),
		step("c", Mandatory, errors.New("hard")),
		step("d", BestEffort, nil),
	}, zerolog.Nop())

	result, err := p.Submit(context.Background(), ana())

	require.Error(t, err)
	require.Equal(t, []string{"a", "b", "c"}, order)
	require.Len(t, result.Steps, 3)
}

func TestPolicyText(t *testing.T) {
	text, err := BestEffort.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "best_effort", string(text))
	require.Equal(t, "mandatory", Mandatory.String())
}
