package intake

import (
	"context"

	"github.com/Togather-Foundation/registration/internal/email"
)

// configurable is implemented by backends that may be present but unset,
// such as an email service without an API key.
type configurable interface {
	Configured() bool
}

func available(backend any) bool {
	if backend == nil {
		return false
	}
	if c, ok := backend.(configurable); ok {
		return c.Configured()
	}
	return true
}

func notifyStep(n Notifier) func(context.Context, *Result) error {
	return func(ctx context.Context, state *Result) error {
		if !available(n) {
			return errSkipped
		}
		in := state.Input
		sent, err := n.SendRegistration(ctx, email.Participant{
			Name:       in.Name,
			Email:      in.Email,
			Phone:      in.Phone,
			WantsShirt: in.WantsShirt,
			ShirtSize:  in.ShirtSize,
			ShirtName:  in.ShirtName,
		})
		if err != nil {
			return err
		}
		state.ParticipantEmailSkipped = sent.ParticipantEmailSkipped
		return nil
	}
}

func storeStep(s Store) func(context.Context, *Result) error {
	return func(ctx context.Context, state *Result) error {
		if !available(s) {
			return errSkipped
		}
		reg, err := s.Create(ctx, state.Input)
		if err != nil {
			return err
		}
		state.Registration = reg
		return nil
	}
}

func rosterStep(a RosterAppender) func(context.Context, *Result) error {
	return func(ctx context.Context, state *Result) error {
		if !available(a) {
			return errSkipped
		}
		return a.Append(ctx, state.Input.Name)
	}
}
