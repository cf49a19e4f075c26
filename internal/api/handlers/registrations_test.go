package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/registration/internal/domain/registrations"
	"github.com/Togather-Foundation/registration/internal/intake"
)

type stubSubmitter struct {
	result intake.Result
	err    error
	got    []registrations.Input
}

func (s *stubSubmitter) Submit(_ context.Context, in registrations.Input) (intake.Result, error) {
	s.got = append(s.got, in)
	return s.result, s.err
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestCreateRegistration(t *testing.T) {
	const body = `{"nome":"Ana","email":"ana@example.com","telefone":"11987654321","quer_camisa":true,"tamanho_camisa":"m","nome_na_camisa":"ANA"}`

	t.Run("created", func(t *testing.T) {
		seconds := 1500
		size := registrations.ShirtM
		sub := &stubSubmitter{result: intake.Result{
			Registration: &registrations.Registration{
				ID:            "01J0000000000000000000000",
				CreatedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
				Name:          "Ana",
				WantsShirt:    true,
				ShirtSize:     &size,
				PaymentStatus: registrations.PaymentPending,
				FinishTime:    &seconds,
			},
			Steps: []intake.StepResult{
				{Name: intake.StepNotify, Policy: intake.Mandatory, Status: intake.StatusSucceeded},
				{Name: intake.StepStore, Policy: intake.BestEffort, Status: intake.StatusSucceeded},
				{Name: intake.StepRoster, Policy: intake.BestEffort, Status: intake.StatusFailed, Error: "conflict"},
			},
		}}
		h := NewRegistrationsHandler(sub, "test")

		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/registrations", strings.NewReader(body)))

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

		reg := resp["registration"].(map[string]any)
		assert.Equal(t, "Ana", reg["nome"])
		assert.Equal(t, "M", reg["tamanho_camisa"])
		assert.Equal(t, "pendente", reg["status_pagamento"])
		assert.Equal(t, "25:00", reg["tempo_formatado"])

		steps := resp["steps"].([]any)
		require.Len(t, steps, 3)
		assert.Equal(t, "mandatory", steps[0].(map[string]any)["policy"])
		assert.Equal(t, "failed", steps[2].(map[string]any)["status"])

		require.Len(t, sub.got, 1)
		assert.Equal(t, "11987654321", sub.got[0].Phone)
	})

	t.Run("validation error", func(t *testing.T) {
		sub := &stubSubmitter{err: &registrations.ValidationError{Fields: map[string]string{"email": "must be a valid email address"}}}
		h := NewRegistrationsHandler(sub, "test")

		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/registrations", strings.NewReader(body)))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		p := decodeProblem(t, rec)
		errs := p["errors"].(map[string]any)
		assert.Equal(t, "must be a valid email address", errs["email"])
	})

	t.Run("closed", func(t *testing.T) {
		h := NewRegistrationsHandler(&stubSubmitter{err: intake.ErrRegistrationClosed}, "test")
		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/registrations", strings.NewReader(body)))

		require.Equal(t, http.StatusForbidden, rec.Code)
		p := decodeProblem(t, rec)
		assert.Equal(t, "Inscrições encerradas", p["detail"])
	})

	t.Run("mandatory step failed", func(t *testing.T) {
		stepErr := &intake.StepError{
			Step: intake.StepNotify,
			Err:  errors.New("organizer email rejected"),
			Result: intake.Result{Steps: []intake.StepResult{
				{Name: intake.StepNotify, Policy: intake.Mandatory, Status: intake.StatusFailed, Error: "organizer email rejected"},
			}},
		}
		h := NewRegistrationsHandler(&stubSubmitter{err: stepErr}, "test")
		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/registrations", strings.NewReader(body)))

		require.Equal(t, http.StatusBadGateway, rec.Code)
		p := decodeProblem(t, rec)
		assert.Equal(t, "notify", p["step"])
		require.Len(t, p["steps"], 1)
	})

	t.Run("notifier not configured", func(t *testing.T) {
		stepErr := &intake.StepError{
			Step: intake.StepNotify,
			Err:  &intake.ConfigurationError{Step: intake.StepNotify},
			Result: intake.Result{Steps: []intake.StepResult{
				{Name: intake.StepNotify, Policy: intake.Mandatory, Status: intake.StatusFailed, Error: "notify backend is not configured"},
			}},
		}
		h := NewRegistrationsHandler(&stubSubmitter{err: stepErr}, "production")
		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/registrations", strings.NewReader(body)))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		p := decodeProblem(t, rec)
		assert.Equal(t, "notify", p["step"])
		assert.Equal(t, "Inscrições indisponíveis no momento", p["detail"])
		assert.NotContains(t, rec.Body.String(), "Inscrição enviada")
	})

	t.Run("malformed body", func(t *testing.T) {
		sub := &stubSubmitter{}
		h := NewRegistrationsHandler(sub, "test")
		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/registrations", strings.NewReader(`{"nome":`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, sub.got)
	})

	t.Run("detail hidden in production", func(t *testing.T) {
		h := NewRegistrationsHandler(&stubSubmitter{err: errors.New("pq: connection reset")}, "production")
		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/registrations", strings.NewReader(body)))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		p := decodeProblem(t, rec)
		assert.NotContains(t, p["detail"], "pq:")
	})
}
