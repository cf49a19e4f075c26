package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Togather-Foundation/registration/internal/api/problem"
	"github.com/Togather-Foundation/registration/internal/domain/registrations"
	"github.com/Togather-Foundation/registration/internal/intake"
)

// Submitter runs the intake pipeline. intake.Pipeline satisfies it.
type Submitter interface {
	Submit(ctx context.Context, in registrations.Input) (intake.Result, error)
}

type RegistrationsHandler struct {
	Intake Submitter
	Env    string
}

func NewRegistrationsHandler(intake Submitter, env string) *RegistrationsHandler {
	return &RegistrationsHandler{Intake: intake, Env: env}
}

type registrationResponse struct {
	ID            string                   `json:"id"`
	CreatedAt     time.Time                `json:"created_at"`
	Name          string                   `json:"nome"`
	Email         string                   `json:"email"`
	Phone         string                   `json:"telefone"`
	WantsShirt    bool                     `json:"quer_camisa"`
	ShirtSize     *string                  `json:"tamanho_camisa"`
	ShirtName     *string                  `json:"nome_na_camisa"`
	PaymentStatus string                   `json:"status_pagamento"`
	Sex           *string                  `json:"sexo"`
	FinishTime    *int                     `json:"tempo"`
	Clock         string                   `json:"tempo_formatado"`
	ClockParts    registrations.ClockParts `json:"tempo_partes"`
}

func toRegistrationResponse(reg registrations.Registration) registrationResponse {
	out := registrationResponse{
		ID:            reg.ID,
		CreatedAt:     reg.CreatedAt,
		Name:          reg.Name,
		Email:         reg.Email,
		Phone:         reg.Phone,
		WantsShirt:    reg.WantsShirt,
		ShirtName:     reg.ShirtName,
		PaymentStatus: string(reg.PaymentStatus),
		Sex:           reg.Sex,
		FinishTime:    reg.FinishTime,
		Clock:         registrations.FormatClock(reg.FinishTime),
		ClockParts:    registrations.SplitClock(reg.FinishTime),
	}
	if reg.ShirtSize != nil {
		size := string(*reg.ShirtSize)
		out.ShirtSize = &size
	}
	return out
}

type intakeResponse struct {
	Message                 string                `json:"message"`
	Registration            *registrationResponse `json:"registration,omitempty"`
	Steps                   []intake.StepResult   `json:"steps"`
	ParticipantEmailSkipped bool                  `json:"participant_email_skipped"`
}

func (h *RegistrationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Intake == nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServer, "Server error", nil, h.env())
		return
	}

	var in registrations.Input
	if err := decodeJSON(r, &in); err != nil {
		status := http.StatusBadRequest
		if tooLarge(err) {
			status = http.StatusRequestEntityTooLarge
		}
		problem.Write(w, r, status, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}

	result, err := h.Intake.Submit(r.Context(), in)
	if err != nil {
		h.writeSubmitError(w, r, err)
		return
	}

	resp := intakeResponse{
		Message:                 msgSent,
		Steps:                   result.Steps,
		ParticipantEmailSkipped: result.ParticipantEmailSkipped,
	}
	if result.Registration != nil {
		reg := toRegistrationResponse(*result.Registration)
		resp.Registration = &reg
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *RegistrationsHandler) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *registrations.ValidationError
		configErr     *intake.ConfigurationError
		stepErr       *intake.StepError
	)
	switch {
	case errors.As(err, &validationErr):
		fields := make(map[string]any, len(validationErr.Fields))
		for k, v := range validationErr.Fields {
			fields[k] = v
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid registration", err, h.Env,
			problem.WithDetail("One or more fields are invalid"),
			problem.WithErrors(fields))
	case errors.Is(err, intake.ErrRegistrationClosed):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Registrations closed", err, h.Env,
			problem.WithDetail("Inscrições encerradas"))
	case errors.As(err, &configErr):
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Registration unavailable", err, h.Env,
			problem.WithDetail("Inscrições indisponíveis no momento"),
			problem.WithExtension("step", configErr.Step))
	case errors.As(err, &stepErr):
		problem.Write(w, r, http.StatusBadGateway, problem.TypeUpstream, "Registration not completed", err, h.Env,
			problem.WithExtension("step", stepErr.Step),
			problem.WithExtension("steps", stepErr.Result.Steps))
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServer, "Server error", err, h.Env)
	}
}

func (h *RegistrationsHandler) env() string {
	if h == nil {
		return ""
	}
	return h.Env
}
