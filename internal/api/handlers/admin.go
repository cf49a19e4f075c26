package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/registration/internal/api/problem"
	"github.com/Togather-Foundation/registration/internal/audit"
	"github.com/Togather-Foundation/registration/internal/auth"
	"github.com/Togather-Foundation/registration/internal/domain/registrations"
)

var errStoreNotConfigured = errors.New("registration store not configured")

// Unlocker exchanges the admin password for a token. auth.AdminGate
// satisfies it.
type Unlocker interface {
	Unlock(password string) (string, time.Time, error)
}

// RegistrationAdmin is the store-backed registration management used by the
// console. registrations.Service satisfies it.
type RegistrationAdmin interface {
	List(ctx context.Context, filters registrations.Filters) ([]registrations.Registration, error)
	UpdateResult(ctx context.Context, id string, params registrations.UpdateParams) (*registrations.Registration, error)
	Delete(ctx context.Context, id string) error
}

type AdminHandler struct {
	Gate          Unlocker
	Registrations RegistrationAdmin
	Audit         *audit.Logger
	Env           string
}

func NewAdminHandler(gate Unlocker, regs RegistrationAdmin, auditLogger *audit.Logger, env string) *AdminHandler {
	return &AdminHandler{Gate: gate, Registrations: regs, Audit: auditLogger, Env: env}
}

type unlockRequest struct {
	Password string `json:"password"`
}

type unlockResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AdminHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}

	token, expiresAt, err := h.Gate.Unlock(req.Password)
	switch {
	case errors.Is(err, auth.ErrAdminDisabled):
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Admin console disabled", err, h.Env)
		return
	case errors.Is(err, auth.ErrInvalidPassword):
		h.Audit.LogFromRequest(r, "", "admin.unlock", "session", "", "failure", nil)
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Senha incorreta", err, h.Env)
		return
	case err != nil:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServer, "Server error", err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, "admin-console", "admin.unlock", "session", "", "success", nil)
	writeJSON(w, http.StatusOK, unlockResponse{Token: token, ExpiresAt: expiresAt})
}

type registrationListResponse struct {
	Items []registrationResponse `json:"items"`
	Count int                    `json:"count"`
}

// ListRegistrations returns registrations newest first. q narrows by name or
// shirt print name.
func (h *AdminHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	if !h.storeReady(w, r) {
		return
	}
	regs, err := h.Registrations.List(r.Context(), registrations.Filters{Query: r.URL.Query().Get("q")})
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServer, "Server error", err, h.Env)
		return
	}
	items := make([]registrationResponse, 0, len(regs))
	for _, reg := range regs {
		items = append(items, toRegistrationResponse(reg))
	}
	writeJSON(w, http.StatusOK, registrationListResponse{Items: items, Count: len(items)})
}

type updateRegistrationRequest struct {
	PaymentStatus   *string                   `json:"status_pagamento"`
	FinishTime      json.RawMessage           `json:"tempo"`
	FinishTimeText  *string                   `json:"tempo_texto"`
	FinishTimeParts *registrations.ClockParts `json:"tempo_partes"`
}

// params resolves the finish time from the most specific form present:
// segmented parts, then free text, then raw seconds.
func (req updateRegistrationRequest) params() (registrations.UpdateParams, map[string]any) {
	var params registrations.UpdateParams
	fieldErrs := map[string]any{}

	if req.PaymentStatus != nil {
		status := registrations.PaymentStatus(strings.TrimSpace(*req.PaymentStatus))
		if status.Valid() {
			params.PaymentStatus = &status
		} else {
			fieldErrs["status_pagamento"] = "must be one of pendente, pago, isento"
		}
	}

	timeField := ""
	switch {
	case req.FinishTimeParts != nil:
		timeField = "tempo_partes"
		p := *req.FinishTimeParts
		seconds := registrations.SecondsFromParts(p)
		blank := strings.TrimSpace(p.Hours) == "" && strings.TrimSpace(p.Minutes) == "" && strings.TrimSpace(p.Seconds) == ""
		if seconds == nil && !blank {
			fieldErrs["tempo_partes"] = "hh, mm and ss must be numbers"
			break
		}
		params.FinishTime = registrations.FinishTimeUpdate{Set: true, Seconds: seconds}
	case req.FinishTimeText != nil:
		timeField = "tempo_texto"
		text := strings.TrimSpace(*req.FinishTimeText)
		if text == "" {
			params.FinishTime = registrations.FinishTimeUpdate{Set: true}
			break
		}
		seconds := registrations.ParseClock(text)
		if seconds == nil {
			fieldErrs["tempo_texto"] = "must look like mm:ss or hh:mm:ss"
			break
		}
		params.FinishTime = registrations.FinishTimeUpdate{Set: true, Seconds: seconds}
	case len(req.FinishTime) > 0:
		timeField = "tempo"
		if bytes.Equal(bytes.TrimSpace(req.FinishTime), []byte("null")) {
			params.FinishTime = registrations.FinishTimeUpdate{Set: true}
			break
		}
		var seconds int
		if err := json.Unmarshal(req.FinishTime, &seconds); err != nil || seconds < 0 {
			fieldErrs["tempo"] = "must be a whole number of seconds or null"
			break
		}
		params.FinishTime = registrations.FinishTimeUpdate{Set: true, Seconds: &seconds}
	}
	if seconds := params.FinishTime.Seconds; seconds != nil && !registrations.ValidFinishTime(*seconds) {
		fieldErrs[timeField] = fmt.Sprintf("must be at most %d seconds", registrations.MaxFinishTime)
	}

	if len(fieldErrs) == 0 {
		return params, nil
	}
	return params, fieldErrs
}

// UpdateRegistration writes only the fields present in the body.
func (h *AdminHandler) UpdateRegistration(w http.ResponseWriter, r *http.Request) {
	if !h.storeReady(w, r) {
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))

	var req updateRegistrationRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}
	params, fieldErrs := req.params()
	if fieldErrs != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid update", registrations.ErrInvalidUpdate, h.Env,
			problem.WithDetail("One or more fields are invalid"),
			problem.WithErrors(fieldErrs))
		return
	}

	details := updateDetails(params)
	reg, err := h.Registrations.UpdateResult(r.Context(), id, params)
	if err != nil {
		h.Audit.LogFromRequest(r, adminActor(r), "registration.update", "registration", id, "failure", details)
		h.writeStoreError(w, r, err)
		return
	}
	h.Audit.LogFromRequest(r, adminActor(r), "registration.update", "registration", id, "success", details)
	writeJSON(w, http.StatusOK, toRegistrationResponse(*reg))
}

// DeleteRegistration removes a registration. The caller must pass
// confirm=true.
func (h *AdminHandler) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	if !h.storeReady(w, r) {
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))

	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if !confirmed {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Confirmation required", nil, h.Env,
			problem.WithDetail("Pass confirm=true to delete this registration"))
		return
	}

	if err := h.Registrations.Delete(r.Context(), id); err != nil {
		h.Audit.LogFromRequest(r, adminActor(r), "registration.delete", "registration", id, "failure", nil)
		h.writeStoreError(w, r, err)
		return
	}
	h.Audit.LogFromRequest(r, adminActor(r), "registration.delete", "registration", id, "success", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) storeReady(w http.ResponseWriter, r *http.Request) bool {
	if h.Registrations != nil {
		return true
	}
	problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Registration store unavailable", errStoreNotConfigured, h.Env,
		problem.WithDetail("No database is configured"))
	return false
}

func (h *AdminHandler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registrations.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Registration not found", err, h.Env)
	case errors.Is(err, registrations.ErrInvalidUpdate):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid update", err, h.Env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServer, "Server error", err, h.Env)
	}
}

func updateDetails(p registrations.UpdateParams) map[string]string {
	details := map[string]string{}
	if p.PaymentStatus != nil {
		details["status_pagamento"] = string(*p.PaymentStatus)
	}
	if p.FinishTime.Set {
		if p.FinishTime.Seconds == nil {
			details["tempo"] = "null"
		} else {
			details["tempo"] = fmt.Sprint(*p.FinishTime.Seconds)
		}
	}
	return details
}
