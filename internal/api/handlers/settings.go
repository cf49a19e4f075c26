package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/registration/internal/api/middleware"
	"github.com/Togather-Foundation/registration/internal/api/problem"
	"github.com/Togather-Foundation/registration/internal/audit"
	"github.com/Togather-Foundation/registration/internal/domain/settings"
	"github.com/Togather-Foundation/registration/internal/metrics"
)

const streamHeartbeat = 25 * time.Second

// SettingsService reads and writes the global flags. settings.Service
// satisfies it.
type SettingsService interface {
	Snapshot(ctx context.Context) map[string]bool
	List(ctx context.Context) ([]settings.Setting, error)
	Set(ctx context.Context, key string, value bool) (*settings.Setting, error)
	Broker() *settings.Broker
}

type SettingsHandler struct {
	Service   SettingsService
	Audit     *audit.Logger
	Env       string
	Heartbeat time.Duration
}

func NewSettingsHandler(service SettingsService, auditLogger *audit.Logger, env string) *SettingsHandler {
	return &SettingsHandler{Service: service, Audit: auditLogger, Env: env, Heartbeat: streamHeartbeat}
}

// Public returns every flag with its current value.
func (h *SettingsHandler) Public(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.Service.Snapshot(r.Context()))
}

// Stream sends the current flags as a "snapshot" event and then one "change"
// event per write until the client disconnects.
func (h *SettingsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})
	changes, cancel := h.Service.Broker().Subscribe()
	defer cancel()

	metrics.SettingsStreams.Inc()
	defer metrics.SettingsStreams.Dec()

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	logger := zerolog.Ctx(r.Context())
	if err := writeEvent(w, "snapshot", h.Service.Snapshot(r.Context())); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		logger.Warn().Err(err).Msg("settings stream cannot flush")
		return
	}

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = streamHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if err := writeEvent(w, "change", change); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

// List returns the stored flags with their last update time.
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context())
	if err != nil {
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Settings unavailable", err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type setSettingRequest struct {
	Value *bool `json:"value"`
}

type setSettingResponse struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Update writes one flag. A failed write is reported with outcome "error"
// so the console never shows a value that was not saved.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !settings.KnownKey(key) {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Unknown setting", settings.ErrUnknownKey, h.Env,
			problem.WithExtension("key", key),
			problem.WithExtension("outcome", "error"))
		return
	}

	var req setSettingRequest
	if err := decodeJSON(r, &req); err != nil || req.Value == nil {
		if err == nil {
			err = errors.New("value is required")
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
			problem.WithErrors(map[string]any{"value": "must be true or false"}),
			problem.WithExtension("outcome", "error"))
		return
	}

	actor := adminActor(r)
	details := map[string]string{"key": key, "value": strconv.FormatBool(*req.Value)}
	saved, err := h.Service.Set(r.Context(), key, *req.Value)
	if err != nil {
		h.Audit.LogFromRequest(r, actor, "settings.update", "setting", key, "failure", details)
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServer, "Setting not saved", err, h.Env,
			problem.WithExtension("key", key),
			problem.WithExtension("outcome", "error"))
		return
	}
	h.Audit.LogFromRequest(r, actor, "settings.update", "setting", key, "success", details)

	writeJSON(w, http.StatusOK, setSettingResponse{
		Key:       saved.Key,
		Value:     saved.Value,
		Status:    "saved",
		UpdatedAt: saved.UpdatedAt,
	})
}

func adminActor(r *http.Request) string {
	if claims := middleware.AdminClaims(r); claims != nil {
		return claims.Subject
	}
	return ""
}
