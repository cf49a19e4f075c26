package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/registration/internal/email"
)

// Relay messages. Existing clients match on these strings.
const (
	msgMethodNotAllowed = "Method not allowed"
	msgResendMissing    = "RESEND_API_KEY não configurada"
	msgMissingFields    = "Campos obrigatórios ausentes"
	msgSent             = "Inscrição enviada com sucesso!"
	msgSendFailed       = "Erro ao enviar"
	msgGitHubMissing    = "Configuração do GitHub ausente (GITHUB_TOKEN/OWNER/REPO)"
	msgNameRequired     = "Nome é obrigatório"
	msgAppendFailed     = "Erro ao gravar"
)

// EmailSender delivers the organizer and participant notifications.
type EmailSender interface {
	Configured() bool
	SendRegistration(ctx context.Context, p email.Participant) (email.SendResult, error)
}

// AthleteAppender adds a name to the legacy roster file.
type AthleteAppender interface {
	Configured() bool
	Append(ctx context.Context, name string) error
}

// RelayHandler serves the two relay endpoints that browsers and older
// deployments call directly.
type RelayHandler struct {
	Email  EmailSender
	Roster AthleteAppender
}

func NewRelayHandler(sender EmailSender, appender AthleteAppender) *RelayHandler {
	return &RelayHandler{Email: sender, Roster: appender}
}

type sendEmailResponse struct {
	Success                 bool   `json:"success"`
	Message                 string `json:"message"`
	ParticipantEmailSkipped bool   `json:"participant_email_skipped"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *RelayHandler) SendRegistrationEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeRelayError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}
	if h == nil || h.Email == nil || !h.Email.Configured() {
		writeRelayError(w, http.StatusBadRequest, msgResendMissing)
		return
	}

	var p email.Participant
	if err := decodeJSON(r, &p); err != nil {
		writeRelayError(w, http.StatusBadRequest, msgMissingFields)
		return
	}
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Email) == "" || strings.TrimSpace(p.Phone) == "" {
		writeRelayError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	result, err := h.Email.SendRegistration(r.Context(), p)
	switch {
	case errors.Is(err, email.ErrNotConfigured):
		writeRelayError(w, http.StatusBadRequest, msgResendMissing)
		return
	case errors.Is(err, email.ErrMissingFields):
		writeRelayError(w, http.StatusBadRequest, msgMissingFields)
		return
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("registration email failed")
		writeRelayError(w, http.StatusInternalServerError, messageOr(err, msgSendFailed))
		return
	}

	writeJSON(w, http.StatusOK, sendEmailResponse{
		Success:                 true,
		Message:                 msgSent,
		ParticipantEmailSkipped: result.ParticipantEmailSkipped,
	})
}

type appendAthleteRequest struct {
	Name string `json:"nome"`
}

func (h *RelayHandler) AppendAthlete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeRelayError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}
	if h == nil || h.Roster == nil || !h.Roster.Configured() {
		writeRelayError(w, http.StatusBadRequest, msgGitHubMissing)
		return
	}

	var req appendAthleteRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeRelayError(w, http.StatusBadRequest, msgNameRequired)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeRelayError(w, http.StatusBadRequest, msgNameRequired)
		return
	}

	if err := h.Roster.Append(r.Context(), name); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("legacy roster append failed")
		writeRelayError(w, http.StatusInternalServerError, messageOr(err, msgAppendFailed))
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func messageOr(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
