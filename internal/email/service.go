package email

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/registration/internal/config"
	"github.com/Togather-Foundation/registration/internal/metrics"
	"github.com/Togather-Foundation/registration/internal/sanitize"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	// ErrNotConfigured means no Resend API key is available.
	ErrNotConfigured = errors.New("email relay not configured")
	// ErrMissingFields means name, email or phone is blank.
	ErrMissingFields = errors.New("missing required participant fields")
)

const (
	organizerSubjectPrefix   = "Nova Inscrição - "
	participantSubjectPrefix = "Inscrição Confirmada - "
)

// Participant is the data rendered into both notification messages.
type Participant struct {
	Name       string `json:"nome"`
	Email      string `json:"email"`
	Phone      string `json:"telefone"`
	WantsShirt bool   `json:"quer_camisa"`
	ShirtSize  string `json:"tamanho_camisa,omitempty"`
	ShirtName  string `json:"nome_na_camisa,omitempty"`
}

// SendResult reports what happened to each message. ParticipantEmailSkipped
// is set when the provider refused the participant message for a validation
// or authorization reason.
type SendResult struct {
	OrganizerEmailID        string
	ParticipantEmailID      string
	ParticipantEmailSkipped bool
}

// DeliveryError wraps a provider failure with the HTTP status the provider
// answered, when one was received.
type DeliveryError struct {
	Recipient string
	Status    int
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("send %s email: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Service renders and sends registration notifications through Resend.
type Service struct {
	config    config.EmailConfig
	event     config.EventConfig
	templates *template.Template
	client    *resend.Client
	logger    zerolog.Logger
}

type Option func(*Service)

// WithBaseURL points the Resend client at another API root, e.g. a mock.
func WithBaseURL(raw string) Option {
	return func(s *Service) {
		if s.client == nil {
			return
		}
		if u, err := url.Parse(raw); err == nil {
			s.client.BaseURL = u
		}
	}
}

func NewService(cfg config.EmailConfig, event config.EventConfig, logger zerolog.Logger, opts ...Option) (*Service, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	if cfg.ResendAPIKey != "" {
		if err := validateEmailAddress(cfg.OrganizerEmail); err != nil {
			return nil, fmt.Errorf("invalid organizer email in config: %w", err)
		}
	}

	s := &Service{
		config:    cfg,
		event:     event,
		templates: templates,
		logger:    logger.With().Str("component", "email").Logger(),
	}
	if cfg.ResendAPIKey != "" {
		httpClient := &http.Client{
			Timeout:   15 * time.Second,
			Transport: &statusTransport{base: http.DefaultTransport},
		}
		s.client = resend.NewCustomClient(httpClient, cfg.ResendAPIKey)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Configured reports whether messages can be sent.
func (s *Service) Configured() bool {
	return s != nil && s.client != nil
}

// SendRegistration sends the organizer summary and then the participant
// confirmation. Only an organizer failure is returned as an error.
func (s *Service) SendRegistration(ctx context.Context, p Participant) (SendResult, error) {
	var result SendResult
	if !s.Configured() {
		return result, ErrNotConfigured
	}
	p = cleanParticipant(p)
	if p.Name == "" || p.Email == "" || p.Phone == "" {
		return result, ErrMissingFields
	}

	data := templateData{Participant: p, Event: s.event}

	organizerHTML, err := s.renderTemplate("organizer.html", data)
	if err != nil {
		return result, err
	}
	subject := organizerSubjectPrefix + s.event.Name + ": " + p.Name
	id, err := s.send(ctx, s.config.OrganizerEmail, subject, organizerHTML)
	if err != nil {
		metrics.EmailsSent.WithLabelValues("organizer", "failed").Inc()
		return result, &DeliveryError{Recipient: "organizer", Status: statusOf(err), Err: err}
	}
	metrics.EmailsSent.WithLabelValues("organizer", "sent").Inc()
	result.OrganizerEmailID = id

	if s.config.TestMode {
		s.logger.Info().Str("participant", p.Name).Msg("test mode, participant email not sent")
		metrics.EmailsSent.WithLabelValues("participant", "skipped").Inc()
		return result, nil
	}

	if err := validateEmailAddress(p.Email); err != nil {
		s.logger.Warn().Err(err).Str("participant", p.Name).Msg("participant email skipped")
		metrics.EmailsSent.WithLabelValues("participant", "skipped").Inc()
		result.ParticipantEmailSkipped = true
		return result, nil
	}

	participantHTML, err := s.renderTemplate("participant.html", data)
	if err != nil {
		return result, err
	}
	id, err = s.send(ctx, p.Email, participantSubjectPrefix+s.event.Name+" 🏃", participantHTML)
	if err != nil {
		if participantRejected(err) {
			s.logger.Warn().Err(err).Str("participant", p.Name).Msg("provider refused participant email")
			metrics.EmailsSent.WithLabelValues("participant", "skipped").Inc()
			result.ParticipantEmailSkipped = true
			return result, nil
		}
		metrics.EmailsSent.WithLabelValues("participant", "failed").Inc()
		return result, &DeliveryError{Recipient: "participant", Status: statusOf(err), Err: err}
	}
	metrics.EmailsSent.WithLabelValues("participant", "sent").Inc()
	result.ParticipantEmailID = id
	return result, nil
}

type templateData struct {
	Participant Participant
	Event       config.EventConfig
}

func (s *Service) renderTemplate(name string, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func cleanParticipant(p Participant) Participant {
	return Participant{
		Name:       sanitize.Text(p.Name),
		Email:      strings.TrimSpace(p.Email),
		Phone:      sanitize.Text(p.Phone),
		WantsShirt: p.WantsShirt,
		ShirtSize:  sanitize.Text(p.ShirtSize),
		ShirtName:  sanitize.Text(p.ShirtName),
	}
}

// participantRejected matches the provider answers that mean the address
// cannot receive mail from this sender, e.g. sandbox restrictions.
func participantRejected(err error) bool {
	switch statusOf(err) {
	case http.StatusForbidden, http.StatusUnprocessableEntity:
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "validation_error") || strings.Contains(msg, `"statusCode":403`)
}

// validateEmailAddress validates an email address for format and header injection attempts
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}
