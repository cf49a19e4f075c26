package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/resend/resend-go/v2"
)

// send delivers one message through the Resend API. Rate limit errors are
// logged with the provider's quota headers; nothing is retried.
func (s *Service) send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("resend client not initialized")
	}

	params := &resend.SendEmailRequest{
		From:    s.config.From,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	}

	status := &responseStatus{}
	sent, err := s.client.Emails.SendWithContext(withResponseStatus(ctx, status), params)
	if err != nil {
		var rateLimitErr *resend.RateLimitError
		if errors.As(err, &rateLimitErr) {
			s.logger.Warn().
				Str("limit", rateLimitErr.Limit).
				Str("remaining", rateLimitErr.Remaining).
				Str("reset", rateLimitErr.Reset).
				Msg("resend rate limit exceeded")
			return "", &statusError{status: http.StatusTooManyRequests, err: fmt.Errorf("email rate limit exceeded (limit: %s, resets in: %s seconds): %w",
				rateLimitErr.Limit, rateLimitErr.Reset, err)}
		}
		return "", &statusError{status: status.code, err: fmt.Errorf("resend API error: %w", err)}
	}

	s.logger.Info().
		Str("email_id", sent.Id).
		Str("subject", subject).
		Msg("email sent via Resend")
	return sent.Id, nil
}

// statusError carries the provider's HTTP status alongside the client error,
// which only exposes the provider message.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return 0
}

type responseStatus struct {
	code int
}

type responseStatusKey struct{}

func withResponseStatus(ctx context.Context, rs *responseStatus) context.Context {
	return context.WithValue(ctx, responseStatusKey{}, rs)
}

// statusTransport records the status code of each response into the
// responseStatus carried by the request context.
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if rs, ok := req.Context().Value(responseStatusKey{}).(*responseStatus); ok {
		rs.code = resp.StatusCode
	}
	return resp, nil
}
