package roster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Togather-Foundation/registration/internal/config"
)

// ErrSourceNotConfigured means neither a public URL nor contents API access
// is available for reading a file.
var ErrSourceNotConfigured = errors.New("legacy roster source not configured")

// Source reads the legacy files used as the fallback tier of the public
// roster and ranking views.
type Source struct {
	httpClient *http.Client
	contents   Contents
	cfg        config.RosterConfig
}

func NewSource(cfg config.RosterConfig, contents Contents, httpClient *http.Client) *Source {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Source{httpClient: httpClient, contents: contents, cfg: cfg}
}

// Configured reports whether the roster file can be read at all.
func (s *Source) Configured() bool {
	return s.cfg.PublicURL != "" || s.contents != nil
}

// Roster returns the parsed roster file.
func (s *Source) Roster(ctx context.Context) ([]Entry, error) {
	text, err := s.read(ctx, s.cfg.PublicURL, s.cfg.Path)
	if err != nil {
		return nil, err
	}
	return Parse(text), nil
}

// Ranking returns the parsed ranking fallback file. Only a public URL is
// supported for it.
func (s *Source) Ranking(ctx context.Context) ([]RankingRow, error) {
	if s.cfg.RankingTSVURL == "" {
		return nil, ErrSourceNotConfigured
	}
	text, err := s.read(ctx, s.cfg.RankingTSVURL, "")
	if err != nil {
		return nil, err
	}
	return ParseRanking(text), nil
}

func (s *Source) read(ctx context.Context, publicURL, path string) (string, error) {
	if publicURL != "" {
		return s.fetch(ctx, publicURL)
	}
	if s.contents == nil || path == "" {
		return "", ErrSourceNotConfigured
	}
	file, err := s.contents.Get(ctx, path, s.cfg.GitHubBranch)
	if errors.Is(err, ErrFileNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(file.Content), nil
}

func (s *Source) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	// Public raw file hosts cache aggressively.
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	return string(body), nil
}
