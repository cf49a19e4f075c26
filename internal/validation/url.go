package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// URLError names the setting that holds a bad URL.
type URLError struct {
	Field   string
	Message string
	URL     string
}

func (e URLError) Error() string {
	return fmt.Sprintf("%s: %s (url: %s)", e.Field, e.Message, e.URL)
}

// ValidateURL checks an absolute http(s) URL. An empty value is accepted;
// callers decide whether a setting is required.
func ValidateURL(raw, field string, requireHTTPS bool) error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return URLError{Field: field, Message: "invalid URL format", URL: raw}
	}
	if u.Scheme == "" {
		return URLError{Field: field, Message: "URL must include a scheme (http:// or https://)", URL: raw}
	}
	if u.Host == "" {
		return URLError{Field: field, Message: "URL must include a host", URL: raw}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return URLError{Field: field, Message: "URL scheme must be http or https", URL: raw}
	}
	if requireHTTPS && scheme != "https" {
		return URLError{Field: field, Message: "URL must use HTTPS in production", URL: raw}
	}
	return nil
}

// ValidateOrigin checks a CORS origin: scheme and host only. Browsers send
// origins without a path, so an entry with one would never match.
func ValidateOrigin(raw, field string) error {
	if err := ValidateURL(raw, field, false); err != nil {
		return err
	}
	if raw == "" {
		return nil
	}

	u, _ := url.Parse(raw)
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return URLError{Field: field, Message: "origin must not contain a path, query or fragment", URL: raw}
	}
	if strings.HasSuffix(raw, "/") {
		return URLError{Field: field, Message: "origin must not end with a slash", URL: raw}
	}
	return nil
}
