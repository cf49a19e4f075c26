package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Exit codes for healthcheck.
const (
	exitUnhealthy       = 1
	exitInvalidResponse = 2
)

func newHealthcheckCommand() *cobra.Command {
	var (
		timeout time.Duration
		url     string
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

This command is used by the container HEALTHCHECK. A degraded server (an
optional backend such as email or the legacy roster is not configured) still
counts as healthy.

Exit codes:
  0 - Server is healthy or degraded
  1 - Server is unhealthy or unreachable
  2 - Invalid response from server`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = defaultHealthURL()
			}
			result := performHealthCheck(cmd.Context(), url, timeout)
			if result.Error != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Health check failed: %s\n", result.Error)
				os.Exit(result.ExitCode)
			}
			if !result.Healthy {
				fmt.Fprintf(cmd.ErrOrStderr(), "Server status: %s\n", result.Status)
				os.Exit(result.ExitCode)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%dms)\n", result.Status, result.LatencyMs)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	cmd.Flags().StringVar(&url, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
	return cmd
}

// HealthResponse is the subset of the /health body the command reads.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthCheckResult struct {
	Healthy   bool
	Status    string
	LatencyMs int64
	ExitCode  int
	Error     string
}

func defaultHealthURL() string {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf("http://localhost:%s/health", port)
}

func performHealthCheck(ctx context.Context, url string, timeout time.Duration) HealthCheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HealthCheckResult{ExitCode: exitUnhealthy, Error: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return HealthCheckResult{ExitCode: exitUnhealthy, Error: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()
	latency := time.Since(start).Milliseconds()

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode != http.StatusOK {
			return HealthCheckResult{LatencyMs: latency, ExitCode: exitUnhealthy, Error: fmt.Sprintf("status %d", resp.StatusCode)}
		}
		return HealthCheckResult{LatencyMs: latency, ExitCode: exitInvalidResponse, Error: fmt.Sprintf("invalid response: %v", err)}
	}

	result := HealthCheckResult{Status: body.Status, LatencyMs: latency}
	if resp.StatusCode == http.StatusOK && (body.Status == "healthy" || body.Status == "degraded") {
		result.Healthy = true
		return result
	}
	result.ExitCode = exitUnhealthy
	return result
}
