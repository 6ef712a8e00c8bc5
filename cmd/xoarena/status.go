package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xoarena/xoarena/internal/config"
)

// ServiceStatus holds the probed state of a running server.
type ServiceStatus struct {
	Addr      string `json:"addr"`
	Reachable bool   `json:"reachable"`
	Live      bool   `json:"live"`
	Ready     bool   `json:"ready"`
	Error     string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	metricsAddr string
	jsonOutput  bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running server",
		Long:  `Probe the liveness and readiness endpoints on a running server's observability listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", config.DefaultMetricsListen, "observability address to probe")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	status := queryServiceStatus(cfg.metricsAddr)

	var output string
	var err error

	if cfg.jsonOutput {
		output, err = formatStatusJSON(status)
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
	} else {
		output = formatStatusTable(status)
	}

	cmd.Println(output)
	return nil
}

// queryServiceStatus probes the health endpoints at addr.
func queryServiceStatus(addr string) ServiceStatus {
	status := ServiceStatus{Addr: addr}

	client := &http.Client{Timeout: 2 * time.Second}

	live, err := probeEndpoint(client, "http://"+addr+"/healthz/liveness")
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	status.Reachable = true
	status.Live = live

	ready, err := probeEndpoint(client, "http://"+addr+"/healthz/readiness")
	if err != nil {
		// Liveness answered, so the server is up; only readiness is unknown.
		status.Error = fmt.Sprintf("readiness probe failed: %v", err)
		return status
	}
	status.Ready = ready

	return status
}

// probeEndpoint returns true when the endpoint answers 200.
func probeEndpoint(client *http.Client, url string) (bool, error) {
	resp, err := client.Get(url)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK, nil
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ServiceStatus) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "CHECK\tSTATUS")
	_, _ = fmt.Fprintln(w, "-----\t------")

	if !status.Reachable {
		reason := "unreachable"
		if status.Error != "" {
			reason = status.Error
		}
		_, _ = fmt.Fprintf(w, "server\t%s\n", reason)
	} else {
		_, _ = fmt.Fprintf(w, "liveness\t%s\n", checkWord(status.Live))
		_, _ = fmt.Fprintf(w, "readiness\t%s\n", checkWord(status.Ready))
	}

	_ = w.Flush()
	return buf.String()
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(status ServiceStatus) (string, error) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}

func checkWord(ok bool) string {
	if ok {
		return "ok"
	}
	return "failing"
}
