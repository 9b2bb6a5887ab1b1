// Package main implements the flowctl CLI for manual operations against the flowd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the flowd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "flowctl",
	Short: "CLI for flowd HTTP server operations",
	Long: `flowctl is a command-line interface for interacting with the flowd HTTP server.
It provides commands for submitting flows and inspecting their progress.`,
	Version: version,
}

var (
	submitRequirements []string
	submitPriority     string
	outputJSON         bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9293", "flowd server URL")
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(healthCmd)

	submitCmd.Flags().StringSliceVarP(&submitRequirements, "req", "r", nil, "Requirement (repeatable)")
	submitCmd.Flags().StringVarP(&submitPriority, "priority", "p", "medium", "Priority: low, medium, or high")
	getCmd.Flags().BoolVar(&outputJSON, "json", false, "Output the raw record as JSON")
}

// submitCmd submits a new flow
var submitCmd = &cobra.Command{
	Use:   "submit <task description>",
	Short: "Submit a task for orchestration",
	Long: `Submit a task to the flowd server and print the assigned flow ID.

Examples:
  # Submit a task with two requirements
  flowctl submit "implement rate limiter" -r "token bucket" -r "per-tenant limits"

  # Submit an urgent task
  flowctl submit "hotfix login outage" --priority high`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

// statusCmd looks up a flow's current status
var statusCmd = &cobra.Command{
	Use:   "status <flow-id>",
	Short: "Show a flow's current status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

// getCmd fetches the full flow record
var getCmd = &cobra.Command{
	Use:   "get <flow-id>",
	Short: "Fetch the full flow record with per-stage results",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check flowd server health",
	RunE:  runHealth,
}

// SubmitRequest matches internal/httpapi/server.go SubmitRequest
type SubmitRequest struct {
	TaskType     string   `json:"task_type"`
	Requirements []string `json:"requirements"`
	Priority     string   `json:"priority"`
}

// SubmitResponse matches internal/httpapi/server.go SubmitResponse
type SubmitResponse struct {
	FlowID string `json:"flow_id"`
	Status string `json:"status"`
}

// StatusResponse matches internal/httpapi/server.go StatusResponse
type StatusResponse struct {
	FlowID string `json:"flow_id"`
	Status string `json:"status"`
}

// StageView is the subset of the flow record shown by `flowctl get`.
type StageView struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// RecordView is the subset of the flow record shown by `flowctl get`.
type RecordView struct {
	FlowID   string       `json:"flow_id"`
	TaskType string       `json:"task_type"`
	Priority string       `json:"priority"`
	Status   string       `json:"status"`
	Stages   []*StageView `json:"stages"`
}

func runSubmit(cmd *cobra.Command, args []string) error {
	reqBody := SubmitRequest{
		TaskType:     strings.Join(args, " "),
		Requirements: submitRequirements,
		Priority:     submitPriority,
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/flows", serverURL)
	resp, err := httpClient().Post(url, "application/json", bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return statusError(resp)
	}

	var submitResp SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Println(submitResp.FlowID)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/flows/%s/status", serverURL, args[0])
	resp, err := httpClient().Get(url)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var statusResp StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&statusResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Println(statusResp.Status)
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/flows/%s", serverURL, args[0])
	resp, err := httpClient().Get(url)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if outputJSON {
		fmt.Println(string(body))
		return nil
	}

	var record RecordView
	if err := json.Unmarshal(body, &record); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Flow:     %s\n", record.FlowID)
	fmt.Printf("Task:     %s\n", record.TaskType)
	fmt.Printf("Priority: %s\n", record.Priority)
	fmt.Printf("Status:   %s\n", record.Status)
	fmt.Println("Stages:")
	for _, stage := range record.Stages {
		line := fmt.Sprintf("  %-15s %s", stage.Name, stage.Status)
		if stage.Error != "" {
			line += fmt.Sprintf("  (%s)", stage.Error)
		}
		fmt.Println(line)
	}
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/health", serverURL)
	resp, err := httpClient().Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to %s: %v\n", url, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	fmt.Println("ok")
	return nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// statusError formats a non-success HTTP response as an error.
func statusError(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
	}
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
