package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fatinm1/promptrix/services/promptrix/datatypes"
)

// apiClient is a thin HTTP client for a running Promptrix server, used
// by the create/run/stats subcommands.
type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newAPIClient() *apiClient {
	base := serverURL
	if base == "" {
		base = os.Getenv("PROMPTRIX_SERVER_URL")
	}
	if base == "" {
		base = "http://localhost:12310"
	}
	token := apiToken
	if token == "" {
		token = os.Getenv("PROMPTRIX_API_TOKEN")
	}
	return &apiClient{
		baseURL:    strings.TrimSuffix(base, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

func (c *apiClient) do(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func runCreateCommand(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	req := datatypes.CreateTestRequest{
		Name: testName,
		VariantA: datatypes.PromptVariant{
			Content: variantAFlag,
			Model:   modelFlag,
		},
		VariantB: datatypes.PromptVariant{
			Content: variantBFlag,
			Model:   modelFlag,
		},
	}

	var resp datatypes.CreateTestResponse
	if err := client.do(http.MethodPost, "/v1/tests", req, &resp); err != nil {
		log.Fatalf("Failed to create test: %v", err)
	}
	fmt.Printf("Created test %q\n", resp.Test.Name)
	fmt.Printf("  ID:     %s\n", resp.Test.ID)
	fmt.Printf("  Status: %s\n", resp.Test.Status)
}

func parseVariableFlags(flags []string) map[string]string {
	if len(flags) == 0 {
		return nil
	}
	vars := make(map[string]string, len(flags))
	for _, flag := range flags {
		name, value, found := strings.Cut(flag, "=")
		if !found || name == "" {
			log.Fatalf("Invalid --var %q, expected name=value", flag)
		}
		vars[name] = value
	}
	return vars
}

func runRunCommand(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	testID := args[0]
	req := datatypes.RunTestRequest{
		Inputs:    args[1:],
		Variables: parseVariableFlags(variableFlags),
	}

	var resp datatypes.RunTestResponse
	if err := client.do(http.MethodPost, "/v1/tests/"+testID+"/run", req, &resp); err != nil {
		log.Fatalf("Failed to run test: %v", err)
	}

	fmt.Printf("Run %s: %d evaluated, %d failed\n", resp.Status, len(resp.Results), len(resp.Failures))
	for _, result := range resp.Results {
		fmt.Printf("  [%-3s] A=%.1f B=%.1f  %s\n", result.Winner, result.ScoreA, result.ScoreB, truncate(result.Input, 60))
	}
	for _, failure := range resp.Failures {
		fmt.Printf("  [ERR] variant %s: %s  %s\n", failure.Variant, failure.Error, truncate(failure.Input, 60))
	}
	printStats(resp.Stats)
}

func runStatsCommand(cmd *cobra.Command, args []string) {
	client := newAPIClient()

	var resp datatypes.StatsResponse
	if err := client.do(http.MethodGet, "/v1/tests/"+args[0]+"/stats", nil, &resp); err != nil {
		log.Fatalf("Failed to fetch stats: %v", err)
	}
	printStats(resp.Stats)
}

func printStats(stats datatypes.TestAggregate) {
	fmt.Printf("Stats over %d results:\n", stats.TotalTests)
	fmt.Printf("  A wins: %d (%.1f%%)  avg score %.2f\n", stats.AWins, stats.AWinRate, stats.AvgRatingA)
	fmt.Printf("  B wins: %d (%.1f%%)  avg score %.2f\n", stats.BWins, stats.BWinRate, stats.AvgRatingB)
	fmt.Printf("  Ties:   %d (%.1f%%)\n", stats.Ties, stats.TieRate)
	fmt.Printf("  Overall winner: %s (majority margin %.1f%%)\n", stats.OverallWinner, stats.ConfidenceLevel)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
