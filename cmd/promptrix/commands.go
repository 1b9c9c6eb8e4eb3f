package main

import (
	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiToken  string

	testName      string
	variantAFlag  string
	variantBFlag  string
	modelFlag     string
	variableFlags []string

	rootCmd = &cobra.Command{
		Use:   "promptrix",
		Short: "A/B test LLM prompts with heuristic pairwise scoring",
		Long: `Promptrix compares two prompt variants by running operator-supplied
test inputs through both, scoring each output with a fixed heuristic,
and aggregating wins, ties and rates into per-test statistics.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the Promptrix HTTP service",
		Run:   runServe, // Defined in serve.go
	}

	createCmd = &cobra.Command{
		Use:   "create",
		Short: "Create an A/B test on a running Promptrix server",
		Run:   runCreateCommand, // Defined in client.go
	}

	runCmd = &cobra.Command{
		Use:   "run [testId] [input...]",
		Short: "Run test inputs through both variants of a test",
		Args:  cobra.MinimumNArgs(2),
		Run:   runRunCommand, // Defined in client.go
	}

	statsCmd = &cobra.Command{
		Use:   "stats [testId]",
		Short: "Show aggregate statistics for a test",
		Args:  cobra.ExactArgs(1),
		Run:   runStatsCommand, // Defined in client.go
	}
)

func init() {
	for _, cmd := range []*cobra.Command{createCmd, runCmd, statsCmd} {
		cmd.Flags().StringVar(&serverURL, "server", "", "Promptrix server URL (default $PROMPTRIX_SERVER_URL or http://localhost:12310)")
		cmd.Flags().StringVar(&apiToken, "token", "", "bearer token (default $PROMPTRIX_API_TOKEN)")
	}

	createCmd.Flags().StringVar(&testName, "name", "", "test name (required)")
	createCmd.Flags().StringVarP(&variantAFlag, "variant-a", "a", "", "prompt template for variant A (required)")
	createCmd.Flags().StringVarP(&variantBFlag, "variant-b", "b", "", "prompt template for variant B (required)")
	createCmd.Flags().StringVar(&modelFlag, "model", "gpt-4o-mini", "model name for both variants")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("variant-a")
	_ = createCmd.MarkFlagRequired("variant-b")

	runCmd.Flags().StringArrayVar(&variableFlags, "var", nil, "template variable binding as name=value (repeatable)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statsCmd)
}
