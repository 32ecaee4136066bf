package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/evaluate"
	"github.com/zen-systems/routegate/pkg/policy"
	"github.com/zen-systems/routegate/pkg/provider"
	"github.com/zen-systems/routegate/pkg/router"
	"github.com/zen-systems/routegate/pkg/store"
)

var (
	routingFile string
	verbose     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "routegate",
		Short: "Model routing and fallback engine for AI artifact generation",
		Long: `Routegate decides which AI backend to invoke for each generation
	request, enforces quality thresholds, compresses context to fit
	provider limits, and runs a bounded quality-gated fallback chain
	across local and cloud providers.`,
	}

	rootCmd.PersistentFlags().StringVar(&routingFile, "routing", "", "path to routing config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(providersCmd())
	rootCmd.AddCommand(policiesCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func routeCmd() *cobra.Command {
	var taskType string
	var contextFile string
	var forceLocal bool
	var jsonOutput bool
	var noTrace bool

	cmd := &cobra.Command{
		Use:   "route [prompt]",
		Short: "Route a generation request through the fallback chain",
		Long: `Resolves the routing policy for the task type, then tries providers
	in preference order. Each result is quality-scored; outputs below the
	policy threshold keep the chain moving. Oversized context is compressed
	to fit each provider's limit before invocation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			contextBlob := ""
			if contextFile != "" {
				data, err := os.ReadFile(contextFile)
				if err != nil {
					return fmt.Errorf("failed to read context file: %w", err)
				}
				contextBlob = string(data)
			}

			r, traceStore, err := buildRouter(cfg, noTrace)
			if err != nil {
				return err
			}
			if traceStore != nil {
				defer traceStore.Close()
			}

			deadline, err := r.TotalDeadline(policy.TaskType(taskType), forceLocal)
			if err == nil && verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "worst-case deadline: %s\n", deadline)
			}

			result, err := r.Route(cmd.Context(), router.Request{
				TaskType:       policy.TaskType(taskType),
				PromptTemplate: args[0],
				ContextBlob:    contextBlob,
				ForceLocal:     forceLocal,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
			}
			printResult(cmd, result)
			if result.FinalStatus == router.StatusFailed {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&taskType, "task", "t", string(policy.TaskDefault), "task type (diagram.erd, diagram.architecture, code, documentation, backlog)")
	cmd.Flags().StringVarP(&contextFile, "context", "c", "", "file containing the assembled context blob")
	cmd.Flags().BoolVar(&forceLocal, "force-local", false, "never invoke cloud providers")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit the full result as JSON")
	cmd.Flags().BoolVar(&noTrace, "no-trace", false, "skip persisting the attempt trace")

	return cmd
}

func printResult(cmd *cobra.Command, result *router.Result) {
	out := cmd.OutOrStdout()

	switch result.FinalStatus {
	case router.StatusAccepted:
		fmt.Fprintf(out, "%s\n", result.AcceptedOutput)
		fmt.Fprintf(cmd.ErrOrStderr(), "\n[%s via %s, quality %d, %d attempt(s)]\n",
			result.FinalStatus, result.AcceptedProvider.Key(), result.QualityScore, len(result.Attempts))
	case router.StatusDegraded:
		fmt.Fprintf(out, "%s\n", result.AcceptedOutput)
		fmt.Fprintf(cmd.ErrOrStderr(), "\nwarning: quality threshold not met (%s); best attempt %s scored %d\n",
			result.FailureReason, result.AcceptedProvider.Key(), result.QualityScore)
	case router.StatusFailed:
		fmt.Fprintf(cmd.ErrOrStderr(), "generation failed: %s\n", result.FailureReason)
		for _, att := range result.Attempts {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s %s\n", att.Provider.Key(), att.Outcome, att.Error)
		}
	}
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured provider descriptors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODEL\tLOCAL\tMAX CONTEXT\tCOST\tCONFIGURED")
			for _, desc := range cfg.Routing.Providers {
				fmt.Fprintf(w, "%s\t%s\t%v\t%d\t%s\t%v\n",
					desc.ProviderID, desc.ModelID, desc.IsLocal,
					desc.MaxContextTokens, desc.CostClass, cfg.HasProvider(desc.ProviderID))
			}
			return w.Flush()
		},
	}
}

func policiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "Show the routing policy table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			names := make([]string, 0, len(cfg.Routing.Policies))
			for name := range cfg.Routing.Policies {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TASK TYPE\tMIN QUALITY\tMAX ATTEMPTS\tPROVIDER CHAIN")
			for _, name := range names {
				spec := cfg.Routing.Policies[name]
				maxAttempts := spec.MaxAttempts
				if maxAttempts == 0 {
					maxAttempts = len(spec.Providers) + 1
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t", name, spec.MinQualityScore, maxAttempts)
				for i, key := range spec.Providers {
					if i > 0 {
						fmt.Fprint(w, " -> ")
					}
					fmt.Fprint(w, key)
				}
				fmt.Fprintln(w)
			}
			return w.Flush()
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the routing configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			table, err := cfg.Routing.Build()
			if err != nil {
				return fmt.Errorf("routing config invalid: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "routing config valid: %d task type(s)\n", len(table.TaskTypes()))
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent attempt traces",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			traceStore, err := store.Open(traceDBPath(cfg))
			if err != nil {
				return err
			}
			defer traceStore.Close()

			records, err := traceStore.ListTraces(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REQUEST\tTASK TYPE\tSTATUS\tQUALITY\tATTEMPTS\tELAPSED")
			for _, record := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%dms\n",
					shortID(record.RequestID), record.TaskType, record.FinalStatus,
					record.QualityScore, len(record.Attempts), record.ElapsedMS)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of traces to show")
	return cmd
}

func loadConfig() (*config.Config, error) {
	if routingFile != "" {
		return config.LoadWithRoutingFile(routingFile)
	}
	return config.Load()
}

func buildRouter(cfg *config.Config, noTrace bool) (*router.Router, *store.Store, error) {
	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}

	table, err := cfg.Routing.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("routing config invalid: %w", err)
	}

	evaluator, err := evaluate.NewCachedEvaluator(evaluate.NewHeuristicEvaluator(), 256)
	if err != nil {
		return nil, nil, err
	}

	opts := []router.Option{
		router.WithPricing(cfg.Routing.Pricing),
		router.WithLogger(buildLogger()),
	}

	var traceStore *store.Store
	if !noTrace {
		traceStore, err = store.Open(traceDBPath(cfg))
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, router.WithTraceStore(traceStore))
	}

	return router.New(registry, policy.NewStore(table), evaluator, opts...), traceStore, nil
}

func buildRegistry(cfg *config.Config) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	registry.Register(provider.NewLocalAdapter(cfg.LocalBaseURL))

	if cfg.AnthropicAPIKey != "" {
		a, err := provider.NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, err
		}
		registry.Register(a)
	}
	if cfg.OpenAIAPIKey != "" {
		a, err := provider.NewOpenAIAdapter(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, err
		}
		registry.Register(a)
	}
	if cfg.GoogleAPIKey != "" {
		a, err := provider.NewGoogleAdapter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
		registry.Register(a)
	}
	if cfg.GroqAPIKey != "" {
		a, err := provider.NewGroqAdapter(cfg.GroqAPIKey)
		if err != nil {
			return nil, err
		}
		registry.Register(a)
	}

	return registry, nil
}

func buildLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func traceDBPath(cfg *config.Config) string {
	return filepath.Join(cfg.ConfigDir, "traces.db")
}

// shortID abbreviates a request id for display. Ids shorter than the
// abbreviation are shown as-is.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
