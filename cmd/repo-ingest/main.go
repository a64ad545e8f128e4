package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/app"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/config"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/metrics"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/output"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
	"github.com/decision-crafters/pinecone-mcp-helper/pkg/version"
)

var (
	cfgFile string
	log     *utils.Logger

	// Dependencies for testing
	osStat       = os.Stat
	execLookPath = exec.LookPath
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "repo-ingest [repo_url]",
	Short: "Ingest a git repository into a Pinecone index",
	Long: `repo-ingest clones a git repository, packs it with Repomix, embeds the
files and upserts them into a Pinecone index.

Documentation linked from the repository can be scraped with Firecrawl
and enriched with deep research before it is stored next to the code.`,
	Version:       version.Version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ~/.repo-ingest/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "Also write JSON logs to this file")
	rootCmd.PersistentFlags().Bool("mock-mode", false, "Use the in-memory vector store and a mock scraper")

	// Pipeline flags
	rootCmd.Flags().Bool("no-firecrawl", false, "Skip Firecrawl URL extraction and scraping")
	rootCmd.Flags().Bool("no-deep-research", false, "Skip deep research")
	rootCmd.Flags().String("search-query", "", "Search the web for this query instead of scraping repository URLs")
	rootCmd.Flags().Bool("incremental", false, "Only ingest files that changed since the last run")
	rootCmd.Flags().String("manifest", "", "Ingest every repository listed in a YAML or JSON manifest")
	rootCmd.Flags().String("report", "", "Write the results to a .json or .yaml file")
	rootCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this textfile")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))
	_ = viper.BindPFlag("state.enabled", rootCmd.Flags().Lookup("incremental"))
	_ = viper.BindPFlag("metrics.textfile", rootCmd.Flags().Lookup("metrics-file"))

	// Query flags
	queryCmd.Flags().String("repo", "", "Repository name")
	queryCmd.Flags().String("index", "", "Index name (default derived from --repo)")
	queryCmd.Flags().String("namespace", "", "Namespace (default <repo>-code)")
	queryCmd.Flags().Int("top-k", app.DefaultTopK, "Number of results")
	queryCmd.Flags().Bool("enriched", false, "Search the deep research namespace")
	queryCmd.Flags().Bool("json", false, "Print results as JSON")
	versionCmd.Flags().Bool("json", false, "Print build information as JSON")

	// Add subcommands
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// setup loads .env, the configuration and the logger
func setup(cmd *cobra.Command) (*config.Config, config.Env, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, config.Env{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, config.Env{}, fmt.Errorf("failed to load config: %w", err)
	}

	log, err = utils.NewLogger(utils.LoggerOptions{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
		File:   cfg.Logging.File,
	})
	if err != nil {
		return nil, config.Env{}, err
	}
	return cfg, config.ReadEnv(), nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			log.Info().Msg("Shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func run(cmd *cobra.Command, args []string) error {
	manifestPath, _ := cmd.Flags().GetString("manifest")
	if len(args) == 0 && manifestPath == "" {
		return cmd.Help()
	}

	cfg, env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	mockMode, _ := cmd.Flags().GetBool("mock-mode")
	noFirecrawl, _ := cmd.Flags().GetBool("no-firecrawl")
	noDeepResearch, _ := cmd.Flags().GetBool("no-deep-research")
	searchQuery, _ := cmd.Flags().GetString("search-query")
	reportPath, _ := cmd.Flags().GetString("report")

	if reportPath != "" {
		if _, err := output.FormatFromPath(reportPath); err != nil {
			return err
		}
	}

	mock := mockMode || env.IsMock()
	if err := env.Validate(cfg, mock, cfg.Firecrawl.Enabled && !noFirecrawl); err != nil {
		log.Error().Err(err).Msg("Missing required environment variables")
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	m := metrics.New()
	deps, err := app.NewDependencies(app.DependencyOptions{
		Config:   cfg,
		Env:      env,
		MockMode: mockMode,
		Logger:   log,
		Metrics:  m,
		Progress: cfg.Logging.Format == "pretty",
	})
	if err != nil {
		return err
	}
	orchestrator, err := app.NewOrchestrator(deps)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	defer orchestrator.Close()
	defer writeMetrics(m, cfg.Metrics.Textfile)

	opts := app.RunOptions{
		NoFirecrawl:    noFirecrawl,
		NoDeepResearch: noDeepResearch,
		SearchQuery:    strings.TrimSpace(searchQuery),
		Incremental:    cfg.State.Enabled,
	}

	if manifestPath != "" {
		report, err := orchestrator.RunManifest(ctx, manifestPath, opts)
		if report != nil {
			log.Info().Msgf("Manifest finished: %d succeeded, %d failed, %d vectors upserted",
				report.Succeeded, report.Failed, report.TotalVectorsUpserted)
			if werr := writeReport(reportPath, report); werr != nil {
				log.Error().Err(werr).Msg("Failed to write report")
			}
		}
		return err
	}

	res, err := orchestrator.Run(ctx, args[0], opts)
	if err != nil {
		log.Error().Msgf("Pipeline failed: %v", err)
		return err
	}
	app.LogResults(log, res)
	return writeReport(reportPath, res)
}

func writeReport(path string, v any) error {
	if path == "" {
		return nil
	}
	if err := output.NewWriter(output.WriterOptions{Force: true}).WriteReport(path, v); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("Report written")
	return nil
}

func writeMetrics(m *metrics.Metrics, path string) {
	if path == "" {
		return
	}
	if err := m.WriteTextfile(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to write metrics textfile")
	}
}

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search an ingested repository",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer log.Close()

		mockMode, _ := cmd.Flags().GetBool("mock-mode")
		repo, _ := cmd.Flags().GetString("repo")
		index, _ := cmd.Flags().GetString("index")
		namespace, _ := cmd.Flags().GetString("namespace")
		topK, _ := cmd.Flags().GetInt("top-k")
		enriched, _ := cmd.Flags().GetBool("enriched")
		asJSON, _ := cmd.Flags().GetBool("json")

		if err := env.Validate(cfg, mockMode || env.IsMock(), false); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		deps, err := app.NewDependencies(app.DependencyOptions{
			Config:   cfg,
			Env:      env,
			MockMode: mockMode,
			Logger:   log,
		})
		if err != nil {
			return err
		}
		defer deps.Close()

		text := strings.Join(args, " ")
		results, err := app.NewQuerier(deps).Query(ctx, text, app.QueryOptions{
			Repo:      repo,
			Index:     index,
			Namespace: namespace,
			TopK:      topK,
			Enriched:  enriched,
		})
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		app.PrintQueryResults(cmd.OutOrStdout(), text, results)
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system dependencies",
	Long:  "Verifies that the external tools, credentials and directories repo-ingest needs are available.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Checking system dependencies...")
		allPassed := true

		for _, bin := range []string{"git", "repomix"} {
			fmt.Fprintf(out, "  %s: ", bin)
			if path, err := execLookPath(bin); err == nil {
				fmt.Fprintf(out, "OK (%s)\n", path)
			} else {
				fmt.Fprintln(out, "NOT FOUND")
				allPassed = false
			}
		}

		_ = config.LoadDotEnv()
		fmt.Fprint(out, "  Config file: ")
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(out, "FAILED (%v)\n", err)
			allPassed = false
		} else if used := config.ConfigFileUsed(); used != "" {
			fmt.Fprintf(out, "OK (%s)\n", used)
		} else {
			fmt.Fprintln(out, "OK (defaults)")
		}

		if cfg != nil {
			env := config.ReadEnv()
			fmt.Fprint(out, "  Environment: ")
			if missing := env.Missing(cfg, env.IsMock(), cfg.Firecrawl.Enabled); len(missing) > 0 {
				fmt.Fprintf(out, "MISSING (%s)\n", strings.Join(missing, ", "))
				allPassed = false
			} else {
				fmt.Fprintln(out, "OK")
			}

			checkDir(out, "Cache directory", utils.ExpandPath(cfg.Cache.Directory))
			if cfg.UseLocalVectorStore() {
				checkDir(out, "Vector directory", utils.ExpandPath(cfg.VectorStore.Path))
			}
		}

		fmt.Fprintln(out)
		if allPassed {
			fmt.Fprintln(out, "All critical checks passed!")
		} else {
			fmt.Fprintln(out, "Some checks failed. Please resolve the issues above.")
		}
		return nil
	},
}

// checkDir reports whether a directory exists; missing ones are created on first use
func checkDir(out io.Writer, label, path string) {
	fmt.Fprintf(out, "  %s: ", label)
	info, err := osStat(path)
	if err == nil && info.IsDir() {
		fmt.Fprintf(out, "OK (%s)\n", path)
		return
	}
	fmt.Fprintln(out, "WARN (will be created on first use)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		build := version.Current()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(build)
		}
		fmt.Fprintln(cmd.OutOrStdout(), build.String())
		return nil
	},
}
