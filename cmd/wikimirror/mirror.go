package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nao1215/wikimirror/internal/config"
	"github.com/nao1215/wikimirror/internal/crawler"
	"github.com/nao1215/wikimirror/internal/log"
	"github.com/nao1215/wikimirror/internal/model"
	"github.com/nao1215/wikimirror/internal/notify"
	"github.com/nao1215/wikimirror/internal/report"
	"github.com/spf13/cobra"
)

// NewMirrorCmd creates the mirror command.
func NewMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror [start-url]",
		Short: "Mirror a wiki page tree into a local Markdown corpus",
		Long: `Mirror logs into the wiki, walks the page tree below the start page, and
writes every page as Markdown under the output directory. Attachments are
downloaded next to their page with their extracted text alongside.

The start URL points at any page inside the tree to mirror; the page's
position in the sidebar tree decides the directory layout on disk.

Examples:
  # Mirror a page tree with form login
  wikimirror mirror -u alice https://wiki.example.com/pages/viewpage.action?pageId=100

  # Reuse a browser session cookie instead of logging in
  wikimirror mirror --cookie "JSESSIONID=..." https://wiki.example.com/pages/viewpage.action?pageId=100

  # Second run: skip pages that have not changed
  wikimirror mirror --resume -u alice https://wiki.example.com/pages/viewpage.action?pageId=100

  # Write a JSON report next to the mirror
  wikimirror mirror -j --report report.json -u alice https://wiki.example.com/pages/viewpage.action?pageId=100

  # Use a custom configuration file
  wikimirror mirror -c myconfig.yaml

The login password is never taken as a flag: set WIKIMIRROR_PASSWORD or
put it in the configuration file (see "wikimirror init").`,
		Args: cobra.MaximumNArgs(1),
		RunE: runMirrorCmd,
	}

	// Site flags
	cmd.Flags().StringP("username", "u", "",
		"Wiki login username (password via WIKIMIRROR_PASSWORD or the config file)")
	cmd.Flags().String("cookie", "",
		"Raw Cookie header to reuse instead of form login")
	cmd.Flags().String("proxy", "",
		"HTTP or SOCKS5 proxy URL for all wiki traffic")

	// Crawl behavior flags
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of pages mirrored in parallel")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Minimum delay between requests to the wiki")
	cmd.Flags().IntP("depth", "d", 0,
		"Maximum tree depth to mirror (0 mirrors the whole tree)")
	cmd.Flags().IntP("retries", "r", config.DefaultMaxRetries,
		"Retry budget per page for transient failures")
	cmd.Flags().Bool("resume", false,
		"Skip pages whose content is unchanged since the last run")
	cmd.Flags().Bool("skip-attachments", false,
		"Mirror pages only, without downloading attachments")

	// Output flags
	cmd.Flags().StringP("output", "o", "",
		"Output directory for the mirror (default: current directory)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .wikimirror in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().String("report", "",
		"Write the run report to the specified file path (creates directories if needed)")

	return cmd
}

// runMirrorCmd executes the mirror command.
func runMirrorCmd(cmd *cobra.Command, args []string) error {
	// Build config from flags, config file, and environment
	cfg, err := buildMirrorConfig(cmd, args)
	if err != nil {
		return err
	}

	// Derive and validate configuration
	if err := cfg.Normalize(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging
	verbose := getVerboseFlag(cmd)
	logger := setupLogger(verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runMirror(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildMirrorConfig creates a Config from cobra command flags, the optional
// configuration file, and the environment. Precedence is flags > environment
// secrets > config file > defaults, except that environment secrets always
// win so credentials never have to be written down.
func buildMirrorConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load the configuration file before the flags so explicit flags win.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use defaults when no file is found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		if err := cf.Apply(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		// User explicitly specified a config file that doesn't exist
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	// Secrets from the environment override flags and file alike
	config.ApplyEnv(cfg)

	// Positional argument overrides the configured start URL
	if len(args) > 0 {
		cfg.Crawl.StartURL = args[0]
	}

	return cfg, nil
}

// applyFlags copies explicitly set flags onto cfg. Flags the user left
// untouched keep whatever the config file or the defaults provided, so a
// flag default never clobbers a config file value.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("username") {
		if cfg.Site.Username, err = flags.GetString("username"); err != nil {
			return err
		}
	}
	if flags.Changed("cookie") {
		if cfg.Site.Cookie, err = flags.GetString("cookie"); err != nil {
			return err
		}
	}
	if flags.Changed("proxy") {
		if cfg.Site.ProxyURL, err = flags.GetString("proxy"); err != nil {
			return err
		}
	}
	if flags.Changed("concurrency") {
		if cfg.Crawl.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return err
		}
	}
	if flags.Changed("delay") {
		if cfg.Crawl.Delay, err = flags.GetDuration("delay"); err != nil {
			return err
		}
	}
	if flags.Changed("depth") {
		if cfg.Crawl.MaxDepth, err = flags.GetInt("depth"); err != nil {
			return err
		}
	}
	if flags.Changed("retries") {
		if cfg.Crawl.MaxRetries, err = flags.GetInt("retries"); err != nil {
			return err
		}
	}
	if flags.Changed("resume") {
		if cfg.Crawl.Resume, err = flags.GetBool("resume"); err != nil {
			return err
		}
	}
	if flags.Changed("skip-attachments") {
		if cfg.Extract.SkipAttachments, err = flags.GetBool("skip-attachments"); err != nil {
			return err
		}
	}
	if flags.Changed("output") {
		if cfg.Output.Dir, err = flags.GetString("output"); err != nil {
			return err
		}
	}

	// Report flags have no config file counterpart; read them directly
	cfg.Output.JSONReport, err = flags.GetBool("json")
	if err != nil {
		return err
	}
	cfg.Output.MarkdownReport, err = flags.GetBool("markdown")
	if err != nil {
		return err
	}
	cfg.Output.ReportFile, err = flags.GetString("report")
	if err != nil {
		return err
	}

	return nil
}

// setupLogger creates a structured logger based on verbosity setting.
// Login credentials and session cookies flow through several log sites,
// so every record passes through the sanitizing handler first.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewSecureLogger(os.Stderr, verbose)
}

// runMirror executes the mirror run.
func runMirror(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting mirror",
		"startURL", cfg.Crawl.StartURL,
		"concurrency", cfg.Crawl.Concurrency,
		"resume", cfg.Crawl.Resume,
		"skipAttachments", cfg.Extract.SkipAttachments,
	)

	eng, err := crawler.New(cfg, crawler.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create mirror engine: %w", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Error("failed to close engine", "error", err)
		}
	}()

	fmt.Printf("Mirroring %s\n", cfg.Crawl.StartURL)
	fmt.Printf("Output: %s\n\n", eng.OutputDir())
	startTime := time.Now()

	result, runErr := eng.Run(ctx)

	elapsed := time.Since(startTime)
	switch result.Status {
	case model.RunCompleted:
		fmt.Printf("Mirror completed in %s\n\n", elapsed.Round(time.Millisecond))
	case model.RunCanceled:
		fmt.Fprintf(os.Stderr, "Mirror canceled after %s\n\n", elapsed.Round(time.Millisecond))
	default:
		fmt.Fprintf(os.Stderr, "Mirror failed after %s: %v\n\n", elapsed.Round(time.Millisecond), runErr)
	}

	// The report covers whatever the run reached, even after a failure
	if err := outputReport(cfg, result); err != nil {
		logger.Error("report failed", "error", err)
	}

	// The completion callback must still fire when the run was canceled,
	// so it cannot share the run's context.
	notifier := notify.New(cfg.Notify, logger)
	if notifier.Enabled() {
		if err := notifier.Send(context.WithoutCancel(ctx), result); err != nil {
			logger.Warn("completion callback failed", "error", err)
		}
	}

	return runErr
}

// outputReport outputs the mirror report in the requested format.
func outputReport(cfg *config.Config, result *model.MirrorResult) error {
	// Determine output destination
	var output *os.File
	if cfg.Output.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.Output.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Create/overwrite the output file with secure permissions (0600).
		// Reports carry wiki addresses and page titles, which may be internal.
		f, err := os.OpenFile(cfg.Output.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	// JSON output (full result with per-page detail)
	if cfg.Output.JSONReport {
		writer := report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
		_, err := writer.Write(result)
		return err
	}

	// Markdown output
	if cfg.Output.MarkdownReport {
		writer := report.NewMarkdownWriter(output)
		_, err := writer.Write(result)
		return err
	}

	// Human-readable report (default)
	writer := report.NewSimpleWriter(output)
	_, err := writer.Write(result)
	return err
}
