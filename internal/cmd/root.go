package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/niels/rawhttpd/pkg/accesslog"
	"github.com/niels/rawhttpd/pkg/config"
	"github.com/niels/rawhttpd/pkg/docroot"
	"github.com/niels/rawhttpd/pkg/exchangelog"
	"github.com/niels/rawhttpd/pkg/handler"
	"github.com/niels/rawhttpd/pkg/logging"
	"github.com/niels/rawhttpd/pkg/output"
	"github.com/niels/rawhttpd/pkg/server"
	"github.com/niels/rawhttpd/pkg/version"
	"github.com/spf13/cobra"
)

// flags holds the command line settings shared by all commands
type flags struct {
	configPath  string
	debug       bool
	showVersion bool
	port        int
	docRoot     string
	frontend    string
	logExchange bool
	noColor     bool
}

// NewRootCmd creates the root command for rawhttpd. Without a subcommand it serves TCP.
func NewRootCmd() *cobra.Command {
	f := &flags{}
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:   version.AppName,
		Short: version.Description,
		Long: fmt.Sprintf(`%s - %s

Answers one HTTP/1.1 request per connection: GET requests are served from the
document root, "/" is redirected to the front-end location.
`, version.AppName, version.Description),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if f.configPath != "" {
				cfg = config.LoadOrDefault(f.configPath)
			} else {
				cfg = config.LoadDefault()
				config.ApplyEnv(cfg)
			}
			applyFlags(cmd, f, cfg)

			mode := logging.ModeServe
			if cmd.Name() != version.AppName {
				mode = logging.ModeStream
			}
			logging.InitGlobalLogger(f.debug, mode, cfg)
			if f.noColor {
				color.NoColor = true
			}

			if f.configPath != "" {
				logging.InfoWith("Loaded configuration", map[string]interface{}{
					"path": f.configPath,
				})
			}
			logging.DebugWith("Effective configuration", map[string]interface{}{
				"address":   cfg.ListenAddress(),
				"doc_root":  cfg.Server.DocRoot,
				"frontend":  cfg.Server.FrontendLocation,
				"max_tasks": cfg.Concurrency.MaxTasks,
			})

			if f.showVersion {
				return nil
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo())
				return nil
			}
			return runServe(cmd, f, cfg)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&f.debug, "debug", "d", false, "Enable debug mode")
	rootCmd.PersistentFlags().IntVarP(&f.port, "port", "p", 0, "TCP port to listen on (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&f.docRoot, "doc-root", "r", "", "Directory to serve files from (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&f.frontend, "frontend", "f", "", "Redirect target for \"/\" (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&f.logExchange, "log-exchange", "x", false, "Append raw requests and responses to the exchange log")
	rootCmd.PersistentFlags().BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	rootCmd.Flags().BoolVarP(&f.showVersion, "version", "v", false, "Show version information")

	rootCmd.AddCommand(newStdinCmd(f, &cfg), newInspectCmd(f, &cfg))
	return rootCmd
}

// applyFlags lets explicitly set flags win over file and environment settings
func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = f.port
	}
	if cmd.Flags().Changed("doc-root") {
		cfg.Server.DocRoot = f.docRoot
	}
	if cmd.Flags().Changed("frontend") {
		cfg.Server.FrontendLocation = f.frontend
	}
}

func newHandler(cfg *config.Config) *handler.Handler {
	if _, err := os.Stat(cfg.Server.DocRoot); err != nil {
		logging.WarnWith("Document root is not accessible, every file will be reported missing", map[string]interface{}{
			"doc_root": cfg.Server.DocRoot,
			"error":    err,
		})
	}
	return handler.New(
		docroot.Dir(cfg.Server.DocRoot),
		cfg.Server.FrontendLocation,
		handler.WithLogger(logging.WithComponent("handler")),
	)
}

func openExchangeLog(f *flags, cfg *config.Config) (*exchangelog.Logger, error) {
	l, err := exchangelog.NewLogger(f.logExchange, cfg.Logging.ExchangeLogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize exchange log: %w", err)
	}
	if l.Enabled() {
		logging.InfoWith("Exchange logging enabled", map[string]interface{}{
			"path": cfg.Logging.ExchangeLogPath,
		})
	}
	return l, nil
}

func runServe(cmd *cobra.Command, f *flags, cfg *config.Config) error {
	logging.Info(fmt.Sprintf("Starting %s %s", version.AppName, version.Version))

	exchanges, err := openExchangeLog(f, cfg)
	if err != nil {
		return err
	}
	defer exchanges.Close()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(newHandler(cfg), server.OptionsFromConfig(cfg),
		server.WithLogger(logging.WithComponent("server")),
		server.WithReporter(accesslog.NewConsoleReporter().WithWriter(cmd.OutOrStdout())),
		server.WithExchangeLog(exchanges),
	)

	stats, err := srv.ListenAndServe(ctx, cfg.ListenAddress())
	if err != nil {
		logging.ErrorWith("Server failed", map[string]interface{}{
			"error": err,
		})
		return fmt.Errorf("server failed: %w", err)
	}

	logging.InfoWith("Shutdown complete", map[string]interface{}{
		"served":   stats.Served,
		"failed":   stats.Failed,
		"duration": stats.Duration,
	})
	return nil
}

func newStdinCmd(f *flags, cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stdin",
		Short: "Answer a single request read from stdin on stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exchanges, err := openExchangeLog(f, *cfg)
			if err != nil {
				return err
			}
			defer exchanges.Close()

			srv := server.New(newHandler(*cfg), server.OptionsFromConfig(*cfg),
				server.WithLogger(logging.WithComponent("server")),
				server.WithExchangeLog(exchanges),
			)
			return srv.ServeStream(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newInspectCmd(f *flags, cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [file]",
		Short: "Process a raw request and print both messages with syntax highlighting",
		Long: `Reads a raw HTTP request from the given file, or from stdin when no file is
given, answers it against the configured document root and prints the request
and the response. Binary bodies are summarized.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open request file: %w", err)
				}
				defer file.Close()
				in = file
			}

			raw, err := io.ReadAll(io.LimitReader(in, int64((*cfg).Server.BufferSize-1)))
			if err != nil {
				return fmt.Errorf("failed to read request: %w", err)
			}

			res := newHandler(*cfg).Handle(raw)
			formatter := output.NewExchangeFormatter(!f.noColor && !color.NoColor)
			return formatter.WriteExchange(cmd.OutOrStdout(), raw, res.Bytes)
		},
	}
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
