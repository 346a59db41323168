package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/nhle/mailclient/internal/bridge"
	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/session"
	"github.com/nhle/mailclient/internal/transport"
)

// Set via -ldflags at build time.
var version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "mailclient",
		Short:         "Mail session backend speaking JSON lines on stdin/stdout",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log.level (trace, debug, info, warn, error)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve UI actions read from stdin, writing signals to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, os.Stdin, os.Stdout)
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	var force bool
	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(opts.configPath, force, cmd.OutOrStdout())
		},
	}
	configInitCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(opts.configPath, cmd.OutOrStdout())
		},
	}
	configCmd.AddCommand(configInitCmd, configShowCmd)

	rootCmd.AddCommand(serveCmd, configCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "mailclient: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func runServe(ctx context.Context, opts *rootOptions, stdin io.Reader, stdout io.Writer) error {
	cfg, err := model.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	log, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	dialer := transport.NewDialer(transport.Options{
		IMAPPort:     cfg.IMAP.Port,
		IMAPStartTLS: cfg.IMAP.StartTLS,
		SMTPPort:     cfg.SMTP.Port,
		SMTPStartTLS: cfg.SMTP.StartTLS,
		Timeout:      cfg.DialTimeout(),
		Logger:       log,
	})
	ctrl := session.New(dialer, session.OptionsFromConfig(cfg, afero.NewOsFs(), log))

	log.Info().
		Str("config", opts.configPath).
		Strs("providers", cfg.Providers).
		Str("id_scheme", string(cfg.IDScheme)).
		Msg("serving")
	return bridge.Serve(ctx, ctrl, stdin, stdout, log)
}

// newLogger builds the process logger. Logs go to stderr because stdout
// carries the protocol.
func newLogger(cfg model.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parsing log level: %w", err)
		}
		level = l
	}

	out := w
	switch strings.ToLower(cfg.Format) {
	case "json":
	case "", "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

func runConfigInit(path string, force bool, w io.Writer) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	if err := model.SaveConfig(path, model.DefaultAppConfig()); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s\n", path)
	return nil
}

func runConfigShow(path string, w io.Writer) error {
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}
