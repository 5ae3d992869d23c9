package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xhad/docqa/internal/logger"
	"github.com/xhad/docqa/pkg/config"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
	log      *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about your documents",
	Long: `docqa indexes PDF, text and HTML documents and answers questions
strictly from their content, citing the source page.

Example usage:
  docqa ingest handbook.pdf policies/     # index files and directories
  docqa crawl https://docs.example.com    # index a documentation site
  docqa ask "How many vacation days do I get?"
  docqa chat                              # interactive session
  docqa serve                             # REST and websocket API`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.yaml, ~/.config/docqa/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd, ingestCmd, crawlCmd, askCmd, chatCmd)
}

func initConfig(cmd *cobra.Command) error {
	// a missing .env is fine
	_ = godotenv.Load()

	level := logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if cmd == serveCmd {
		log = logger.NewWithWriter(os.Stdout, logger.ParseLevel(level))
	} else {
		// interactive commands keep stdout for answers
		if level == "" {
			level = "warn"
		}
		log = logger.NewWithWriter(os.Stderr, logger.ParseLevel(level))
	}
	slog.SetDefault(log)

	var err error
	cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("invalid config:\n  %s", strings.Join(msgs, "\n  "))
	}

	log.Debug("configuration loaded",
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"index_backend", cfg.Index.Backend,
		"redis", cfg.Session.RedisURL != "")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
