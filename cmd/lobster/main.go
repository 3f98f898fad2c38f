package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CCAgentOrg/nanobot-skills/internal/actions"
	"github.com/CCAgentOrg/nanobot-skills/internal/definition"
	"github.com/CCAgentOrg/nanobot-skills/internal/logging"
	"github.com/CCAgentOrg/nanobot-skills/internal/store"
	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

var (
	stateDir string
	dbDSN    string
	logLevel string
	jsonOut  bool

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lobster",
	Short: "Resumable workflow engine with approval gates",
	Long: `Lobster runs linear workflows defined in YAML or JSON. State is
persisted after every step, so an interrupted run resumes where it
stopped. Approval gates pause a run until a human decides: approve or
reject the gate out of band, then resume.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(logLevel)
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", ".lobster", "directory for run state, gate records and locks")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db", "", "libsql DSN replacing the file backend, e.g. file:lobster.db")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newLogger builds the CLI logger: leveled text on stderr, with run
// correlation ids injected from the context.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	text := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(text))
}

// openStore builds the backend selected by the persistent flags: libsql
// when --db is set, the file store under --state-dir otherwise.
func openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, store.Config{Dir: stateDir, DSN: dbDSN, Logger: logger})
}

func newRegistry(cfg actions.BuiltinConfig) (*actions.Registry, error) {
	reg := actions.NewRegistry()
	if err := actions.RegisterBuiltins(reg, cfg); err != nil {
		return nil, err
	}
	return reg, nil
}

func loadDefinition(path string) (*schema.WorkflowDefinition, error) {
	loader, err := definition.NewLoader()
	if err != nil {
		return nil, err
	}
	return loader.Load(path)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
