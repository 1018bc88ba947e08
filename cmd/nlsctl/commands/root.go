package commands

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"nomadscout/lib/configutil"
	"nomadscout/lib/enrichment"
	"nomadscout/lib/report"
	"nomadscout/lib/telemetry"

	"github.com/spf13/cobra"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type Config struct {
	// sqlite path or libsql url
	Db        string            `json:"db"`
	BaseUrl   string            `json:"base_url"`
	BatchSize int               `json:"batch_size"`
	// upper bound of the per-request delay in milliseconds
	MaxJitterMs int               `json:"max_jitter_ms"`
	Enrichment  enrichment.Config `json:"enrichment"`
	Report      report.Config     `json:"report"`
}

var verbose *bool

var rootCmd = &cobra.Command{
	Use:   "nlsctl",
	Short: "nlsctl crawls the Nomad List site and reconciles city data into a relational store.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
		err := telemetry.SetupFromEnv(cmd.Context(), "nlsctl")
		if err != nil && !os.IsNotExist(err) {
			fatal("failed to setup telemetry", err)
		}
	},
}

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbosity level.")
}

func ExecuteContext(ctx context.Context) {
	defer telemetry.Shutdown(context.Background())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

func readConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		fatal("failed to read config", err)
	}
	if cfg.BaseUrl == "" {
		cfg.BaseUrl = "https://nomadlist.com"
	}
	if cfg.Db == "" {
		cfg.Db = "nomadscout.db"
	}
	return cfg
}

func openDB(cfg Config) *sql.DB {
	driver := "sqlite"
	if strings.HasPrefix(cfg.Db, "libsql://") || strings.HasPrefix(cfg.Db, "http") {
		driver = "libsql"
	}
	database, err := sql.Open(driver, cfg.Db)
	if err != nil {
		fatal("failed to open db", err)
	}
	return database
}
