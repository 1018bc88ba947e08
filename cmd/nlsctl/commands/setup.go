package commands

import (
	"log/slog"

	"nomadscout/lib/citystore"
	"nomadscout/lib/citystore/db"

	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initializes the database schema. Safe to run repeatedly.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		database := openDB(cfg)
		defer database.Close()

		err := citystore.ApplySchema(cmd.Context(), database, db.Schema)
		if err != nil {
			fatal("failed to apply schema", err)
		}
		slog.Info("schema applied", "db", cfg.Db)
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
