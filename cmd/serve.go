package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"treescope/internal/server"
	"treescope/internal/utils"
	"treescope/pkg/history"
	"treescope/pkg/logbuf"
	"treescope/pkg/scan"
	"treescope/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scan-ingestion server",
	RunE: func(cmd *cobra.Command, args []string) error {
		listen := stringSetting(cmd, "listen", "server.listen")
		secret := stringSetting(cmd, "secret", "server.secret")
		storageDir := stringSetting(cmd, "storage-dir", "storage.dir")
		historyPath := stringSetting(cmd, "history-db", "history.db")
		maxEntries, _ := cmd.Flags().GetInt("max-log-entries")
		if !cmd.Flags().Changed("max-log-entries") {
			maxEntries = viper.GetInt("logs.max_entries")
		}

		if historyPath == "" {
			historyPath = filepath.Join(storageDir, "history.sqlite")
		}
		ledger, err := history.Open(historyPath)
		if err != nil {
			return err
		}
		defer ledger.Close()

		engine := scan.New(storage.New(storageDir), ledger)
		srv := server.New(engine, logbuf.New(maxEntries), secret)

		utils.Log.Info("Storage dir: ", storageDir)
		utils.Log.Info("History db: ", historyPath)
		if secret == "" {
			utils.Log.Warn("No secret configured, mutating endpoints are open")
		}
		return srv.Start(listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (default 127.0.0.1:3111)")
	serveCmd.Flags().String("secret", "", "Shared secret required in the "+server.SecretHeader+" header on mutating requests")
	serveCmd.Flags().String("storage-dir", "", "Directory for persistent scan storage (default ./storage)")
	serveCmd.Flags().String("history-db", "", "Path to the scan history sqlite database (default <storage-dir>/history.sqlite)")
	serveCmd.Flags().Int("max-log-entries", 0, "Maximum number of log entries kept in memory (default 10000)")
}

// stringSetting prefers an explicitly set flag over the viper config value.
func stringSetting(cmd *cobra.Command, flag, key string) string {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetString(flag)
		return v
	}
	return viper.GetString(key)
}
