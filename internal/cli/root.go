package cli

import (
	"fmt"
	"path/filepath"

	"github.com/existflow/postboard/internal/client"
	"github.com/existflow/postboard/internal/config"
	"github.com/existflow/postboard/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFile    string
	logConsole bool
	serverURL  string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "postboard",
	Short: "Postboard - threaded posts over a small REST API",
	Long: `Postboard runs the threaded post server and talks to it from the terminal.

Run 'postboard serve' to start a server, then 'postboard register' or
'postboard login' to get a session. 'postboard browse' opens the
interactive thread browser.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// CLI flags win over file and environment
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-file") {
			cfg.Log.File = logFile
		}
		if cmd.Flags().Changed("log-console") {
			cfg.Log.Console = logConsole
		}
		if cmd.Flags().Changed("server") {
			cfg.Client.ServerURL = serverURL
		}

		logConfig := logger.DefaultConfig()
		logConfig.Level = logger.ParseLevel(cfg.Log.Level)
		logConfig.FilePath = cfg.Log.File
		logConfig.Console = cfg.Log.Console
		logConfig.Format = cfg.Log.Format

		if err := logger.Init(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger.Debug("Postboard started", logger.F("command", cmd.Name()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Debug("Postboard exiting", logger.F("command", cmd.Name()))
		_ = logger.Close()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default ~/.postboard/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Enable console logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL for client commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(renewCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(passwdCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(browseCmd)
}

// newClient builds an API client bound to the saved session
func newClient() (*client.Client, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Client.ServerURL, filepath.Join(dir, "session.json"), cfg.Client.Timeout), nil
}
