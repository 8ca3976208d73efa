package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/existflow/postboard/internal/logger"
	"github.com/existflow/postboard/internal/store"
	"github.com/existflow/postboard/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Long: `Run the API server until interrupted.

Examples:
  postboard serve
  postboard serve --addr :9090
  POSTBOARD_DATABASE_DRIVER=postgres POSTBOARD_DATABASE_DSN=postgres://... postboard serve`,
	RunE: runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE:  runMigrate,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("Error closing server", logger.F("error", err))
		}
	}()

	return srv.Run(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = st.Close()
	}()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	fmt.Println("✅ Database is up to date")
	return nil
}
