package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/postboard/internal/client"
	"github.com/existflow/postboard/internal/logger"
	"github.com/existflow/postboard/internal/tui"
	"github.com/spf13/cobra"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse your threads interactively",
	RunE:  runBrowse,
}

func runBrowse(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	if !c.IsLoggedIn() {
		return client.ErrNotLoggedIn
	}

	logger.Info("Launching thread browser")
	p := tea.NewProgram(tui.NewModel(c, treeDepth, treeLimit), tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", logger.F("error", err))
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	logger.Info("TUI exited normally")
	return nil
}
