package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tgienger/depplan/internal/ui"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("depplan %s (commit: %s, built: %s)\n", build.Version, build.Commit, build.Date)
	},
}

func runTUI(cmd *cobra.Command, args []string) error {
	r, err := open(true)
	if err != nil {
		return err
	}
	defer r.Close()

	log.Info().Str("version", build.Version).Msg("cli.runTUI: starting")

	app := ui.NewApp(r.env())
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running application: %w", err)
	}
	return nil
}
