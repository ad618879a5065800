// Package cli is the depplan command tree.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tgienger/depplan/internal/api"
	"github.com/tgienger/depplan/internal/auth"
	"github.com/tgienger/depplan/internal/config"
	"github.com/tgienger/depplan/internal/db"
	"github.com/tgienger/depplan/internal/ui/views"
)

// LogFileName is written inside the data directory while the TUI runs.
const LogFileName = "depplan.log"

// BuildInfo is stamped in at link time
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

var (
	configPath string
	apiURL     string
	logLevel   string

	build   BuildInfo
	rootCmd *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "depplan",
		Short: "Dependency Planner in the terminal",
		Long: `depplan is a terminal client for the Dependency Planner backend.

Organize project tasks into lists, declare dependencies between them and
see the result as a graph or timeline. Run without arguments to open the
board; the subcommands cover sign in and quick lookups.`,
		RunE:          runTUI, // Default action is the TUI
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/depplan/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL, e.g. https://planner.example.com/api")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(invitationsCmd)
	rootCmd.AddCommand(journalCmd)
}

// Execute runs the root command
func Execute(info BuildInfo) error {
	build = info
	rootCmd.Version = info.Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// runtime is everything a command needs, opened from config
type runtime struct {
	cfg    *config.Config
	db     *db.DB
	auth   *auth.Manager
	client *api.Client
	logOut io.Closer
}

func (r *runtime) env() *views.Env {
	return &views.Env{Client: r.client, DB: r.db, Auth: r.auth, Config: r.cfg}
}

func (r *runtime) Close() {
	if r.db != nil {
		r.db.Close()
	}
	if r.logOut != nil {
		r.logOut.Close()
	}
}

// open loads config and opens local state. The TUI owns the terminal, so
// its logs go to a file in the data directory.
func open(toFile bool) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	r := &runtime{cfg: cfg}
	var out io.Writer = os.Stderr
	if toFile {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("cli.open: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(cfg.DataDir, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("cli.open: log file: %w", err)
		}
		out = f
		r.logOut = f
	}
	if err := setupLogging(cfg.Log, out); err != nil {
		r.Close()
		return nil, err
	}

	if r.db, err = db.New(cfg.DataDir); err != nil {
		r.Close()
		return nil, err
	}
	if r.auth, err = auth.NewManager(r.db); err != nil {
		r.Close()
		return nil, err
	}
	r.client, err = api.New(api.Options{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		Tokens:            r.auth,
	})
	if err != nil {
		r.Close()
		return nil, err
	}

	log.Debug().
		Str("api", cfg.API.BaseURL).
		Str("data_dir", cfg.DataDir).
		Msg("cli.open: ready")
	return r, nil
}

func setupLogging(c config.LogConfig, out io.Writer) error {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("cli.setupLogging: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	if c.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, NoColor: out != os.Stderr}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	}
	return nil
}

// signedIn returns the runtime when a usable session exists
func signedIn() (*runtime, error) {
	r, err := open(false)
	if err != nil {
		return nil, err
	}
	if err := r.auth.Check(); err != nil {
		r.Close()
		return nil, fmt.Errorf("%w (run 'depplan login')", err)
	}
	return r, nil
}

// handleAPIError clears the session on authorization failures so the next
// command asks for a fresh login
func (r *runtime) handleAPIError(err error) error {
	if r.auth.HandleError(err) {
		return fmt.Errorf("session rejected by server, run 'depplan login': %w", err)
	}
	msg := api.ErrorMessage(err, "")
	if msg == "" {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
