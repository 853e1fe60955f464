// Command worldex runs a set of worlds joined by an exchange.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/najoast/worldex/bootstrap"
	"github.com/najoast/worldex/config"
	"github.com/najoast/worldex/logging"
)

var (
	// Global flags
	configFile string
	verbose    bool

	// Run flags
	duration time.Duration
	watch    bool

	cfg    *config.Config
	logger *zap.Logger
	level  zap.AtomicLevel
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "worldex",
	Short: "Run worlds that exchange commands over a shared router",
	Long: `worldex runs one worker per configured world. Worlds never share
memory: entities and components cross between them only as commands routed
by the exchange.

Without a configuration file the filesystem, game and render demo worlds
are started.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewLoader().Load(configFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = config.LogLevelDebug
		}

		logger, level, err = logging.New(cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd runs the demo worlds
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured worlds until interrupted",
	Long: `Starts the exchange and one worker per configured world, then runs
until SIGINT or SIGTERM (or --duration elapses).

Worlds named filesystem, game and render run the demo: the filesystem world
answers configuration requests and ships the map to render, render builds
meshes and clones their ids to game, and game moves the door state to
render.`,
	Args: cobra.NoArgs,
	RunE: runWorlds,
}

// validateCmd checks a configuration file
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and list its worlds",
	Args:  cobra.NoArgs,
	RunE:  validateConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (default: search worldex.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	runCmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	runCmd.Flags().BoolVar(&watch, "watch", true, "Reload the log level when the config file changes")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runWorlds runs the application until a signal arrives
func runWorlds(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	if len(cfg.Exchange.Worlds) == 0 {
		cfg.Exchange.Worlds = demoWorlds()
	}

	d := newDemo(logger, cfg.Custom)
	opts := []bootstrap.Option{
		bootstrap.WithLogger(logger, level),
		bootstrap.WithFailureHandler(d.onFailure),
	}
	for name, spec := range d.specs() {
		if _, ok := cfg.World(name); ok {
			opts = append(opts, bootstrap.WithWorld(name, spec))
		}
	}
	if watch && configFile != "" {
		opts = append(opts, bootstrap.WithConfigFile(configFile))
	}

	app, err := bootstrap.NewApplication(cfg, opts...)
	if err != nil {
		return err
	}

	logger.Info("starting worlds", zap.Strings("worlds", cfg.WorldNames()))
	return app.Run(ctx)
}

// validateConfig prints the validated configuration
func validateConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s (%s)\n", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	if len(cfg.Exchange.Worlds) == 0 {
		fmt.Fprintln(out, "no worlds configured; run starts the demo worlds")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORLD\tMODE\tTICK\tON ERROR")
	for _, w := range cfg.Exchange.Worlds {
		mode := w.Mode
		if mode == "" {
			mode = config.ModeBlocking
		}
		tick := "-"
		if mode == config.ModePolling {
			tick = w.TickInterval.String()
		}
		policy := w.ErrorPolicy
		if policy == "" {
			policy = config.PolicyContinue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", w.Name, mode, tick, policy)
	}
	return tw.Flush()
}
