// internal/cli/root.go
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tsiyukino/yukiframe/internal/config"
	"github.com/tsiyukino/yukiframe/internal/control"
	"github.com/tsiyukino/yukiframe/internal/invariant"
	"github.com/tsiyukino/yukiframe/internal/observability/logging"
	"github.com/tsiyukino/yukiframe/internal/platform"
	"github.com/tsiyukino/yukiframe/internal/supervisor"
)

var (
	// build info (inject via -ldflags)
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	// global flags
	cfgPath     string
	debugFlag   bool
	interactive bool
	port        int
)

// NewRootCmd builds the root command for yuki-frame: running it with no
// subcommand loads the config, registers and autostarts its tools, and
// runs the supervisor main loop until interrupted.
func NewRootCmd() *cobra.Command {
	defaultConfig := pickDefaultConfig()

	cmd := &cobra.Command{
		Use:   "yuki-frame",
		Short: "yuki-frame (process supervisor and event bus)",
		Long:  "yuki-frame supervises a fleet of tool processes and routes line-oriented events between them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(cmd.Context(), cfgPath)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfig, "path to config file")
	cmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "enable debug logging and runtime invariant checks")
	cmd.PersistentFlags().BoolVarP(&interactive, "interactive", "i", false, "run an interactive console on stdin/stdout")
	cmd.PersistentFlags().IntVarP(&port, "port", "p", 0, "control socket port (overrides config, 0 = use config)")

	cmd.Version = Version
	cmd.SetVersionTemplate(versionTemplate())

	cmd.AddCommand(
		newConfigCmd(),
		newVersionCmd(),
	)

	return cmd
}

// Execute is called by cmd/yuki-frame/main.go
func Execute() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func runSupervisor(ctx context.Context, configPath string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if debugFlag {
		cfg.Core.EnableDebug = true
	}
	if port > 0 {
		cfg.Core.EnableRemoteControl = true
		cfg.Core.ControlPort = port
	}
	invariant.SetDebug(cfg.Core.EnableDebug)
	supervisor.Version = Version

	level := logging.ParseLevel(cfg.Core.LogLevel)
	if cfg.Core.EnableDebug {
		level = logging.ParseLevel("DEBUG")
	}
	log, err := logging.New(logging.Config{Path: cfg.Core.LogFile, Level: level})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Sync()

	sup, err := supervisor.New(log, platform.New(), configPath, cfg)
	if err != nil {
		return fmt.Errorf("init supervisor: %w", err)
	}

	// SIGHUP re-reads the config file through the dispatcher's reload verb.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			log.Info("SIGHUP received", logging.String("reload", sup.Dispatcher().Dispatch("reload")))
		}
	}()

	if interactive {
		go control.Console(log, sup.Dispatcher(), os.Stdin, os.Stdout, Version, sup.Registry().Len())
	}

	return sup.Run(ctx)
}

func versionTemplate() string {
	return `yuki-frame {{.Version}}
`
}
