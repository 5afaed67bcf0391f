// Package supervisor ties the registry, event bus, output pump, and
// control surface into the framework context spec §4.G and §5 describe: a
// single-threaded cooperative main loop that ticks roughly every 100ms,
// draining control requests, processing the event bus, pumping tool
// output, and sweeping tool health, all under one mutex.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tsiyukino/yukiframe/internal/bus"
	"github.com/tsiyukino/yukiframe/internal/config"
	"github.com/tsiyukino/yukiframe/internal/control"
	"github.com/tsiyukino/yukiframe/internal/observability/logging"
	"github.com/tsiyukino/yukiframe/internal/platform"
	"github.com/tsiyukino/yukiframe/internal/pump"
	"github.com/tsiyukino/yukiframe/internal/registry"
)

// TickInterval is the main loop's nominal sleep between iterations (spec
// §5): short enough that tool output and control requests feel immediate,
// long enough not to busy-spin a CPU core.
const TickInterval = 100 * time.Millisecond

// Version is the framework's reported version (set at build time).
var Version = "dev"

// Context is the running framework: everything one supervisor instance
// owns. Nothing here is package-level state, so more than one Context can
// exist in a process (spec §9's "instantiable more than once" note), which
// is what makes the components testable against platform.New-style fakes.
type Context struct {
	log      *zap.Logger
	plat     platform.Platform
	reg      *registry.Registry
	evbus    *bus.Bus
	pmp      *pump.Pump
	disp     *control.Dispatcher
	socket   *control.Server
	cfgPath  string
	cfg      *config.Config
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New builds a Context from a loaded config: constructs the registry, bus,
// pump, and dispatcher, registers every configured tool, and autostarts the
// ones flagged for it.
func New(log *zap.Logger, plat platform.Platform, cfgPath string, cfg *config.Config) (*Context, error) {
	if log == nil {
		log = logging.Nop()
	}
	if plat == nil {
		plat = platform.New()
	}

	c := &Context{
		log:     log,
		plat:    plat,
		reg:     registry.New(plat, log, cfg.Core.MaxTools),
		evbus:   bus.New(log, cfg.Core.MessageQueueSize),
		cfgPath: cfgPath,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}

	c.disp = control.New(log, c.reg, c.evbus, Version, c.Reload, c.Shutdown)
	c.pmp = pump.New(log, plat, c.disp)

	for _, ts := range cfg.Tools {
		if _, err := c.registerFromConfig(ts); err != nil {
			return nil, err
		}
	}

	if cfg.Core.EnableRemoteControl {
		port := cfg.Core.ControlPort
		if port <= 0 {
			port = control.DefaultPort
		}
		srv, err := control.Listen(log, c.disp, port)
		if err != nil {
			return nil, fmt.Errorf("binding control socket: %w", err)
		}
		c.socket = srv
		go srv.Serve()
		log.Info("control socket listening", zap.String("addr", srv.Addr().String()))
	}

	return c, nil
}

func (c *Context) registerFromConfig(ts config.Tool) (*registry.Tool, error) {
	_, err := c.reg.Register(registry.Spec{
		Name:           ts.Name,
		Command:        ts.Command,
		Description:    ts.Description,
		Autostart:      ts.Autostart,
		RestartPolicy:  registry.ParseRestartPolicy(ts.RestartPolicy),
		RestartOnCrash: ts.RestartOnCrash,
		MaxRestarts:    ts.MaxRestarts,
		Subscriptions:  ts.SubscribeTo,
	})
	if err != nil {
		return nil, err
	}
	t, _ := c.reg.Find(ts.Name)
	return t, nil
}

// Dispatcher exposes the control Dispatcher, e.g. for wiring an interactive
// console on the process's own stdin/stdout.
func (c *Context) Dispatcher() *control.Dispatcher { return c.disp }

// Registry exposes the tool registry, e.g. for the interactive console's
// startup banner tool count.
func (c *Context) Registry() *registry.Registry { return c.reg }

// Run starts every autostart tool and then runs the main loop until ctx is
// canceled or Shutdown is called. It always attempts a clean stop of every
// tool before returning.
func (c *Context) Run(ctx context.Context) error {
	for _, t := range c.reg.Tools() {
		if t.Autostart {
			if err := c.reg.Start(t.Name()); err != nil {
				c.log.Error("autostart failed", logging.Tool(t.Name()), logging.Err(err))
			}
		}
	}

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.stopAll()
			return nil
		case <-c.stopCh:
			c.stopAll()
			return nil
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Context) tick() {
	c.disp.Lock()
	defer c.disp.Unlock()

	c.reg.CheckHealth()

	running := make([]pump.RunningTool, 0)
	for _, t := range c.reg.Tools() {
		if t.Status == registry.Running {
			running = append(running, t)
		} else {
			c.pmp.Forget(t.Name())
		}
	}
	c.pmp.Tick(running)

	targets := make([]bus.FanoutTarget, 0, c.reg.Len())
	for _, t := range c.reg.Tools() {
		targets = append(targets, t)
	}
	c.evbus.ProcessQueue(targets)
	c.reg.DrainInboxes()
}

func (c *Context) stopAll() {
	if c.socket != nil {
		_ = c.socket.Close()
	}
	for _, t := range c.reg.Tools() {
		if t.Status != registry.Stopped {
			_ = c.reg.Stop(t.Name())
		}
	}
}

// Shutdown requests the main loop stop at its next iteration. Safe to call
// from any goroutine (e.g. the control Dispatcher's "shutdown" verb, or a
// signal handler); it's a no-op past the first call.
func (c *Context) Shutdown() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Reload re-reads the config file and applies additive changes: new
// [tool:*] sections are registered (and autostarted if flagged), and an
// existing tool's subscriptions are replaced with whatever the file now
// says. Already-running tools are never stopped or restarted by a reload
// (spec §9 supplement: reload must never disturb a tool mid-flight).
// It runs as the Dispatcher's reload verb, which already holds the shared
// mutex, so it does not lock again.
func (c *Context) Reload() (int, error) {
	cfg, err := config.LoadFromFile(c.cfgPath)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, ts := range cfg.Tools {
		if t, ok := c.reg.Find(ts.Name); ok {
			t.Subscriptions = append([]string(nil), ts.SubscribeTo...)
			t.Description = ts.Description
			updated++
			continue
		}
		newTool, err := c.registerFromConfig(ts)
		if err != nil {
			c.log.Warn("reload: failed to register new tool", logging.Tool(ts.Name), logging.Err(err))
			continue
		}
		updated++
		if newTool.Autostart {
			if err := c.reg.Start(newTool.Name()); err != nil {
				c.log.Error("reload: autostart failed", logging.Tool(newTool.Name()), logging.Err(err))
			}
		}
	}

	c.cfg = cfg
	return updated, nil
}
