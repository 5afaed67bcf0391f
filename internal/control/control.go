// Package control implements the Control Surface spec §4.F describes: one
// command Dispatcher shared by two frontends (an interactive console on the
// framework's own stdin/stdout and a loopback TCP socket), serialized by a
// single mutex so both can safely touch the registry and bus.
package control

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/tsiyukino/yukiframe/internal/event"
	"github.com/tsiyukino/yukiframe/internal/observability/logging"
	"github.com/tsiyukino/yukiframe/internal/registry"
)

// DefaultPort is the loopback control socket's default port (spec §6).
const DefaultPort = 9999

// Registry is the narrow registry surface the Dispatcher needs.
type Registry interface {
	Tools() []*registry.Tool
	Find(name string) (*registry.Tool, bool)
	Start(name string) error
	Stop(name string) error
	Restart(name string) error
	Subscribe(name, eventType string) error
	SendEvent(name, msg string) error
	SendEventNonblocking(name, line string) error
}

// Bus is the narrow bus surface the Dispatcher needs.
type Bus interface {
	Publish(e event.Event) error
	Pending() int
	Capacity() int
}

// Reloader re-reads the config file and applies additive changes (new
// [tool:*] sections, updated subscriptions) without disturbing already
// running tools.
type Reloader func() (reloaded int, err error)

// Dispatcher parses and executes control verbs. It holds the single mutex
// spec §5 describes: every call to Dispatch acquires it for the duration
// of one command, and the supervisor's main loop acquires the same lock
// (via Lock/Unlock) for the duration of one tick.
type Dispatcher struct {
	mu sync.Mutex

	log       *zap.Logger
	reg       Registry
	evbus     Bus
	version   string
	startedAt time.Time
	reload    Reloader
	shutdown  func()
}

// New constructs a Dispatcher. shutdown is called once, asynchronously, by
// the "shutdown" verb; reload may be nil if config reload isn't wired.
func New(log *zap.Logger, reg Registry, b Bus, version string, reload Reloader, shutdown func()) *Dispatcher {
	if log == nil {
		log = logging.Nop()
	}
	return &Dispatcher{
		log:       log,
		reg:       reg,
		evbus:     b,
		version:   version,
		startedAt: time.Now(),
		reload:    reload,
		shutdown:  shutdown,
	}
}

// Lock/Unlock let the supervisor's main loop serialize against control
// requests using the same mutex Dispatch uses.
func (d *Dispatcher) Lock()   { d.mu.Lock() }
func (d *Dispatcher) Unlock() { d.mu.Unlock() }

// Publish implements pump.Dispatcher.
func (d *Dispatcher) Publish(e event.Event) error {
	return d.evbus.Publish(e)
}

// DispatchCommand implements pump.Dispatcher: a tool wrote a COMMAND|... line
// to its stdout. The reply goes back to the sender as a RESPONSE line on its
// stdin, per spec §4.F. The pump calls it from inside the main loop's tick,
// which already holds the shared mutex, so it does not lock again.
func (d *Dispatcher) DispatchCommand(sender, data string) {
	reply := d.dispatchLocked(data)
	line := event.Format(event.Event{Type: "RESPONSE", Sender: "framework", Data: reply})
	if err := d.reg.SendEventNonblocking(sender, line); err != nil {
		d.log.Warn("failed to deliver command response", logging.Tool(sender), logging.Err(err))
	}
}

// Dispatch parses and runs one command line, returning the human-readable
// response text (never including a trailing newline). It locks the shared
// mutex for its own duration.
func (d *Dispatcher) Dispatch(line string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatchLocked(line)
}

func (d *Dispatcher) dispatchLocked(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "Error: empty command (try 'help')"
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "list":
		return d.cmdList()
	case "start":
		return d.cmdOne(args, d.reg.Start, "started")
	case "stop":
		return d.cmdOne(args, d.reg.Stop, "stopped")
	case "restart":
		return d.cmdOne(args, d.reg.Restart, "restarted")
	case "status":
		return d.cmdStatus(args)
	case "uptime":
		return d.cmdUptime()
	case "version":
		return fmt.Sprintf("yuki-frame %s", d.version)
	case "subscribe":
		return d.cmdSubscribe(args)
	case "send":
		return d.cmdSend(args, line)
	case "shutdown":
		return d.cmdShutdown()
	case "reload":
		return d.cmdReload()
	case "help":
		return cmdHelp()
	default:
		return fmt.Sprintf("Error: unknown command %q (try 'help')", verb)
	}
}

func (d *Dispatcher) cmdOne(args []string, fn func(string) error, verbPast string) string {
	if len(args) != 1 {
		return "Error: expected exactly one tool name"
	}
	if err := fn(args[0]); err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("Success: Tool '%s' %s", args[0], verbPast)
}

func (d *Dispatcher) cmdSubscribe(args []string) string {
	if len(args) != 2 {
		return "Error: expected a tool name and an event type"
	}
	if err := d.reg.Subscribe(args[0], args[1]); err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("Success: Tool '%s' subscribed to '%s'", args[0], args[1])
}

// cmdSend forwards whatever follows the tool name on the raw command line
// as one message, since the message itself may contain spaces and so can't
// be recovered from the whitespace-split args alone.
func (d *Dispatcher) cmdSend(args []string, line string) string {
	if len(args) < 2 {
		return "Error: expected a tool name and a message"
	}
	name := args[0]
	afterVerb := strings.TrimLeftFunc(line, unicode.IsSpace)
	afterVerb = afterVerb[strings.IndexFunc(afterVerb, unicode.IsSpace):]
	idx := strings.Index(afterVerb, name)
	msg := strings.TrimSpace(afterVerb[idx+len(name):])
	if err := d.reg.SendEvent(name, msg); err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("Success: message sent to '%s'", name)
}

func (d *Dispatcher) cmdList() string {
	tools := d.reg.Tools()
	if len(tools) == 0 {
		return "no tools registered"
	}
	sorted := append([]*registry.Tool(nil), tools...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })

	rows := make([]row, 0, len(sorted))
	for _, t := range sorted {
		rows = append(rows, row{
			name:   t.Name(),
			status: t.Status.String(),
			pid:    t.PID(),
		})
	}
	return renderList(rows)
}

func (d *Dispatcher) cmdStatus(args []string) string {
	if len(args) == 0 {
		return d.cmdList()
	}
	t, ok := d.reg.Find(args[0])
	if !ok {
		return fmt.Sprintf("Error: tool %q not found", args[0])
	}
	return renderStatus(t)
}

func (d *Dispatcher) cmdUptime() string {
	return fmt.Sprintf("uptime: %s", time.Since(d.startedAt).Round(time.Second))
}

func (d *Dispatcher) cmdShutdown() string {
	if d.shutdown != nil {
		go d.shutdown()
	}
	return "Success: shutting down"
}

func (d *Dispatcher) cmdReload() string {
	if d.reload == nil {
		return "Error: reload not supported"
	}
	n, err := d.reload()
	if err != nil {
		return fmt.Sprintf("Error: reload failed: %v", err)
	}
	return fmt.Sprintf("Success: reload applied (%d tool section(s) updated)", n)
}

func cmdHelp() string {
	return strings.Join([]string{
		"available commands:",
		"  list                     list all registered tools",
		"  start <name>             start a stopped tool",
		"  stop <name>              stop a running tool",
		"  restart <name>           stop then start a tool",
		"  status [name]            show detail for one tool, or list all",
		"  subscribe <name> <type>  add an event-type subscription to a tool",
		"  send <name> <message>    write a message straight to a tool's stdin",
		"  uptime                   show framework uptime",
		"  version                  show framework version",
		"  reload                   re-read the config file additively",
		"  shutdown                 stop every tool and exit",
		"  quit, exit               detach from this console or socket session",
		"  help                     show this message",
	}, "\n")
}

// firstVerb returns the lowercased first whitespace-delimited token of
// line, or "" if line is blank. Console and Server use it to recognise
// quit/exit and shutdown before (or instead of) handing the line to
// Dispatch, since those two terminate the session itself rather than
// just producing a reply (spec §4.F).
func firstVerb(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

func isQuitVerb(verb string) bool {
	return verb == "quit" || verb == "exit"
}

type row struct {
	name   string
	status string
	pid    int
}
