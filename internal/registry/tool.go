package registry

import (
	"os"
	"strings"
	"time"

	"github.com/tsiyukino/yukiframe/internal/inbox"
	"github.com/tsiyukino/yukiframe/internal/observability/logging"
	"github.com/tsiyukino/yukiframe/internal/platform"
)

// Status is the Tool lifecycle state spec §4.C's state machine describes.
type Status int

const (
	Stopped Status = iota
	Starting
	Running
	Stopping
	Crashed
	Error
)

func (s Status) String() string {
	switch s {
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Stopping:
		return "STOPPING"
	case Crashed:
		return "CRASHED"
	case Error:
		return "ERROR"
	default:
		return "STOPPED"
	}
}

// RestartPolicy controls how a Tool reacts to process exit and to explicit
// restart requests (spec §3).
type RestartPolicy int

const (
	Always RestartPolicy = iota
	Never
	OnDemand
)

func (p RestartPolicy) String() string {
	switch p {
	case Never:
		return "never"
	case OnDemand:
		return "on_demand"
	default:
		return "always"
	}
}

func ParseRestartPolicy(s string) RestartPolicy {
	switch s {
	case "never":
		return Never
	case "on_demand", "ondemand", "on-demand":
		return OnDemand
	default:
		return Always
	}
}

// Tool is one managed child process, plus the bookkeeping spec §3 lists:
// lifecycle state, subscriptions, stream handles, counters, and its own
// bounded Inbox.
type Tool struct {
	name        string
	Command     string
	Description string

	Autostart      bool
	RestartPolicy  RestartPolicy
	RestartOnCrash bool
	MaxRestarts    int
	RestartCount   int

	Subscriptions []string

	Status Status

	handle *platform.ProcessHandle
	stdin  *os.File
	stdout *os.File
	stderr *os.File

	StartedAt     time.Time
	LastHeartbeat time.Time

	EventsSent     uint64
	EventsReceived uint64
	LogLines       uint64

	Inbox *inbox.Inbox

	// onDemandStarting guards the Event Bus's on-demand trigger (spec
	// §4.D item 3) against spawning twice for two events that land in the
	// same process_queue pass before Start has had a chance to move
	// Status off Stopped.
	onDemandStarting bool

	reg *Registry
}

// Name implements bus.FanoutTarget and is the tool's immutable registry key.
func (t *Tool) Name() string { return t.name }

// PID returns the OS process id, valid only while Status is
// Starting/Running/Stopping (spec §3 Tool Invariant ii).
func (t *Tool) PID() int {
	if t.handle == nil {
		return 0
	}
	return t.handle.PID()
}

// Stdin/Stdout/Stderr expose the tool's stream descriptors to the Output
// Pump. They are valid only while Status is Starting/Running/Stopping.
func (t *Tool) Stdin() *os.File  { return t.stdin }
func (t *Tool) Stdout() *os.File { return t.stdout }
func (t *Tool) Stderr() *os.File { return t.stderr }

// Matches implements bus.FanoutTarget: true if eventType equals a
// subscription entry, after surrounding whitespace and quotes are trimmed,
// or the tool subscribes to "*".
func (t *Tool) Matches(eventType string) bool {
	for _, sub := range t.Subscriptions {
		sub = strings.TrimSpace(strings.Trim(strings.TrimSpace(sub), `'"`))
		if sub == "*" || sub == eventType {
			return true
		}
	}
	return false
}

// Deliver implements bus.FanoutTarget: push one formatted wire line into
// the tool's inbox, logging a warning when a full DropOldest inbox evicts
// its oldest message to make room.
func (t *Tool) Deliver(line string) error {
	dropped := t.Inbox.Dropped()
	err := t.Inbox.Add(line)
	if err == nil && t.Inbox.Dropped() > dropped && t.reg != nil {
		t.reg.log.Warn("inbox full, dropped oldest message", logging.Tool(t.name))
	}
	return err
}

// ShouldAutoStart implements bus.FanoutTarget (spec §4.D item 3).
func (t *Tool) ShouldAutoStart() bool {
	return t.RestartPolicy == OnDemand && t.Status == Stopped && !t.onDemandStarting
}

// MarkStarting implements bus.FanoutTarget: flips the guard and asks the
// registry to start this tool.
func (t *Tool) MarkStarting() error {
	t.onDemandStarting = true
	return t.reg.Start(t.name)
}
