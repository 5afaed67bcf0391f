// Package registry implements the Tool and Tool Registry spec §4.C
// describes: the catalog of known tools, their lifecycle transitions, and
// the restart/crash bookkeeping the health sweep drives.
package registry

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tsiyukino/yukiframe/internal/frameerr"
	"github.com/tsiyukino/yukiframe/internal/inbox"
	"github.com/tsiyukino/yukiframe/internal/observability/logging"
	"github.com/tsiyukino/yukiframe/internal/platform"
)

// MaxNameLength bounds a tool's name, matching the config package's cap on
// [tool:<name>] section headers.
const MaxNameLength = 63

// MaxSubscriptionsPerTool bounds the subscription set Subscribe grows,
// matching the config package's cap on a [tool:*] section's subscribe_to
// list.
const MaxSubscriptionsPerTool = 50

// Registry is not internally synchronized: every caller (main loop, control
// dispatcher) is expected to hold the framework's single mutex for the
// duration of a call, per spec §5's single-threaded cooperative model.
type Registry struct {
	platform platform.Platform
	log      *zap.Logger

	tools []*Tool
	index map[string]int

	maxTools int
}

// New constructs an empty Registry. maxTools <= 0 means unbounded.
func New(p platform.Platform, log *zap.Logger, maxTools int) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{
		platform: p,
		log:      log,
		index:    make(map[string]int),
		maxTools: maxTools,
	}
}

// Spec is the declarative shape Register accepts, mirroring one [tool:*]
// section of the config file.
type Spec struct {
	Name           string
	Command        string
	Description    string
	Autostart      bool
	RestartPolicy  RestartPolicy
	RestartOnCrash bool
	MaxRestarts    int
	InboxCapacity  int
	Subscriptions  []string
}

// Register adds a new Tool in Stopped state. Names must be unique,
// non-empty, and at most MaxNameLength bytes (spec §4.C register()).
func (r *Registry) Register(spec Spec) (*Tool, error) {
	if err := ValidateName(spec.Name); err != nil {
		return nil, frameerr.New(frameerr.InvalidArg, "registry.Register", err)
	}
	if len(spec.Name) > MaxNameLength {
		return nil, frameerr.New(frameerr.InvalidArg, "registry.Register", fmt.Errorf("tool name %q exceeds %d bytes", spec.Name, MaxNameLength))
	}
	if _, exists := r.index[spec.Name]; exists {
		return nil, frameerr.New(frameerr.AlreadyExists, "registry.Register", fmt.Errorf("tool %q already registered", spec.Name))
	}
	if r.maxTools > 0 && len(r.tools) >= r.maxTools {
		return nil, frameerr.New(frameerr.Generic, "registry.Register", fmt.Errorf("registry full (max %d tools)", r.maxTools))
	}
	if spec.Command == "" {
		return nil, frameerr.New(frameerr.InvalidArg, "registry.Register", fmt.Errorf("tool %q has an empty command", spec.Name))
	}

	maxRestarts := spec.MaxRestarts
	if maxRestarts <= 0 {
		maxRestarts = 3
	}
	capacity := spec.InboxCapacity
	if capacity <= 0 {
		capacity = inbox.DefaultCapacity
	}

	t := &Tool{
		name:           spec.Name,
		Command:        spec.Command,
		Description:    spec.Description,
		Autostart:      spec.Autostart,
		RestartPolicy:  spec.RestartPolicy,
		RestartOnCrash: spec.RestartOnCrash,
		MaxRestarts:    maxRestarts,
		Subscriptions:  append([]string(nil), spec.Subscriptions...),
		Status:         Stopped,
		Inbox:          inbox.New(capacity, inbox.DropOldest),
		reg:            r,
	}

	r.index[t.name] = len(r.tools)
	r.tools = append(r.tools, t)
	r.log.Info("tool registered", logging.Tool(t.Name()), zap.String("command", t.Command))
	return t, nil
}

// Unregister removes a tool, stopping it first if still running. Order of
// the remaining tools is preserved (spec §4.C: registry iteration order is
// declaration order).
func (r *Registry) Unregister(name string) error {
	idx, ok := r.index[name]
	if !ok {
		return frameerr.New(frameerr.NotFound, "registry.Unregister", fmt.Errorf("tool %q not found", name))
	}
	t := r.tools[idx]
	if t.Status != Stopped {
		_ = r.Stop(name)
	}

	r.tools = append(r.tools[:idx], r.tools[idx+1:]...)
	delete(r.index, name)
	for i := idx; i < len(r.tools); i++ {
		r.index[r.tools[i].name] = i
	}
	r.log.Info("tool unregistered", logging.Tool(name))
	return nil
}

// Find looks up a tool by name.
func (r *Registry) Find(name string) (*Tool, bool) {
	idx, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.tools[idx], true
}

// Tools returns a snapshot slice in registration order. Callers must not
// mutate it.
func (r *Registry) Tools() []*Tool {
	out := make([]*Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

func (r *Registry) Len() int { return len(r.tools) }

// Start spawns the tool's process. It's a no-op success if the tool is
// already Starting or Running (spec §4.C start() idempotency).
func (r *Registry) Start(name string) error {
	t, ok := r.Find(name)
	if !ok {
		return frameerr.New(frameerr.NotFound, "registry.Start", fmt.Errorf("tool %q not found", name))
	}
	if t.Status == Starting || t.Status == Running {
		return nil
	}

	t.Status = Starting
	h, stdin, stdout, stderr, err := r.platform.Spawn(t.Command)
	if err != nil {
		t.Status = Error
		r.log.Error("tool failed to start", logging.Tool(t.Name()), logging.Err(err))
		return frameerr.New(frameerr.ProcessFailed, "registry.Start", err)
	}

	t.handle = h
	t.stdin = stdin
	t.stdout = stdout
	t.stderr = stderr
	t.StartedAt = time.Now()
	t.LastHeartbeat = t.StartedAt
	t.Status = Running
	t.onDemandStarting = false
	r.log.Info("tool started", logging.Tool(t.Name()), logging.PID(t.PID()))
	return nil
}

// Stop requests graceful termination, escalating to force after
// gracePeriod. It's a no-op success unless the tool is currently Running
// (spec §4.C: "success (no-op) if not Running") — a Crashed or Error tool
// is left exactly as it is, matching the original framework's tool.c,
// which only acts when status == TOOL_RUNNING. The tool's inbox is
// cleared on stop unless it is an on-demand tool configured to restart on
// crash, in which case pending messages survive so a later auto-start
// picks up where it left off (mirrors the original framework's tool.c
// inbox-preservation rule).
func (r *Registry) Stop(name string) error {
	return r.stop(name, 5*time.Second)
}

func (r *Registry) stop(name string, gracePeriod time.Duration) error {
	t, ok := r.Find(name)
	if !ok {
		return frameerr.New(frameerr.NotFound, "registry.Stop", fmt.Errorf("tool %q not found", name))
	}
	if t.Status != Running {
		return nil
	}

	t.Status = Stopping
	if err := r.platform.Kill(t.handle, false); err != nil {
		r.log.Warn("graceful kill signal failed", logging.Tool(t.Name()), logging.Err(err))
	}

	res, _ := r.platform.Wait(t.handle, gracePeriod)
	if res == platform.TimedOut {
		r.log.Warn("tool did not exit gracefully, forcing", logging.Tool(t.Name()))
		_ = r.platform.Kill(t.handle, true)
		_, _ = r.platform.Wait(t.handle, 2*time.Second)
	}

	r.closeStreams(t)
	t.handle = nil
	t.Status = Stopped

	preserve := t.RestartPolicy == OnDemand && t.RestartOnCrash
	if !preserve {
		t.Inbox.Clear()
	}
	r.log.Info("tool stopped", logging.Tool(t.Name()))
	return nil
}

func (r *Registry) closeStreams(t *Tool) {
	if t.stdin != nil {
		_ = t.stdin.Close()
		t.stdin = nil
	}
	if t.stdout != nil {
		_ = t.stdout.Close()
		t.stdout = nil
	}
	if t.stderr != nil {
		_ = t.stderr.Close()
		t.stderr = nil
	}
}

// Restart stops then starts the tool, resetting its restart-count window
// the same as an operator-initiated restart (spec §4.C restart()).
func (r *Registry) Restart(name string) error {
	if err := r.Stop(name); err != nil {
		return err
	}
	t, ok := r.Find(name)
	if ok {
		t.RestartCount = 0
	}
	return r.Start(name)
}

// Subscribe appends eventType to the tool's subscription set. Duplicate
// entries (anything Matches already reports true for) are tolerated as a
// no-op; growing past MaxSubscriptionsPerTool is Generic (spec §4.C).
func (r *Registry) Subscribe(name, eventType string) error {
	t, ok := r.Find(name)
	if !ok {
		return frameerr.New(frameerr.NotFound, "registry.Subscribe", fmt.Errorf("tool %q not found", name))
	}
	if t.Matches(eventType) {
		return nil
	}
	if len(t.Subscriptions) >= MaxSubscriptionsPerTool {
		return frameerr.New(frameerr.Generic, "registry.Subscribe",
			fmt.Errorf("tool %q already has %d subscriptions (cap %d)", name, len(t.Subscriptions), MaxSubscriptionsPerTool))
	}
	t.Subscriptions = append(t.Subscriptions, eventType)
	return nil
}

// SendEvent writes msg followed by a newline directly to the tool's
// stdin, blocking until the write completes. It fails with NotFound for
// an unknown tool or Generic when the tool isn't Running (spec §4.C) —
// callers that can't tolerate blocking use SendEventNonblocking instead.
func (r *Registry) SendEvent(name, msg string) error {
	t, ok := r.Find(name)
	if !ok {
		return frameerr.New(frameerr.NotFound, "registry.SendEvent", fmt.Errorf("tool %q not found", name))
	}
	if t.Status != Running || t.stdin == nil {
		return frameerr.New(frameerr.Generic, "registry.SendEvent", fmt.Errorf("tool %q is not running", name))
	}

	line := msg
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line += "\n"
	}
	// Clear any deadline a previous non-blocking write left on stdin.
	_ = t.stdin.SetWriteDeadline(time.Time{})
	if _, err := t.stdin.Write([]byte(line)); err != nil {
		return frameerr.New(frameerr.PipeFailed, "registry.SendEvent", err)
	}
	t.EventsSent++
	return nil
}

// SendEventNonblocking writes as much of line directly to the tool's stdin
// as the pipe will currently accept, queuing the remainder in the inbox.
// When the tool isn't Running, the whole line is queued in its inbox. The
// control Dispatcher uses it to route COMMAND replies back to a tool.
func (r *Registry) SendEventNonblocking(name, line string) error {
	t, ok := r.Find(name)
	if !ok {
		return frameerr.New(frameerr.NotFound, "registry.SendEventNonblocking", fmt.Errorf("tool %q not found", name))
	}
	if t.Status != Running || t.stdin == nil {
		return t.Deliver(line)
	}

	buf := []byte(line)
	n, err := r.platform.WriteNonblocking(t.stdin, buf)
	if err != nil {
		return frameerr.New(frameerr.PipeFailed, "registry.SendEventNonblocking", err)
	}
	if n < len(buf) {
		return t.Deliver(line[n:])
	}
	t.EventsSent++
	return nil
}

// CheckHealth sweeps every Running tool, detecting process exit and
// applying the restart policy (spec §4.C check_health()). A crashed tool
// moves to Crashed; if restart_on_crash is set and the restart budget
// isn't exhausted it's restarted immediately (Start moves it on to
// Running or Error on its own), otherwise it is left Crashed — matching
// the original framework's tool_check_health, which never forces a
// non-restarting crashed tool into any other state. It's meant to be
// called once per main-loop tick.
func (r *Registry) CheckHealth() {
	now := time.Now()
	for _, t := range r.tools {
		if t.Status != Running {
			continue
		}
		if r.platform.IsRunning(t.handle) {
			t.LastHeartbeat = now
			continue
		}

		r.closeStreams(t)
		t.handle = nil
		t.Status = Crashed
		r.log.Error("tool crashed", logging.Tool(t.Name()))

		if !t.RestartOnCrash || t.RestartCount >= t.MaxRestarts {
			continue
		}

		t.RestartCount++
		r.log.Info("restarting crashed tool", logging.Tool(t.Name()),
			zap.Int("attempt", t.RestartCount), zap.Int("max_restarts", t.MaxRestarts))
		if err := r.Start(t.Name()); err != nil {
			r.log.Error("auto-restart failed", logging.Tool(t.Name()), logging.Err(err))
		}
	}
}

// DrainInboxes writes each Running tool's queued inbox messages to its
// stdin, completing the data-flow step spec §2 describes: fan-out enqueues
// into a tool's Inbox, this step is what actually delivers it to the
// child's stdin. A message that only partially fits in the pipe buffer is
// put back at the head of the inbox, trimmed to its unsent remainder, so
// the next tick resumes exactly where this one left off.
func (r *Registry) DrainInboxes() {
	for _, t := range r.tools {
		if t.Status != Running || t.stdin == nil {
			continue
		}
		for {
			msg, ok := t.Inbox.Peek()
			if !ok {
				break
			}
			n, err := r.platform.WriteNonblocking(t.stdin, []byte(msg))
			if err != nil {
				r.log.Warn("inbox drain failed", logging.Tool(t.Name()), logging.Err(err))
				break
			}
			if n == 0 {
				break
			}
			if n < len(msg) {
				t.Inbox.ReplaceHead(msg[n:])
				break
			}
			t.Inbox.Remove()
			t.EventsSent++
		}
	}
}
