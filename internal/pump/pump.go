// Package pump implements the Output Pump / Line Framer spec §4.E
// describes: the per-tick routine that drains each running tool's stdout
// and stderr pipes, reassembles complete lines, and routes each one either
// to the Control Surface (COMMAND lines) or the Event Bus (everything
// else).
package pump

import (
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/tsiyukino/yukiframe/internal/event"
	"github.com/tsiyukino/yukiframe/internal/observability/logging"
	"github.com/tsiyukino/yukiframe/internal/platform"
)

// MaxLineLen bounds a single accumulated stdout line (spec §4.E); a tool
// that never emits '\n' within this many bytes has its buffer dropped
// rather than growing unbounded.
const MaxLineLen = 8191

const readChunk = 4096

// RunningTool is the accessor surface Tick needs from a live tool.
// registry.Tool satisfies this.
type RunningTool interface {
	Name() string
	Stdout() *os.File
	Stderr() *os.File
}

// Dispatcher is how the pump hands a fully framed line to the rest of the
// framework: COMMAND lines go to the Control Surface, everything else is
// published on the Event Bus. DispatchCommand is responsible for writing
// its own RESPONSE back to the sender (it has the registry handle the pump
// doesn't).
type Dispatcher interface {
	Publish(e event.Event) error
	DispatchCommand(sender, data string)
}

// Pump carries the per-tool line-reassembly buffers across ticks. It is not
// safe for concurrent use; the main loop calls Tick once per iteration
// under the framework's single mutex.
type Pump struct {
	log      *zap.Logger
	platform platform.Platform
	disp     Dispatcher

	stdoutBuf map[string]*strings.Builder
}

// New constructs an empty Pump.
func New(log *zap.Logger, p platform.Platform, disp Dispatcher) *Pump {
	if log == nil {
		log = logging.Nop()
	}
	return &Pump{
		log:       log,
		platform:  p,
		disp:      disp,
		stdoutBuf: make(map[string]*strings.Builder),
	}
}

// Forget drops any buffered partial stdout line for name, called when a
// tool stops or crashes so a stale fragment never gets glued onto a future
// run's output (spec §4.E: framer state does not survive a restart).
// stderr has no cross-tick buffer to forget; each chunk is its own log line.
func (p *Pump) Forget(name string) {
	delete(p.stdoutBuf, name)
}

// Tick drains one chunk from every running tool's stdout and stderr and
// routes whatever complete lines that produces. It never blocks: reads go
// through the platform's non-blocking primitives, so a quiet tool costs one
// failed read per stream per tick.
func (p *Pump) Tick(tools []RunningTool) {
	buf := make([]byte, readChunk)
	for _, t := range tools {
		p.drainStdout(t, buf)
		p.drainStderr(t, buf)
	}
}

func (p *Pump) drainStdout(t RunningTool, buf []byte) {
	f := t.Stdout()
	if f == nil {
		return
	}
	n, err := p.platform.ReadNonblocking(f, buf)
	if err != nil {
		p.log.Debug("stdout read error", logging.Tool(t.Name()), logging.Err(err))
		return
	}
	if n == 0 {
		return
	}

	sb := p.stdoutBuf[t.Name()]
	if sb == nil {
		sb = &strings.Builder{}
		p.stdoutBuf[t.Name()] = sb
	}

	for _, b := range buf[:n] {
		if b == '\n' {
			p.routeLine(t.Name(), sb.String())
			sb.Reset()
			continue
		}
		if sb.Len() >= MaxLineLen {
			p.log.Warn("stdout line exceeded max length, dropping", logging.Tool(t.Name()))
			sb.Reset()
		}
		sb.WriteByte(b)
	}
}

// drainStderr reads one chunk and forwards it as a single log line, per
// spec §4.E: stderr is diagnostic output, not a framed event stream, so a
// chunk spanning several newlines is acceptably merged into one line
// rather than split and reassembled the way stdout is.
func (p *Pump) drainStderr(t RunningTool, buf []byte) {
	f := t.Stderr()
	if f == nil {
		return
	}
	n, err := p.platform.ReadNonblocking(f, buf)
	if err != nil || n == 0 {
		return
	}

	line := strings.TrimSuffix(string(buf[:n]), "\n")
	if line == "" {
		return
	}
	p.log.Info("tool stderr", logging.Tool(t.Name()), zap.String("line", line))
}

func (p *Pump) routeLine(sender, line string) {
	e, err := event.Parse(line)
	if err != nil {
		p.log.Warn("malformed tool output line, dropping", logging.Tool(sender), logging.Err(err))
		return
	}
	e.Sender = sender

	if e.Type == "COMMAND" {
		p.disp.DispatchCommand(sender, e.Data)
		return
	}

	if err := p.disp.Publish(e); err != nil {
		p.log.Warn("failed to publish tool event", logging.Tool(sender), logging.EventType(e.Type), logging.Err(err))
	}
}
