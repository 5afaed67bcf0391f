package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/tsiyukino/yukiframe/internal/observability/logging"
)

// idleTimeout closes a control-socket connection that sits silent this
// long, so a forgotten telnet session doesn't pin the one-client-at-a-time
// socket forever (spec §4.F).
const idleTimeout = 30 * time.Second

// Server is the loopback TCP frontend for the Dispatcher. It accepts one
// client at a time, per spec §4.F — a second connection is refused with an
// explanatory line while the first is still attached.
type Server struct {
	log  *zap.Logger
	disp *Dispatcher
	ln   net.Listener

	active chan struct{} // 1-slot semaphore enforcing one client at a time
}

// Listen binds the loopback control socket on the given port.
func Listen(log *zap.Logger, disp *Dispatcher, port int) (*Server, error) {
	if log == nil {
		log = logging.Nop()
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		log:    log,
		disp:   disp,
		ln:     ln,
		active: make(chan struct{}, 1),
	}
	s.active <- struct{}{}
	return s, nil
}

func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve accepts connections until the listener is closed (typically from
// Close, called during shutdown). It's meant to run in its own goroutine.
func (s *Server) Serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *Server) Close() error { return s.ln.Close() }

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	select {
	case <-s.active:
	default:
		fmt.Fprintln(conn, "Error: another control session is already attached")
		return
	}
	defer func() { s.active <- struct{}{} }()

	// Every connection gets its own correlation id so its commands can be
	// traced end to end through the log, the way a request id threads
	// through one HTTP request elsewhere in the stack.
	_, reqID := logging.EnsureRequestID(context.Background())
	connLog := s.log.With(logging.RequestID(reqID))

	connLog.Info("control session attached", zap.String("remote", conn.RemoteAddr().String()))
	defer connLog.Info("control session detached", zap.String("remote", conn.RemoteAddr().String()))

	scanner := bufio.NewScanner(conn)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		verb := firstVerb(line)
		if isQuitVerb(verb) {
			fmt.Fprintln(conn, "Success: goodbye")
			return
		}

		reply := s.disp.Dispatch(line)
		if _, err := fmt.Fprintln(conn, reply); err != nil {
			return
		}
		if verb == "shutdown" {
			return
		}
	}
}

// Console runs the interactive frontend on the process's own stdin/stdout,
// blocking until r reaches EOF, a quit/exit line arrives, or a shutdown
// reply has been written. Meant to run in its own goroutine when
// -i/--interactive is set.
func Console(log *zap.Logger, disp *Dispatcher, r io.Reader, w io.Writer, version string, toolCount int) {
	if log == nil {
		log = logging.Nop()
	}
	fmt.Fprintln(w, Banner(version, toolCount))
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		verb := firstVerb(line)
		if isQuitVerb(verb) {
			fmt.Fprintln(w, "Success: goodbye")
			return
		}

		reply := disp.Dispatch(line)
		fmt.Fprintln(w, reply)
		if verb == "shutdown" {
			return
		}
	}
}
