package platform

import (
	"errors"
	"io"
	"os"
	"time"
)

// SetNonblocking is a formality here: Go's os.Pipe() files already support
// per-call deadlines, so ReadNonblocking/WriteNonblocking fold "set
// nonblocking" into each call rather than needing persistent fd state. The
// method exists so Platform satisfies the abstract contract in spec §4.A
// and so a caller porting from the original C framework finds the call it
// expects.
func (hostPlatform) SetNonblocking(f *os.File) error {
	return nil
}

// ReadNonblocking implements the non-blocking read contract by arming a
// one-millisecond read deadline before each call: if no data arrives within
// it, it returns (0, nil) instead of stalling the caller's tick.
func (hostPlatform) ReadNonblocking(f *os.File, buf []byte) (int, error) {
	if err := f.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return 0, err
	}
	n, err := f.Read(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, io.EOF) {
			return n, nil
		}
		return n, err
	}
	return n, nil
}

// WriteNonblocking mirrors ReadNonblocking for writes: a full pipe buffer
// surfaces as (0, nil) rather than blocking the caller. The deadline stays
// set on f afterwards.
func (hostPlatform) WriteNonblocking(f *os.File, buf []byte) (int, error) {
	if err := f.SetWriteDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return 0, err
	}
	n, err := f.Write(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return n, nil
		}
		return n, err
	}
	return n, nil
}
