// Package gattsession owns one interactive gatttool subprocess and its
// line-oriented control stream.
//
// The external process runs on a PTY pair (gatttool refuses to run its
// interactive shell on a pipe). The master side is read by a poll-driven
// background loop that forwards raw output chunks to whichever caller is
// currently blocked in Await. Await matches the accumulated output window
// against an ordered list of candidate patterns, which is how the GATT
// client interleaves unsolicited notification lines with the response it
// is actually waiting for.
//
// At most one Await may be in flight per Session; the caller is expected
// to serialize exchanges (see the gatt package's exchange lock).
package gattsession

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"github.com/trainshed/chief/internal/groutine"
	"github.com/trainshed/chief/internal/ringchan"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Session-level errors.
var (
	// ErrSessionClosed indicates a send was attempted after the external
	// process exited or Close was called.
	ErrSessionClosed = errors.New("session closed")

	// ErrTimeout indicates no candidate pattern matched within the allotted time.
	ErrTimeout = errors.New("timed out waiting for pattern")

	// ErrStreamClosed indicates the external process ended while a caller
	// was still waiting for output.
	ErrStreamClosed = errors.New("session stream closed")
)

const (
	// pollTimeoutMs bounds how long the read loop waits for PTY readiness
	// before rechecking context cancellation.
	pollTimeoutMs = 50

	// chunkBuffer is the capacity of the chunk ring between the read loop
	// and Await. Oldest chunks are dropped under overload.
	chunkBuffer = 256

	// tailCap is how many bytes of recent raw output are retained for
	// timeout diagnostics.
	tailCap = 2048

	// exitGrace is how long Close waits for the process to exit after the
	// polite "exit" line before force-killing it.
	exitGrace = time.Second

	// promptTimeout bounds the wait for the initial interactive prompt.
	promptTimeout = time.Second
)

// promptPattern is the gatttool interactive prompt.
var promptPattern = regexp.MustCompile(`\[LE\]>`)

// Session is a live gatttool process plus the machinery to talk to it.
// Once closed it is never reused; reconnecting requires a new Session.
type Session struct {
	logger *logrus.Logger

	cmd    *exec.Cmd
	master *os.File // PTY master, our side
	slave  *os.File // PTY slave, the process side (kept open for PTY lifetime)

	chunks *ringchan.RingChan[[]byte]

	// tail keeps the last tailCap bytes of raw output for error messages.
	tailMu sync.Mutex
	tail   *ringbuffer.RingBuffer

	// window holds output already received but not yet consumed by a match.
	// Only the single in-flight Await touches it.
	window []byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closed atomic.Bool
	exited atomic.Bool
}

// New spawns an interactive gatttool session for the peripheral at address
// on the given HCI adapter and waits for the initial prompt.
func New(address, adapter string, logger *logrus.Logger) (*Session, error) {
	cmd := exec.Command("gatttool", "-b", address, "-i", adapter, "-I")
	s, err := Start(cmd, logger)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.Await([]*regexp.Regexp{promptPattern}, promptTimeout); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("gatttool did not present a prompt: %w", err)
	}
	return s, nil
}

// Start launches an arbitrary command on a fresh PTY pair and wires up the
// read loop. It does not wait for any output; New layers the gatttool
// prompt handshake on top. Exposed separately so tests can drive the
// session against a stand-in process.
func Start(cmd *exec.Cmd, logger *logrus.Logger) (*Session, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to create PTY: %w", err)
	}

	// Raw mode on the slave so the process output reaches us without the
	// line discipline echoing our own commands back.
	if _, err := term.MakeRaw(int(slave.Fd())); err != nil {
		_ = master.Close()
		_ = slave.Close()
		return nil, fmt.Errorf("failed to set PTY slave %s to raw mode: %w", slave.Name(), err)
	}

	if err := syscall.SetNonblock(int(master.Fd()), true); err != nil {
		_ = master.Close()
		_ = slave.Close()
		return nil, fmt.Errorf("failed to set PTY master to nonblocking mode: %w", err)
	}

	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	if err := cmd.Start(); err != nil {
		_ = master.Close()
		_ = slave.Close()
		return nil, fmt.Errorf("failed to start %q: %w", cmd.Path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		logger: logger,
		cmd:    cmd,
		master: master,
		slave:  slave,
		chunks: ringchan.New[[]byte](chunkBuffer),
		tail:   ringbuffer.New(tailCap),
		ctx:    ctx,
		cancel: cancel,
	}

	s.wg.Add(1)
	groutine.Go(ctx, "session-read-loop", func(context.Context) {
		s.readLoop()
	})

	groutine.Go(ctx, "session-reaper", func(context.Context) {
		// Reap the child as soon as it exits so Alive stays accurate.
		_ = cmd.Wait()
		s.exited.Store(true)
	})

	s.logger.WithFields(logrus.Fields{
		"command": cmd.Path,
		"pty":     slave.Name(),
		"pid":     cmd.Process.Pid,
	}).Debug("Session started")

	return s, nil
}

// readLoop pumps raw output from the PTY master into the chunk ring and
// the diagnostic tail. It closes the chunk ring on EOF so a blocked Await
// observes ErrStreamClosed.
func (s *Session) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("session read loop panicked (recovered): %v", r)
		}
		s.chunks.Close()
		s.wg.Done()
	}()

	master := s.master
	fd := int(master.Fd())
	pollFd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	buf := make([]byte, 4096)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		nReady, err := unix.Poll(pollFd, pollTimeoutMs)
		if err != nil && !errors.Is(err, syscall.EINTR) {
			s.logger.Warnf("session read loop poll error: %v", err)
			continue
		}
		if nReady == 0 {
			// We hold the slave FD open, so the PTY never reports EOF on
			// its own. Once the child has been reaped and the kernel buffer
			// is drained, end the stream so a blocked Await sees it.
			if s.exited.Load() {
				s.logger.Debug("session read loop exiting: process exited")
				return
			}
			continue // timeout, recheck context
		}

		n, err := master.Read(buf)
		if n > 0 {
			s.noteOutput(buf[:n])
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.chunks.Send(chunk)
		}

		if err != nil {
			switch {
			case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EINTR):
				continue
			case errors.Is(err, syscall.EBADF), errors.Is(err, io.EOF), errors.Is(err, syscall.EIO):
				// EIO is how Linux reports the slave side going away.
				s.logger.Debug("session read loop exiting: stream ended")
				return
			default:
				s.logger.Warnf("session read loop exiting on error: %v", err)
				return
			}
		}
	}
}

// noteOutput appends b to the bounded diagnostic tail, evicting the oldest
// bytes when full.
func (s *Session) noteOutput(b []byte) {
	s.tailMu.Lock()
	defer s.tailMu.Unlock()

	if over := len(b) - s.tail.Free(); over > 0 {
		discard := make([]byte, over)
		_, _ = s.tail.Read(discard)
	}
	_, _ = s.tail.Write(b)
}

// RecentOutput returns the retained tail of raw session output. Intended
// for error reporting; the tail is not consumed.
func (s *Session) RecentOutput() string {
	s.tailMu.Lock()
	defer s.tailMu.Unlock()
	return string(s.tail.Bytes(nil))
}

// Send writes one command line to the session.
func (s *Session) Send(line string) error {
	if !s.Alive() {
		return fmt.Errorf("cannot send %q: %w", line, ErrSessionClosed)
	}

	s.logger.WithField("line", line).Debug("Session send")
	if _, err := s.master.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("failed to send %q: %w", line, ErrSessionClosed)
	}
	return nil
}

// Await blocks until the session output matches one of the ordered
// candidate patterns or the timeout elapses. It returns the index of the
// matched pattern and the matched text. Matching is leftmost-in-stream
// first; candidate order breaks ties, so earlier candidates win only when
// matches start at the same offset.
//
// Output preceding and including the match is consumed; the remainder is
// retained for the next Await.
func (s *Session) Await(candidates []*regexp.Regexp, timeout time.Duration) (int, string, error) {
	if len(candidates) == 0 {
		return -1, "", fmt.Errorf("no candidate patterns")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if idx, text, ok := s.match(candidates); ok {
			return idx, text, nil
		}

		select {
		case chunk, ok := <-s.chunks.C():
			if !ok {
				// The process ended; give buffered output one last chance.
				if idx, text, ok := s.match(candidates); ok {
					return idx, text, nil
				}
				return -1, "", ErrStreamClosed
			}
			s.window = append(s.window, chunk...)
		case <-timer.C:
			return -1, "", fmt.Errorf("%w (recent output: %q)", ErrTimeout, s.RecentOutput())
		}
	}
}

// match scans the window for the earliest-starting candidate match and
// consumes through its end.
func (s *Session) match(candidates []*regexp.Regexp) (int, string, bool) {
	bestIdx, bestStart, bestEnd := -1, -1, -1
	for i, re := range candidates {
		loc := re.FindIndex(s.window)
		if loc == nil {
			continue
		}
		if bestIdx == -1 || loc[0] < bestStart {
			bestIdx, bestStart, bestEnd = i, loc[0], loc[1]
		}
	}
	if bestIdx == -1 {
		return -1, "", false
	}

	text := string(s.window[bestStart:bestEnd])
	s.window = s.window[bestEnd:]
	return bestIdx, text, true
}

// Alive reports whether the external process is still running.
func (s *Session) Alive() bool {
	return !s.closed.Load() && !s.exited.Load()
}

// Close terminates the session: a polite "exit" line, a bounded grace
// period, then SIGKILL. Idempotent. Any blocked Await observes
// ErrStreamClosed once the PTY drains.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	if !s.exited.Load() {
		_, _ = s.master.Write([]byte("exit\n"))

		deadline := time.Now().Add(exitGrace)
		for time.Now().Before(deadline) && !s.exited.Load() {
			time.Sleep(10 * time.Millisecond)
		}
	}

	if !s.exited.Load() && s.cmd.Process != nil {
		s.logger.WithField("pid", s.cmd.Process.Pid).Debug("Session did not exit gracefully, killing")
		_ = s.cmd.Process.Kill()
	}

	s.cancel()

	if err := s.master.Close(); err != nil {
		s.logger.Warnf("failed to close PTY master: %v", err)
	}
	if err := s.slave.Close(); err != nil {
		s.logger.Warnf("failed to close PTY slave: %v", err)
	}

	// Read loop exits via context cancellation or EBADF/EIO from the
	// closed master, at most one poll timeout later.
	s.wg.Wait()

	s.logger.Debug("Session closed")
	return nil
}
