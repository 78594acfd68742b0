// Package gatt implements a line-oriented GATT client on top of an
// interactive gatttool session. It serializes command exchanges behind a
// single per-client lock while still observing unsolicited notification
// and indication lines that arrive ahead of a response, and routes those
// events to registered handlers.
//
// It is not a GATT stack: services and characteristics are not
// discovered, MTU is not negotiated, and handle numbers are assumed to be
// known in advance. One client drives exactly one peripheral connection.
package gatt

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/trainshed/chief/internal/gattsession"
	"github.com/trainshed/chief/internal/groutine"
)

// Channel is the session the client drives. *gattsession.Session is the
// production implementation; tests substitute a scripted fake.
type Channel interface {
	Send(line string) error
	Await(candidates []*regexp.Regexp, timeout time.Duration) (int, string, error)
	Alive() bool
	Close() error
}

// Response and event patterns recognized in gatttool output. The
// value-carrying patterns require a line terminator so a match never fires
// on a partially received line.
var (
	connectSuccessPattern = regexp.MustCompile(`Connection successful`)
	readValuePattern      = regexp.MustCompile(`Characteristic value/descriptor: ([0-9a-fA-F][0-9a-fA-F ]*?)[\r\n]`)
	writeSuccessPattern   = regexp.MustCompile(`Characteristic value was written successfully`)
	notificationPattern   = regexp.MustCompile(`Notification handle = 0x[0-9a-fA-F]+ value: [0-9a-fA-F ]*?[\r\n]`)
	indicationPattern     = regexp.MustCompile(`Indication   handle = 0x[0-9a-fA-F]+ value: [0-9a-fA-F ]*?[\r\n]`)
	invalidFdPattern      = regexp.MustCompile(`Invalid file descriptor`)
	disconnectedPattern   = regexp.MustCompile(`Disconnected`)

	// eventPattern extracts the handle and payload from a matched
	// notification/indication line.
	eventPattern = regexp.MustCompile(`(Notification|Indication) +handle = 0x([0-9a-fA-F]+) value: ([0-9a-fA-F ]*?)[\r\n]`)
)

// ConnectionState tracks the client connection lifecycle. Connecting is an
// internal sub-state of a single connect attempt.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ClientOptions tunes client timing. Zero-value fields take their defaults.
type ClientOptions struct {
	// ExchangeTimeout bounds the wait for a command response.
	ExchangeTimeout time.Duration `default:"3s"`
	// IdlePollTimeout is how long the idle listener waits for unsolicited
	// lines per iteration while no exchange is in flight.
	IdlePollTimeout time.Duration `default:"100ms"`
	// IdleYield is how long the idle listener parks between iterations so
	// callers can grab the exchange lock.
	IdleYield time.Duration `default:"50ms"`
}

// DefaultClientOptions returns options with all defaults applied.
func DefaultClientOptions() *ClientOptions {
	opts := &ClientOptions{}
	defaults.SetDefaults(opts)
	return opts
}

// Client composes a session channel with a notification router. All
// exchanges (connect, read, write, subscription control writes) run under
// one exchange lock, so at most one command is ever outstanding against
// the session.
type Client struct {
	logger  *logrus.Logger
	session Channel
	router  *Router
	opts    ClientOptions

	exchangeMu sync.Mutex
	state      atomic.Int32
	running    atomic.Bool

	// subMu serializes subscription state changes: the merge decision, the
	// control-handle write, and recording the new kind must be one step,
	// or concurrent subscribers can clobber each other's enable writes.
	// Always taken before exchangeMu, never by the dispatch path.
	subMu sync.Mutex

	// values caches the last payload seen per handle, written from the
	// dispatching goroutine and read from caller goroutines.
	values *hashmap.Map[uint16, []byte]
}

// NewClient wraps a session channel. The returned client is running: its
// idle listener polls the session for unsolicited lines until Stop.
func NewClient(session Channel, opts *ClientOptions, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultClientOptions()
	} else {
		defaults.SetDefaults(opts)
	}

	c := &Client{
		logger:  logger,
		session: session,
		router:  NewRouter(),
		opts:    *opts,
		values:  hashmap.New[uint16, []byte](),
	}
	c.running.Store(true)

	groutine.Go(nil, "gatt-idle-listener", func(context.Context) {
		c.idleListen()
	})

	return c
}

// Router exposes the notification router, mainly for tests and for callers
// that want handler counts.
func (c *Client) Router() *Router {
	return c.router
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Connected reports whether the client currently holds a connection.
func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

// Connect issues the session-level connect command and waits for the
// success line. On timeout the session is torn down and the attempt fails
// with ErrNotConnected; retrying requires a fresh session (see the
// lionchief package's retry loop).
func (c *Client) Connect(timeout time.Duration) error {
	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	c.state.Store(int32(StateConnecting))

	if err := c.session.Send("connect"); err != nil {
		c.state.Store(int32(StateDisconnected))
		return clientErrorf(NotConnected, "connect: %v", err)
	}

	if _, err := c.await(connectSuccessPattern, timeout); err != nil {
		c.state.Store(int32(StateDisconnected))
		c.running.Store(false)
		_ = c.session.Close()
		return clientErrorf(NotConnected, "connect failed after %v: %v", timeout, err)
	}

	c.state.Store(int32(StateConnected))
	c.logger.Info("Peripheral connected")
	return nil
}

// ReadCharacteristic reads the value of a characteristic by handle.
func (c *Client) ReadCharacteristic(handle uint16) ([]byte, error) {
	if !c.Connected() {
		return nil, ErrNotConnected
	}

	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	if err := c.session.Send(fmt.Sprintf("char-read-hnd %04x", handle)); err != nil {
		return nil, clientErrorf(StreamClosed, "read handle 0x%04x: %v", handle, err)
	}

	text, err := c.await(readValuePattern, c.opts.ExchangeTimeout)
	if err != nil {
		return nil, err
	}

	m := readValuePattern.FindStringSubmatch(text)
	if m == nil {
		return nil, clientErrorf(Timeout, "unparseable value line %q", text)
	}
	return parseHexBytes(m[1])
}

// WriteCharacteristic writes a value to a handle. With confirm it issues a
// write request and waits for the confirmation line, failing with
// ErrNoResponse when none arrives in time; without confirm it issues a
// write command and returns as soon as the line is sent.
func (c *Client) WriteCharacteristic(handle uint16, value []byte, confirm bool) error {
	if !c.Connected() {
		return ErrNotConnected
	}

	suffix := "cmd"
	if confirm {
		suffix = "req"
	}
	line := fmt.Sprintf("char-write-%s %04x %s", suffix, handle, hex.EncodeToString(value))

	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	if err := c.session.Send(line); err != nil {
		return clientErrorf(StreamClosed, "write handle 0x%04x: %v", handle, err)
	}
	if !confirm {
		return nil
	}

	if _, err := c.await(writeSuccessPattern, c.opts.ExchangeTimeout); err != nil {
		if errors.Is(err, ErrTimeout) {
			return clientErrorf(NoResponse, "no confirmation for write to handle 0x%04x", handle)
		}
		return err
	}
	return nil
}

// Subscribe registers a handler for notifications/indications on a value
// handle and, when the recorded subscription state does not already cover
// the requested kind, writes the merged encoding to the control handle
// (value handle + 1). The handler set is updated regardless of whether a
// control write was needed.
func (c *Client) Subscribe(handle uint16, h NotificationHandler, kind SubscriptionKind) error {
	if kind != KindNotify && kind != KindIndicate && kind != KindBoth {
		return clientErrorf(InvalidArgument, "subscription kind %d (want notify, indicate, or both)", kind)
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.router.Register(handle, h)

	next, value, needed := DesiredWrite(kind, c.router.Kind(handle))
	if !needed {
		c.logger.WithFields(logrus.Fields{
			"handle": fmt.Sprintf("0x%04x", handle),
			"kind":   next,
		}).Debug("Subscription already satisfied, skipping control write")
		return nil
	}

	if err := c.WriteCharacteristic(handle+1, value, true); err != nil {
		return err
	}
	c.router.SetKind(handle, next)

	c.logger.WithFields(logrus.Fields{
		"handle": fmt.Sprintf("0x%04x", handle),
		"kind":   next,
	}).Debug("Subscription enabled")
	return nil
}

// Unsubscribe removes a handler from a value handle. Removing a handler
// that was never registered is a no-op. When the last handler goes away
// and a subscription is still active on the peer, the control handle is
// written back to the disabled encoding.
func (c *Client) Unsubscribe(handle uint16, h NotificationHandler) error {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	remaining := c.router.Unregister(handle, h)
	if remaining > 0 || c.router.Kind(handle) == KindNone {
		return nil
	}

	if err := c.WriteCharacteristic(handle+1, KindNone.Encoding(), true); err != nil {
		return err
	}
	c.router.SetKind(handle, KindNone)

	c.logger.WithField("handle", fmt.Sprintf("0x%04x", handle)).Debug("Subscription disabled")
	return nil
}

// CachedValue returns the last notification/indication payload observed
// for a handle, if any.
func (c *Client) CachedValue(handle uint16) ([]byte, bool) {
	return c.values.Get(handle)
}

// Stop marks the client non-running and closes the session, which unblocks
// any in-progress wait. Idempotent and callable from any state. A stopped
// client cannot be restarted; reconnection takes a fresh session and client.
func (c *Client) Stop() error {
	c.running.Store(false)
	c.state.Store(int32(StateDisconnected))
	return c.session.Close()
}

// await is the interleaved expectation at the heart of the client: every
// wait for an expected response simultaneously recognizes notification,
// indication, and disconnect lines. Events are dispatched and the wait
// restarts (the timeout deliberately resets per iteration so an event
// arriving just before a response is never lost); disconnect lines flip
// the state and fail the exchange.
//
// Must be called with the exchange lock held.
func (c *Client) await(expected *regexp.Regexp, timeout time.Duration) (string, error) {
	candidates := []*regexp.Regexp{
		expected,
		notificationPattern,
		indicationPattern,
		invalidFdPattern,
		disconnectedPattern,
	}

	for {
		idx, text, err := c.session.Await(candidates, timeout)
		if err != nil {
			switch {
			case errors.Is(err, gattsession.ErrStreamClosed):
				c.markDisconnected("session stream closed")
				return "", clientErrorf(StreamClosed, "%v", err)
			case errors.Is(err, gattsession.ErrTimeout):
				return "", clientErrorf(Timeout, "%v", err)
			default:
				return "", err
			}
		}

		switch idx {
		case 0:
			return text, nil
		case 1, 2:
			c.handleEvent(text)
		default:
			c.markDisconnected("peer disconnect line observed")
			return "", clientErrorf(NotConnected, "disconnected while waiting for %q", expected)
		}
	}
}

// handleEvent parses one notification/indication line, caches the payload,
// and hands it to the router.
func (c *Client) handleEvent(text string) {
	handle, payload, err := parseEvent(text)
	if err != nil {
		c.logger.WithField("line", text).Warnf("Dropping unparseable event: %v", err)
		return
	}

	c.values.Set(handle, payload)

	c.logger.WithFields(logrus.Fields{
		"handle":  fmt.Sprintf("0x%04x", handle),
		"payload": hex.EncodeToString(payload),
	}).Debug("Event received")

	c.router.Dispatch(handle, payload)
}

func (c *Client) markDisconnected(reason string) {
	if c.state.Swap(int32(StateDisconnected)) == int32(StateConnected) && c.running.Load() {
		c.logger.WithField("reason", reason).Warn("Peripheral unexpectedly disconnected")
	}
}

// idleListen runs on a dedicated goroutine and polls for unsolicited
// notification/indication lines whenever no command exchange is in flight.
// Each iteration holds the exchange lock for at most one short poll, then
// parks briefly so callers can claim the lock. Disconnect detection here
// proactively flips the connection state instead of leaving it to the next
// caller-initiated exchange.
func (c *Client) idleListen() {
	events := []*regexp.Regexp{
		notificationPattern,
		indicationPattern,
		invalidFdPattern,
		disconnectedPattern,
	}

	for c.running.Load() {
		c.exchangeMu.Lock()
		idx, text, err := c.session.Await(events, c.opts.IdlePollTimeout)
		c.exchangeMu.Unlock()

		switch {
		case err == nil && (idx == 0 || idx == 1):
			c.handleEvent(text)
		case err == nil:
			c.markDisconnected("peer disconnect line observed while idle")
		case errors.Is(err, gattsession.ErrStreamClosed):
			c.markDisconnected("session stream closed while idle")
			return
		case errors.Is(err, gattsession.ErrTimeout):
			// Nothing arrived; normal.
		default:
			c.logger.Warnf("Idle listener error: %v", err)
		}

		time.Sleep(c.opts.IdleYield)
	}
}

// parseEvent extracts the handle and payload bytes from a matched
// notification/indication line.
func parseEvent(text string) (uint16, []byte, error) {
	m := eventPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, nil, fmt.Errorf("line does not look like a notification or indication")
	}

	handle, err := strconv.ParseUint(m[2], 16, 16)
	if err != nil {
		return 0, nil, fmt.Errorf("bad handle %q: %w", m[2], err)
	}

	payload, err := parseHexBytes(m[3])
	if err != nil {
		return 0, nil, err
	}
	return uint16(handle), payload, nil
}

// parseHexBytes decodes a gatttool-style space-separated hex byte list.
func parseHexBytes(s string) ([]byte, error) {
	fields := strings.Fields(s)
	out := make([]byte, 0, len(fields))
	for _, f := range fields {
		b, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("bad hex byte %q: %w", f, err)
		}
		out = append(out, byte(b))
	}
	return out, nil
}
