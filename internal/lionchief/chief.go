// Package lionchief drives a Lionel LionChief locomotive over a GATT
// client. Commands are checksum-framed byte buffers written with
// confirmation to a fixed characteristic handle; on top of the primitive
// setters it implements a bounded-retry connection lifecycle, a timed
// speed ramp, and horn sequences.
//
// Command failures are reported, not fatal: a send against a disconnected
// train returns an error and leaves the controller usable, and composite
// actions keep going when an individual step fails.
package lionchief

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/trainshed/chief/internal/gatt"
)

// Commander is the slice of the GATT client the protocol needs.
type Commander interface {
	Connect(timeout time.Duration) error
	WriteCharacteristic(handle uint16, value []byte, confirm bool) error
	Connected() bool
	Stop() error
}

// CommanderFactory builds a fresh client (and underlying session) for one
// connect attempt. Sessions are never reused after teardown, so every
// attempt starts from a new one.
type CommanderFactory func() (Commander, error)

// Options tunes protocol timing. Zero-value durations take their defaults.
type Options struct {
	// AttemptTimeout bounds a single connect attempt.
	AttemptTimeout time.Duration `default:"3s"`
	// RampInterval is the pause between ramp steps.
	RampInterval time.Duration `default:"500ms"`
	// HornLong/HornShort/HornRest are the durations behind the '-', '.'
	// and ' ' symbols of a horn sequence.
	HornLong  time.Duration `default:"1s"`
	HornShort time.Duration `default:"500ms"`
	HornRest  time.Duration `default:"500ms"`

	// OnConnectError, when set, observes each failed connect attempt.
	OnConnectError func(attempt, maxRetries int, err error)
}

// DefaultOptions returns options with all defaults applied.
func DefaultOptions() *Options {
	opts := &Options{}
	defaults.SetDefaults(opts)
	return opts
}

// Chief is a controller for one locomotive. It remembers the last
// commanded speed and effect flags, updating them only after a command is
// confirmed sent.
type Chief struct {
	logger   *logrus.Logger
	factory  CommanderFactory
	commands *CommandSet
	opts     Options

	mu     sync.Mutex
	client Commander // nil while disconnected
	speed  int
	bell   bool
	horn   bool
}

// New creates a controller. commands may be nil for the LionChief
// defaults; opts may be nil for default timing.
func New(factory CommanderFactory, commands *CommandSet, opts *Options, logger *logrus.Logger) *Chief {
	if logger == nil {
		logger = logrus.New()
	}
	if commands == nil {
		commands = DefaultCommandSet()
	}
	if opts == nil {
		opts = DefaultOptions()
	} else {
		defaults.SetDefaults(opts)
	}

	return &Chief{
		logger:   logger,
		factory:  factory,
		commands: commands,
		opts:     *opts,
	}
}

// Connected reports whether the train is currently reachable.
func (c *Chief) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil && c.client.Connected()
}

// Speed returns the last confirmed speed.
func (c *Chief) Speed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Connect attempts to connect up to maxRetries times, stopping early on
// the first success. Each failed attempt tears down its session, is
// logged, and is reported through OnConnectError; exhausting the retries
// is a reported, non-fatal outcome — the controller stays usable and
// later commands simply fail with ErrNotConnected until a reconnect.
func (c *Chief) Connect(maxRetries int) error {
	if maxRetries <= 0 {
		return gatt.ErrInvalidArgument
	}

	c.logger.WithField("max_retries", maxRetries).Info("Connecting to LionChief...")

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if c.Connected() {
			return nil
		}

		err := c.tryConnect()
		if err == nil {
			return nil
		}

		c.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"of":      maxRetries,
		}).Errorf("Error while connecting: %v", err)

		if c.opts.OnConnectError != nil {
			c.opts.OnConnectError(attempt, maxRetries, err)
		}
	}

	c.logger.Error("Could not connect to LionChief")
	return fmt.Errorf("no connection after %d attempts: %w", maxRetries, gatt.ErrNotConnected)
}

// tryConnect runs one attempt against a fresh session.
func (c *Chief) tryConnect() error {
	client, err := c.factory()
	if err != nil {
		return fmt.Errorf("session setup: %w", err)
	}

	if err := client.Connect(c.opts.AttemptTimeout); err != nil {
		_ = client.Stop() // the failed session is never reused
		return err
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

// send frames and writes one command with confirmation. Not connected is
// an error like any other; callers that must keep going (ramp, horn
// sequences) log it and continue.
func (c *Chief) send(opcode byte, payload ...byte) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil || !client.Connected() {
		return gatt.ErrNotConnected
	}

	buf := Frame(opcode, payload...)
	if err := client.WriteCharacteristic(c.commands.WriteHandle, buf, true); err != nil {
		return fmt.Errorf("command %#02x: %w", opcode, err)
	}
	return nil
}

// SetSpeed commands an absolute speed and records it once confirmed.
// The speed must fit the single payload byte.
func (c *Chief) SetSpeed(speed int) error {
	if speed < 0 || speed > 0xff {
		return fmt.Errorf("speed %d out of range [0, 255]: %w", speed, gatt.ErrInvalidArgument)
	}
	if err := c.send(c.commands.SpeedOpcode, byte(speed)); err != nil {
		return err
	}

	c.mu.Lock()
	c.speed = speed
	c.mu.Unlock()

	c.logger.WithField("speed", speed).Info("Speed set")
	return nil
}

// Ramp walks the speed from the current value to target in steps of one,
// ringing the bell for the duration of the ramp. Every intermediate speed
// is visited exactly once in monotonic order, with a pause between steps,
// and the target is always sent explicitly at the end. A failed step is
// logged and the ramp keeps going; failing to ramp is not fatal to the
// controller.
func (c *Chief) Ramp(ctx context.Context, target int) error {
	if err := c.SetBell(true); err != nil {
		c.logger.Warnf("Ramp: bell on failed: %v", err)
	}
	c.logger.WithField("target", target).Info("Starting ramp...")

	speed := c.Speed()
	for speed != target {
		if err := c.SetSpeed(speed); err != nil {
			c.logger.Warnf("Ramp: step %d failed: %v", speed, err)
		}
		if speed > target {
			speed--
		} else {
			speed++
		}
		if err := sleepCtx(ctx, c.opts.RampInterval); err != nil {
			return err
		}
	}

	if err := c.SetSpeed(target); err != nil {
		c.logger.Warnf("Ramp: final step %d failed: %v", target, err)
	}
	if err := c.SetBell(false); err != nil {
		c.logger.Warnf("Ramp: bell off failed: %v", err)
	}
	return nil
}

// Horn sounds the horn for the given duration.
func (c *Chief) Horn(ctx context.Context, d time.Duration) error {
	if err := c.SetHorn(true); err != nil {
		return err
	}
	if err := sleepCtx(ctx, d); err != nil {
		_ = c.SetHorn(false)
		return err
	}
	return c.SetHorn(false)
}

// HornSequence plays a whistle pattern: '-' is a long tone, '.' a short
// tone, ' ' a rest. Unknown symbols are rejected before anything sounds.
func (c *Chief) HornSequence(ctx context.Context, seq string) error {
	for _, sym := range seq {
		switch sym {
		case '-', '.', ' ':
		default:
			return fmt.Errorf("horn sequence symbol %q: %w", sym, gatt.ErrInvalidArgument)
		}
	}

	for _, sym := range seq {
		var err error
		switch sym {
		case '-':
			err = c.Horn(ctx, c.opts.HornLong)
		case '.':
			err = c.Horn(ctx, c.opts.HornShort)
		case ' ':
			err = sleepCtx(ctx, c.opts.HornRest)
		}
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			// A muffed note does not end the song.
			c.logger.Warnf("Horn sequence %q: %v", sym, err)
		}
	}
	return nil
}

// SetHorn turns the horn effect on or off.
func (c *Chief) SetHorn(on bool) error {
	if err := c.send(c.commands.HornOpcode, boolByte(on, 0x01, 0x00)); err != nil {
		return err
	}
	c.mu.Lock()
	c.horn = on
	c.mu.Unlock()
	return nil
}

// SetBell turns the bell effect on or off.
func (c *Chief) SetBell(on bool) error {
	if err := c.send(c.commands.BellOpcode, boolByte(on, 0x01, 0x00)); err != nil {
		return err
	}
	c.mu.Lock()
	c.bell = on
	c.mu.Unlock()
	return nil
}

// SetReverse selects the direction of travel.
func (c *Chief) SetReverse(on bool) error {
	return c.send(c.commands.ReverseOpcode, boolByte(on, 0x02, 0x01))
}

// Speak makes the locomotive play the given speech phrase.
func (c *Chief) Speak(phrase byte) error {
	return c.send(c.commands.SpeechOpcode, phrase, 0x00)
}

// SetMasterVolume adjusts the overall volume.
func (c *Chief) SetMasterVolume(volume byte) error {
	return c.send(c.commands.MasterVolumeOpcode, volume)
}

// SetChannelVolume adjusts the volume of one named audio channel
// (see CommandSet.ChannelNames).
func (c *Chief) SetChannelVolume(channel string, volume byte) error {
	sub, ok := c.commands.Channel(channel)
	if !ok {
		return fmt.Errorf("unknown audio channel %q (have %v): %w",
			channel, c.commands.ChannelNames(), gatt.ErrInvalidArgument)
	}
	return c.send(c.commands.ChannelOpcode, sub, volume)
}

// SetChannelPitch adjusts the pitch of one named audio channel. The pitch
// index selects from the device's enumerated pitch table; an out-of-range
// index is reported as an error without sending anything.
func (c *Chief) SetChannelPitch(channel string, pitch int) error {
	sub, ok := c.commands.Channel(channel)
	if !ok {
		return fmt.Errorf("unknown audio channel %q (have %v): %w",
			channel, c.commands.ChannelNames(), gatt.ErrInvalidArgument)
	}
	if pitch < 0 || pitch >= len(c.commands.Pitches) {
		return fmt.Errorf("pitch index %d out of range [0, %d): %w",
			pitch, len(c.commands.Pitches), gatt.ErrInvalidArgument)
	}
	return c.send(c.commands.ChannelOpcode, sub, c.commands.PitchSelector, c.commands.Pitches[pitch])
}

// SetBellPitch adjusts the bell pitch.
func (c *Chief) SetBellPitch(pitch int) error {
	return c.SetChannelPitch("bell", pitch)
}

// SetHornPitch adjusts the horn pitch.
func (c *Chief) SetHornPitch(pitch int) error {
	return c.SetChannelPitch("horn", pitch)
}

// Close stops the underlying client and leaves the controller in the
// disconnected state. Idempotent; Connect may be called again afterwards
// and will build a fresh session.
func (c *Chief) Close() error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Stop()
}

func boolByte(on bool, yes, no byte) byte {
	if on {
		return yes
	}
	return no
}

// sleepCtx sleeps for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
