package lionchief

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// CommandSet describes the wire layout of a checksum-framed command
// device: which handle commands are written to and which opcodes drive
// which actuators. The zero value is not usable; start from
// DefaultCommandSet, which carries the LionChief values, and override
// fields via configuration for other devices of the same family.
type CommandSet struct {
	// WriteHandle is the characteristic handle all commands are written to.
	WriteHandle uint16

	SpeedOpcode   byte
	ReverseOpcode byte
	BellOpcode    byte
	HornOpcode    byte
	SpeechOpcode  byte

	// MasterVolumeOpcode adjusts the overall volume; ChannelOpcode carries
	// a sub-channel byte selecting one audio source.
	MasterVolumeOpcode byte
	ChannelOpcode      byte

	// PitchSelector is the byte that turns a channel command into a pitch
	// adjustment, followed by one of Pitches.
	PitchSelector byte
	Pitches       []byte

	// channels maps audio channel names to their sub-channel byte, in
	// stable display order.
	channels *orderedmap.OrderedMap[string, byte]
}

// DefaultCommandSet returns the LionChief wire values.
func DefaultCommandSet() *CommandSet {
	channels := orderedmap.New[string, byte]()
	channels.Set("horn", 0x01)
	channels.Set("bell", 0x02)
	channels.Set("speech", 0x03)
	channels.Set("engine", 0x04)

	return &CommandSet{
		WriteHandle:        0x25,
		SpeedOpcode:        0x45,
		ReverseOpcode:      0x46,
		BellOpcode:         0x47,
		HornOpcode:         0x48,
		SpeechOpcode:       0x4d,
		MasterVolumeOpcode: 0x4c,
		ChannelOpcode:      0x44,
		PitchSelector:      0x0e,
		Pitches:            []byte{0xfe, 0xff, 0x00, 0x01, 0x02},
		channels:           channels,
	}
}

// Channel resolves an audio channel name to its sub-channel byte.
func (cs *CommandSet) Channel(name string) (byte, bool) {
	if cs.channels == nil {
		return 0, false
	}
	return cs.channels.Get(name)
}

// ChannelNames lists the audio channel names in display order.
func (cs *CommandSet) ChannelNames() []string {
	if cs.channels == nil {
		return nil
	}
	names := make([]string, 0, cs.channels.Len())
	for pair := cs.channels.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// SetChannel registers or overrides an audio channel mapping.
func (cs *CommandSet) SetChannel(name string, sub byte) {
	if cs.channels == nil {
		cs.channels = orderedmap.New[string, byte]()
	}
	cs.channels.Set(name, sub)
}

// Frame builds the final command buffer: a leading zero byte, the opcode,
// the payload, and a trailing checksum chosen so the byte sum of the whole
// buffer is congruent to 0 mod 256.
func Frame(opcode byte, payload ...byte) []byte {
	buf := make([]byte, 0, len(payload)+3)
	buf = append(buf, 0x00, opcode)
	buf = append(buf, payload...)
	return append(buf, Checksum(buf))
}

// Checksum returns the byte that closes buf to a zero sum mod 256.
func Checksum(buf []byte) byte {
	var sum byte
	for _, b := range buf {
		sum += b
	}
	return -sum // two's complement: (256 - sum) mod 256
}
