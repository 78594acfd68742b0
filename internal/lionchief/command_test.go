package lionchief

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameSpeedExample(t *testing.T) {
	// Speed 5: 0x45 + 5 = 74, checksum 256-74 = 182.
	assert.Equal(t, []byte{0, 69, 5, 182}, Frame(0x45, 5))
}

func TestFrameSumsToZero(t *testing.T) {
	cases := [][]byte{
		nil,
		{0x00},
		{0x01},
		{0xff},
		{0xff, 0xff, 0xff},
		{0x02, 0x0e, 0xfe},
		{0x10, 0x20, 0x30, 0x40},
	}
	for _, opcode := range []byte{0x00, 0x44, 0x45, 0x48, 0x7f, 0x80, 0xff} {
		for _, payload := range cases {
			buf := Frame(opcode, payload...)

			require.Len(t, buf, len(payload)+3)
			assert.Equal(t, byte(0), buf[0], "leading byte must be zero")
			assert.Equal(t, opcode, buf[1])

			var sum byte
			for _, b := range buf {
				sum += b
			}
			assert.Equal(t, byte(0), sum, "buffer %v must sum to 0 mod 256", buf)
		}
	}
}

func TestDefaultCommandSetWireValues(t *testing.T) {
	cs := DefaultCommandSet()

	assert.Equal(t, uint16(0x25), cs.WriteHandle)
	assert.Equal(t, byte(0x45), cs.SpeedOpcode)
	assert.Equal(t, byte(0x46), cs.ReverseOpcode)
	assert.Equal(t, byte(0x47), cs.BellOpcode)
	assert.Equal(t, byte(0x48), cs.HornOpcode)
	assert.Equal(t, byte(0x4d), cs.SpeechOpcode)
	assert.Equal(t, byte(0x4c), cs.MasterVolumeOpcode)
	assert.Equal(t, byte(0x44), cs.ChannelOpcode)
	assert.Equal(t, []byte{0xfe, 0xff, 0x00, 0x01, 0x02}, cs.Pitches)
}

func TestChannelLookupAndOrder(t *testing.T) {
	cs := DefaultCommandSet()

	assert.Equal(t, []string{"horn", "bell", "speech", "engine"}, cs.ChannelNames())

	sub, ok := cs.Channel("bell")
	require.True(t, ok)
	assert.Equal(t, byte(0x02), sub)

	_, ok = cs.Channel("kazoo")
	assert.False(t, ok)

	cs.SetChannel("kazoo", 0x09)
	sub, ok = cs.Channel("kazoo")
	require.True(t, ok)
	assert.Equal(t, byte(0x09), sub)
	assert.Equal(t, []string{"horn", "bell", "speech", "engine", "kazoo"}, cs.ChannelNames())
}
