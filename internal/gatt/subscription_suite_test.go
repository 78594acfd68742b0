package gatt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// SubscriptionSuite walks a subscription through its whole lifecycle
// against one scripted channel: enable, merge, traffic, unsubscribe.
type SubscriptionSuite struct {
	suite.Suite
	client  *Client
	channel *fakeChannel
}

func (s *SubscriptionSuite) SetupTest() {
	s.channel = newFakeChannel(connectScript(func(line string) string {
		if strings.HasPrefix(line, "char-write-req ") {
			return "Characteristic value was written successfully\n"
		}
		return ""
	}))
	s.client = newTestClient(s.channel)
	s.Require().NoError(s.client.Connect(time.Second))
}

func (s *SubscriptionSuite) TearDownTest() {
	_ = s.client.Stop()
}

func (s *SubscriptionSuite) controlWrites() []string {
	var out []string
	for _, line := range s.channel.sentLines() {
		if strings.HasPrefix(line, "char-write-req 002f ") {
			out = append(out, line)
		}
	}
	return out
}

func (s *SubscriptionSuite) TestEnableDeliverDisable() {
	h := &recordingHandler{}
	s.Require().NoError(s.client.Subscribe(0x2e, h, KindNotify))
	s.Equal([]string{"char-write-req 002f 0100"}, s.controlWrites())

	// Traffic lands at the handler and in the value cache.
	s.channel.inject("Notification handle = 0x002e value: 0a 0b\r\n")
	_, err := s.client.ReadCharacteristic(0x25)
	s.Error(err) // nothing scripted for the read, but the event got drained
	s.Equal([][]byte{{0x0a, 0x0b}}, h.received(0x2e))

	cached, ok := s.client.CachedValue(0x2e)
	s.True(ok)
	s.Equal([]byte{0x0a, 0x0b}, cached)

	s.Require().NoError(s.client.Unsubscribe(0x2e, h))
	writes := s.controlWrites()
	s.Equal("char-write-req 002f 0000", writes[len(writes)-1])
	s.Equal(KindNone, s.client.Router().Kind(0x2e))
}

func (s *SubscriptionSuite) TestSecondHandlerKeepsSubscriptionAlive() {
	h1, h2 := &recordingHandler{}, &recordingHandler{}
	s.Require().NoError(s.client.Subscribe(0x2e, h1, KindNotify))
	s.Require().NoError(s.client.Subscribe(0x2e, h2, KindNotify))
	s.Len(s.controlWrites(), 1, "second notify subscription is already satisfied")

	s.Require().NoError(s.client.Unsubscribe(0x2e, h1))
	s.Len(s.controlWrites(), 1, "disable waits for the last handler")
	s.Equal(1, s.client.Router().Handlers(0x2e))

	s.Require().NoError(s.client.Unsubscribe(0x2e, h2))
	writes := s.controlWrites()
	s.Equal("char-write-req 002f 0000", writes[len(writes)-1])
}

func (s *SubscriptionSuite) TestIndicationTrafficAfterMerge() {
	h := &recordingHandler{}
	s.Require().NoError(s.client.Subscribe(0x2e, h, KindBoth))
	s.Equal([]string{"char-write-req 002f 0300"}, s.controlWrites())

	s.channel.inject("Indication   handle = 0x002e value: ff\r\n")
	_, err := s.client.ReadCharacteristic(0x25)
	s.Error(err)
	s.Equal([][]byte{{0xff}}, h.received(0x2e))
}

func TestSubscriptionSuite(t *testing.T) {
	suite.Run(t, new(SubscriptionSuite))
}
