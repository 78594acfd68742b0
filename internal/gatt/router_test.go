package gatt

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu       sync.Mutex
	handles  []uint16
	payloads [][]byte
}

func (h *recordingHandler) HandleNotification(handle uint16, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handles = append(h.handles, handle)
	cp := make([]byte, len(payload))
	copy(cp, payload)
	h.payloads = append(h.payloads, cp)
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handles)
}

// received returns the payloads delivered for one handle, in order.
func (h *recordingHandler) received(handle uint16) [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out [][]byte
	for i, hd := range h.handles {
		if hd == handle {
			out = append(out, h.payloads[i])
		}
	}
	return out
}

func TestDesiredWrite(t *testing.T) {
	tests := []struct {
		name       string
		requested  SubscriptionKind
		previous   SubscriptionKind
		wantNext   SubscriptionKind
		wantValue  []byte
		wantNeeded bool
	}{
		{"NotifyFromNone", KindNotify, KindNone, KindNotify, []byte{1, 0}, true},
		{"IndicateFromNone", KindIndicate, KindNone, KindIndicate, []byte{2, 0}, true},
		{"BothFromNone", KindBoth, KindNone, KindBoth, []byte{3, 0}, true},
		{"NotifyOverIndicateMergesToBoth", KindNotify, KindIndicate, KindBoth, []byte{3, 0}, true},
		{"IndicateOverNotifyMergesToBoth", KindIndicate, KindNotify, KindBoth, []byte{3, 0}, true},
		{"BothOverNotifyMergesToBoth", KindBoth, KindNotify, KindBoth, []byte{3, 0}, true},
		{"NotifyAlreadyActive", KindNotify, KindNotify, KindNotify, nil, false},
		{"NotifyUnderBothIsSatisfied", KindNotify, KindBoth, KindBoth, nil, false},
		{"IndicateUnderBothIsSatisfied", KindIndicate, KindBoth, KindBoth, nil, false},
		{"BothAlreadyActive", KindBoth, KindBoth, KindBoth, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, value, needed := DesiredWrite(tt.requested, tt.previous)
			assert.Equal(t, tt.wantNext, next)
			assert.Equal(t, tt.wantNeeded, needed)
			if tt.wantNeeded {
				assert.Equal(t, tt.wantValue, value)
			} else {
				assert.Nil(t, value)
			}
		})
	}
}

func TestKindEncodings(t *testing.T) {
	assert.Equal(t, []byte{0, 0}, KindNone.Encoding())
	assert.Equal(t, []byte{1, 0}, KindNotify.Encoding())
	assert.Equal(t, []byte{2, 0}, KindIndicate.Encoding())
	assert.Equal(t, []byte{3, 0}, KindBoth.Encoding())
}

func TestDispatchFansOutToAllHandlers(t *testing.T) {
	r := NewRouter()
	h1 := &recordingHandler{}
	h2 := &recordingHandler{}

	r.Register(0x2e, h1)
	r.Register(0x2e, h2)
	r.Register(0x30, &recordingHandler{})

	r.Dispatch(0x2e, []byte{0x01, 0x02})

	require.Equal(t, 1, h1.count())
	require.Equal(t, 1, h2.count())
	assert.Equal(t, uint16(0x2e), h1.handles[0])
	assert.Equal(t, []byte{0x01, 0x02}, h1.payloads[0])
}

func TestDispatchWithoutHandlersIsSilent(t *testing.T) {
	r := NewRouter()
	assert.NotPanics(t, func() {
		r.Dispatch(0x2e, []byte{0xff})
	})
}

func TestUnregisterUnknownHandlerIsNoop(t *testing.T) {
	r := NewRouter()
	h := &recordingHandler{}

	assert.NotPanics(t, func() {
		assert.Equal(t, 0, r.Unregister(0x2e, h))
	})

	other := &recordingHandler{}
	r.Register(0x2e, h)
	assert.Equal(t, 1, r.Unregister(0x2e, other))
	assert.Equal(t, 1, r.Handlers(0x2e))
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := NewRouter()
	h := &recordingHandler{}

	r.Register(0x2e, h)
	r.Register(0x2e, h)
	require.Equal(t, 1, r.Handlers(0x2e))

	r.Dispatch(0x2e, []byte{0x01})
	assert.Equal(t, 1, h.count())
}

func TestKindTracking(t *testing.T) {
	r := NewRouter()
	assert.Equal(t, KindNone, r.Kind(0x2e))

	r.SetKind(0x2e, KindNotify)
	assert.Equal(t, KindNotify, r.Kind(0x2e))

	r.SetKind(0x2e, KindNone)
	assert.Equal(t, KindNone, r.Kind(0x2e))
}

func TestHandlerMayUnregisterDuringDispatch(t *testing.T) {
	r := NewRouter()
	h := &selfRemovingHandler{router: r}
	r.Register(0x2e, h)

	assert.NotPanics(t, func() {
		r.Dispatch(0x2e, []byte{0x01})
	})
	assert.Equal(t, 0, r.Handlers(0x2e))
}

type selfRemovingHandler struct {
	router *Router
}

func (h *selfRemovingHandler) HandleNotification(handle uint16, _ []byte) {
	h.router.Unregister(handle, h)
}
