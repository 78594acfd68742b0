package gatt

import "sync"

// SubscriptionKind records what kind of unsolicited traffic is enabled on a
// characteristic's control handle.
type SubscriptionKind int

const (
	KindNone SubscriptionKind = iota
	KindNotify
	KindIndicate
	KindBoth
)

func (k SubscriptionKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotify:
		return "notify"
	case KindIndicate:
		return "indicate"
	case KindBoth:
		return "both"
	default:
		return "unknown"
	}
}

// Encoding returns the two-byte value written to a control handle to enable
// this subscription kind.
func (k SubscriptionKind) Encoding() []byte {
	switch k {
	case KindNotify:
		return []byte{1, 0}
	case KindIndicate:
		return []byte{2, 0}
	case KindBoth:
		return []byte{3, 0}
	default:
		return []byte{0, 0}
	}
}

// Satisfies reports whether the recorded kind already covers the requested one.
func (k SubscriptionKind) Satisfies(requested SubscriptionKind) bool {
	return k == requested || k == KindBoth
}

// DesiredWrite implements the subscription merge rule. Given the requested
// kind and the kind last written to the peer, it returns the kind that
// should be recorded, the control-handle value to write, and whether a
// write is needed at all. Merges are monotonic: a Notify request on top of
// an active Indicate yields Both, never a downgrade.
func DesiredWrite(requested, previous SubscriptionKind) (next SubscriptionKind, value []byte, needed bool) {
	if previous.Satisfies(requested) {
		return previous, nil, false
	}
	if previous != KindNone && previous != requested {
		return KindBoth, KindBoth.Encoding(), true
	}
	return requested, requested.Encoding(), true
}

// NotificationHandler receives parsed notification/indication payloads.
// Handlers are tracked by identity, so implementations must be comparable
// (a pointer receiver is the usual choice). Handlers run synchronously on
// the goroutine that is waiting on the session and must return quickly; a
// slow handler stalls the next command exchange.
type NotificationHandler interface {
	HandleNotification(handle uint16, payload []byte)
}

// Router tracks per-handle subscription state and callback sets, and fans
// parsed events out to the registered handlers. It performs no I/O; the
// client decides when a control write is required via DesiredWrite.
//
// One mutex guards exactly the subscription kinds and callback sets,
// because Dispatch (invoked from whichever goroutine is currently waiting
// on the session) races with Register/Unregister from caller goroutines.
type Router struct {
	mu       sync.Mutex
	kinds    map[uint16]SubscriptionKind
	handlers map[uint16]map[NotificationHandler]struct{}
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{
		kinds:    make(map[uint16]SubscriptionKind),
		handlers: make(map[uint16]map[NotificationHandler]struct{}),
	}
}

// Register adds a handler for the given value handle. Registering the same
// handler twice is a no-op.
func (r *Router) Register(handle uint16, h NotificationHandler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.handlers[handle]
	if !ok {
		set = make(map[NotificationHandler]struct{})
		r.handlers[handle] = set
	}
	set[h] = struct{}{}
}

// Unregister removes a handler from a handle. Removing a handler that was
// never registered is a no-op. It returns the number of handlers remaining
// on the handle.
func (r *Router) Unregister(handle uint16, h NotificationHandler) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.handlers[handle]
	if !ok {
		return 0
	}
	delete(set, h)
	if len(set) == 0 {
		delete(r.handlers, handle)
		return 0
	}
	return len(set)
}

// Handlers returns the number of handlers registered for a handle.
func (r *Router) Handlers(handle uint16) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers[handle])
}

// Kind returns the subscription kind last recorded for a handle.
func (r *Router) Kind(handle uint16) SubscriptionKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kinds[handle]
}

// SetKind records the subscription kind for a handle. Called only after
// the corresponding control-handle write has actually succeeded, so the
// recorded state always equals what the peer last saw.
func (r *Router) SetKind(handle uint16, kind SubscriptionKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if kind == KindNone {
		delete(r.kinds, handle)
		return
	}
	r.kinds[handle] = kind
}

// Dispatch delivers one parsed notification/indication to every handler
// registered for the handle. A handle with no handlers is silently
// dropped, not an error. Handlers are invoked outside the router lock so
// they may register or unregister without deadlocking.
func (r *Router) Dispatch(handle uint16, payload []byte) {
	r.mu.Lock()
	set := r.handlers[handle]
	snapshot := make([]NotificationHandler, 0, len(set))
	for h := range set {
		snapshot = append(snapshot, h)
	}
	r.mu.Unlock()

	for _, h := range snapshot {
		h.HandleNotification(handle, payload)
	}
}
