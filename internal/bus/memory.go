package bus

import "context"

// MemoryRouter is an in-process MessageRouter backed by two buffered
// channels. It has no external dependency and is exercised by the tests;
// the CLI chat command does not use it and calls agent.Loop directly. A
// multi-channel deployment can swap in whatever transport (redis, nats, ...)
// backs a shared gateway process.
type MemoryRouter struct {
	inbound chan InboundMessage
	outbound chan OutboundMessage
}

// NewMemoryRouter builds a MemoryRouter with the given channel capacity.
// capacity <= 0 falls back to an unbuffered channel.
func NewMemoryRouter(capacity int) *MemoryRouter {
	if capacity < 0 {
		capacity = 0
	}
	return &MemoryRouter{
		inbound: make(chan InboundMessage, capacity),
		outbound: make(chan OutboundMessage, capacity),
	}
}

func (r *MemoryRouter) PublishInbound(msg InboundMessage) {
	r.inbound <- msg
}

func (r *MemoryRouter) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
		case msg, ok := <-r.inbound:
			return msg, ok
		case <-ctx.Done():
			return InboundMessage{}, false
	}
}

func (r *MemoryRouter) PublishOutbound(msg OutboundMessage) {
	r.outbound <- msg
}

func (r *MemoryRouter) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
		case msg, ok := <-r.outbound:
			return msg, ok
		case <-ctx.Done():
			return OutboundMessage{}, false
	}
}

// Close closes both channels. Publishing after Close panics, matching
// standard Go channel semantics; callers own shutdown ordering.
func (r *MemoryRouter) Close() {
	close(r.inbound)
	close(r.outbound)
}
