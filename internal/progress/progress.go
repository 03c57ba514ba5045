// Package progress delivers best-effort status events to an optional sink.
package progress

import (
	"github.com/m2tx/tutor_agent/internal/model"
)

// Sink receives status events. Implementations must not block.
type Sink interface {
	Publish(event model.StatusEvent)
}

// Emit publishes to sink if there is one. A panicking sink is contained so
// the caller's operation never fails because of a notification.
func Emit(sink Sink, step, message string, details map[string]any) {
	if sink == nil {
		return
	}
	defer func() { _ = recover() }()
	sink.Publish(model.StatusEvent{Step: step, Message: message, Details: details})
}

// ChannelSink buffers events on a channel and drops them when it is full.
type ChannelSink struct {
	events chan model.StatusEvent
}

func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{events: make(chan model.StatusEvent, size)}
}

func (s *ChannelSink) Publish(event model.StatusEvent) {
	select {
	case s.events <- event:
	default:
	}
}

// Events is the receive side, read by the transport.
func (s *ChannelSink) Events() <-chan model.StatusEvent {
	return s.events
}
