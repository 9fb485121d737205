package realtime

import (
	"wellbeing-server/pkg/models"
)

// ringBuffer is a fixed-capacity event buffer. Appending past capacity
// overwrites the oldest entry; the buffer never grows.
type ringBuffer struct {
	entries []models.UsageEvent
	head    int
	size    int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{entries: make([]models.UsageEvent, capacity)}
}

func (b *ringBuffer) Append(event models.UsageEvent) {
	b.entries[b.head] = event
	b.head = (b.head + 1) % len(b.entries)
	if b.size < len(b.entries) {
		b.size++
	}
}

func (b *ringBuffer) Len() int {
	return b.size
}

// Snapshot returns the buffered events oldest first.
func (b *ringBuffer) Snapshot() []models.UsageEvent {
	out := make([]models.UsageEvent, 0, b.size)
	start := b.head - b.size
	if start < 0 {
		start += len(b.entries)
	}
	for i := 0; i < b.size; i++ {
		out = append(out, b.entries[(start+i)%len(b.entries)])
	}
	return out
}

// lastN returns up to n trailing events from an oldest-first slice.
func lastN(events []models.UsageEvent, n int) []models.UsageEvent {
	if len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}
