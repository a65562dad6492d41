package sink

import (
	"context"
	"sync"

	"github.com/Sternrassler/fred-series-harvester/pkg/output"
)

// MemorySink keeps everything pushed to it. Used by tests and library callers.
type MemorySink struct {
	mu         sync.Mutex
	items      []output.Item
	errors     []output.ErrorRecord
	eventKinds []string
	pushes     int
}

// NewMemorySink creates an empty memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// PushItems implements Sink.
func (m *MemorySink) PushItems(ctx context.Context, items []output.Item, eventKind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = append(m.items, items...)
	m.eventKinds = append(m.eventKinds, eventKind)
	m.pushes++
	observePush("memory", nil)
	return nil
}

// PushError implements Sink.
func (m *MemorySink) PushError(ctx context.Context, record output.ErrorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errors = append(m.errors, record)
	observePush("memory", nil)
	return nil
}

// Close implements Sink.
func (m *MemorySink) Close() error { return nil }

// Items returns a copy of the pushed items in push order.
func (m *MemorySink) Items() []output.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]output.Item(nil), m.items...)
}

// Errors returns a copy of the pushed error records.
func (m *MemorySink) Errors() []output.ErrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]output.ErrorRecord(nil), m.errors...)
}

// EventKinds returns the event kind of every PushItems call.
func (m *MemorySink) EventKinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.eventKinds...)
}

// Pushes returns the number of PushItems calls.
func (m *MemorySink) Pushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pushes
}
