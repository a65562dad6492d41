package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Sternrassler/fred-series-harvester/pkg/output"
)

// JSONLSink writes one JSON object per line. Items carry an "eventKind"
// field when pushed with one. Error records are written as
// {"error": "..."} lines in the same stream.
type JSONLSink struct {
	mu     sync.Mutex
	w      io.Writer
	enc    *json.Encoder
	closer io.Closer
}

// jsonlItem is an item line with its billing label.
type jsonlItem struct {
	*output.Item
	EventKind string `json:"eventKind,omitempty"`
}

// NewJSONLSink writes to w. w is not closed by Close.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w, enc: json.NewEncoder(w)}
}

// OpenJSONLFile creates (or truncates) path. An empty path or "-" writes to stdout.
func OpenJSONLFile(path string) (*JSONLSink, error) {
	if path == "" || path == "-" {
		return NewJSONLSink(os.Stdout), nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open jsonl sink: %w", err)
	}
	s := NewJSONLSink(f)
	s.closer = f
	return s, nil
}

// PushItems implements Sink.
func (s *JSONLSink) PushItems(ctx context.Context, items []output.Item, eventKind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range items {
		if err := s.enc.Encode(jsonlItem{Item: &items[i], EventKind: eventKind}); err != nil {
			observePush("jsonl", err)
			return fmt.Errorf("encode item %s: %w", items[i].SeriesID, err)
		}
	}
	observePush("jsonl", nil)
	return nil
}

// PushError implements Sink.
func (s *JSONLSink) PushError(ctx context.Context, record output.ErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.enc.Encode(record)
	observePush("jsonl", err)
	return err
}

// Close implements Sink.
func (s *JSONLSink) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
