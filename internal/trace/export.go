package trace

import (
	"io"
	"sync"

	"github.com/goccy/go-json"
)

// Document is the exported form of one request's trace.
type Document struct {
	RequestID string  `json:"request_id"`
	Entries   []Entry `json:"entries"`
}

// Export writes the trace of requestID as an indented JSON document.
func Export(w io.Writer, requestID string, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Document{RequestID: requestID, Entries: entries})
}

// JSONLines is a Sink writing one JSON object per entry, each tagged with its
// request id.
type JSONLines struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: w}
}

type line struct {
	RequestID string `json:"request_id"`
	Entry
}

func (j *JSONLines) Flush(requestID string, entries []Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	enc := json.NewEncoder(j.w)
	for _, e := range entries {
		if err := enc.Encode(line{RequestID: requestID, Entry: e}); err != nil {
			return err
		}
	}
	return nil
}
