package trace

import (
	"sync"
	"time"
)

// Kind classifies a trace entry.
type Kind string

const (
	KindEvent   Kind = "event"
	KindModCall Kind = "mod_call"
	KindModLog  Kind = "mod_log"
	KindAction  Kind = "action"
	KindError   Kind = "error"
	KindFinish  Kind = "finish"
)

// Entry is one structured trace record. Details holds small descriptive
// fields only (counts, previews, shapes), never raw logits.
type Entry struct {
	Time    time.Time      `json:"time"`
	Kind    Kind           `json:"kind"`
	Step    int            `json:"step"`
	Event   string         `json:"event,omitempty"`
	Mod     string         `json:"mod,omitempty"`
	Action  string         `json:"action,omitempty"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Log is the append-only trace of a single request.
type Log struct {
	mu        sync.Mutex
	requestID string
	entries   []Entry
	closed    bool
}

func (l *Log) RequestID() string { return l.requestID }

// Add appends e, stamping Time when unset. Entries added after the request
// was closed are dropped; a mod that outlived its time budget can still try
// to log.
func (l *Log) Add(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.entries = append(l.entries, e)
}

// Entries returns a copy of the recorded entries.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Len reports the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) close() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return append([]Entry(nil), l.entries...)
}
