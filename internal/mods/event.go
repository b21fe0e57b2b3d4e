package mods

// EventKind identifies a generation phase.
type EventKind int

const (
	KindPrefilled EventKind = iota
	KindForwardPass
	KindSampled
	KindAdded
)

var eventNames = [...]string{
	KindPrefilled:   "Prefilled",
	KindForwardPass: "ForwardPass",
	KindSampled:     "Sampled",
	KindAdded:       "Added",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "EventKind(?)"
}

// Meta is carried by every event.
type Meta struct {
	RequestID string
	Step      int
}

// Base returns the shared event fields.
func (m Meta) Base() Meta { return m }

// Event is an immutable description of one point in generation. Mods must
// treat slices inside events as read-only.
type Event interface {
	Kind() EventKind
	Base() Meta
}

// Prefilled fires once the prompt has been loaded into the backend.
type Prefilled struct {
	Meta
	MaxSteps    int
	ContextInfo map[string]any
	InputIDs    []int
}

// ForwardPass fires with the next-token distribution before sampling.
// HiddenStates, Attention and Layer are set only by backends that expose
// activations.
type ForwardPass struct {
	Meta
	Logits       []float32
	HiddenStates []float32
	Attention    []float32
	Layer        int
	InputIDs     []int
}

// Sampled fires after a token was drawn but before it is committed.
type Sampled struct {
	Meta
	SampledToken int
}

// Added fires after tokens were committed to the output.
type Added struct {
	Meta
	AddedTokens []int
	Forced      bool
}

func (Prefilled) Kind() EventKind   { return KindPrefilled }
func (ForwardPass) Kind() EventKind { return KindForwardPass }
func (Sampled) Kind() EventKind     { return KindSampled }
func (Added) Kind() EventKind       { return KindAdded }
