package flow

import (
	"fmt"

	"github.com/samcharles93/steer/internal/mods"
)

// RouteKind is what happens after a question resolves.
type RouteKind int

const (
	// RouteNone means no route was configured; the flow ends quietly.
	RouteNone RouteKind = iota
	RouteNext
	RouteGoto
	RouteMessage
	RouteSummary
	RouteOutput
	RouteTool
	RouteNoop
)

var routeNames = [...]string{
	RouteNone:    "none",
	RouteNext:    "next",
	RouteGoto:    "goto",
	RouteMessage: "message",
	RouteSummary: "summary",
	RouteOutput:  "output",
	RouteTool:    "tool",
	RouteNoop:    "noop",
}

func (k RouteKind) String() string {
	if k >= 0 && int(k) < len(routeNames) {
		return routeNames[k]
	}
	return fmt.Sprintf("RouteKind(%d)", int(k))
}

// ToolFunc builds the tool calls a Tool route surfaces.
type ToolFunc func(st *RequestState) ([]mods.ToolCall, error)

// Route is a question's disposition. Build one with the constructors below.
type Route struct {
	Kind   RouteKind
	Target string
	Index  int
	Text   string
	Tool   ToolFunc
}

// Next moves to the question called name.
func Next(name string) Route { return Route{Kind: RouteNext, Target: name} }

// Goto moves to the question at idx.
func Goto(idx int) Route { return Route{Kind: RouteGoto, Index: idx} }

// Message injects text into the visible output and hands generation back to
// the model.
func Message(text string) Route { return Route{Kind: RouteMessage, Text: text} }

// Summary ends the request with the definition's summary. text is used when
// the definition has no summary builder.
func Summary(text string) Route { return Route{Kind: RouteSummary, Text: text} }

// Output ends the request with text.
func Output(text string) Route { return Route{Kind: RouteOutput, Text: text} }

// Tool ends the request with the calls fn returns.
func Tool(fn ToolFunc) Route { return Route{Kind: RouteTool, Tool: fn} }

// Noop ends the flow and lets generation continue untouched.
func Noop() Route { return Route{Kind: RouteNoop} }

// IsSet reports whether r was configured.
func (r Route) IsSet() bool { return r.Kind != RouteNone }

// moves reports whether r continues with another question.
func (r Route) moves() bool { return r.Kind == RouteNext || r.Kind == RouteGoto }
