package flow

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/steer/internal/mods"
	"github.com/samcharles93/steer/internal/selfprompt"
	"github.com/samcharles93/steer/internal/strategy"
)

// File is the on-disk flow format.
//
//	name: triage
//	summary: "kind={{index .Answers \"kind\"}}"
//	questions:
//	  - name: kind
//	    prompt: "Bug or feature? "
//	    strategy: {choices: [bug, feature]}
//	    erase: prompt
//	    transitions:
//	      bug: {next: severity}
//	    default: {output: "Thanks."}
type File struct {
	Name      string         `yaml:"name"`
	Summary   string         `yaml:"summary"`
	Questions []QuestionFile `yaml:"questions"`
}

// QuestionFile is one question in a File. Completion defaults to a newline
// when omitted and must be a plain string.
type QuestionFile struct {
	Name        string               `yaml:"name"`
	Prompt      string               `yaml:"prompt"`
	Strategy    StrategyFile         `yaml:"strategy"`
	Completion  *yaml.Node           `yaml:"completion"`
	Erase       string               `yaml:"erase"`
	Argmax      bool                 `yaml:"argmax"`
	Transitions map[string]RouteFile `yaml:"transitions"`
	Default     *RouteFile           `yaml:"default"`
	// Store copies the answer into Data under this key.
	Store string `yaml:"store"`
}

// StrategyFile sets exactly one strategy.
type StrategyFile struct {
	Choices []string   `yaml:"choices"`
	Tokens  []string   `yaml:"tokens"`
	Chars   *CharsFile `yaml:"chars"`
	Until   *UntilFile `yaml:"until"`
	List    *ListFile  `yaml:"list"`
}

type CharsFile struct {
	Mode        string `yaml:"mode"`
	Max         int    `yaml:"max"`
	Min         int    `yaml:"min"`
	Stop        string `yaml:"stop"`
	IncludeStop bool   `yaml:"include_stop"`
}

type UntilFile struct {
	Start   string `yaml:"start"`
	Stop    string `yaml:"stop"`
	AnyChar bool   `yaml:"any_char"`
}

type ListFile struct {
	Element  *StrategyFile  `yaml:"element"`
	Elements []StrategyFile `yaml:"elements"`
	Open     string         `yaml:"open"`
	Close    string         `yaml:"close"`
	Wrap     string         `yaml:"wrap"`
	Sep      *string        `yaml:"sep"`
	EndWith  string         `yaml:"end_with"`
	Min      int            `yaml:"min"`
	Max      int            `yaml:"max"`
}

// RouteFile sets exactly one route.
type RouteFile struct {
	Next    string          `yaml:"next"`
	Goto    *int            `yaml:"goto"`
	Message string          `yaml:"message"`
	Summary *string         `yaml:"summary"`
	Output  string          `yaml:"output"`
	Tool    []mods.ToolCall `yaml:"tool"`
	Noop    bool            `yaml:"noop"`
}

// LoadDefinition parses a YAML flow file.
func LoadDefinition(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode flow: %w", err)
	}
	return f.Definition()
}

// Definition converts f.
func (f *File) Definition() (*Definition, error) {
	def := &Definition{Name: f.Name}
	if def.Name == "" {
		def.Name = "flow"
	}
	if f.Summary != "" {
		tpl, err := template.New("summary").Option("missingkey=zero").Parse(f.Summary)
		if err != nil {
			return nil, fmt.Errorf("%w: summary template: %v", ErrInvalidFlow, err)
		}
		def.Summary = func(st *RequestState) string {
			var b strings.Builder
			if err := tpl.Execute(&b, st); err != nil {
				return f.Summary
			}
			return b.String()
		}
	}
	for i := range f.Questions {
		q, err := f.Questions[i].question()
		if err != nil {
			return nil, fmt.Errorf("question %d (%s): %w", i, f.Questions[i].Name, err)
		}
		def.Questions = append(def.Questions, q)
	}
	return def, nil
}

func (qf *QuestionFile) question() (*Question, error) {
	spec, err := qf.Strategy.spec()
	if err != nil {
		return nil, err
	}
	erase, err := selfprompt.ParseEraseMode(qf.Erase)
	if err != nil {
		return nil, err
	}
	suffix := "\n"
	if qf.Completion != nil {
		if qf.Completion.Kind != yaml.ScalarNode || qf.Completion.Tag == "!!null" {
			return nil, &selfprompt.MalformedError{Field: "completion", Reason: fmt.Sprintf("suffix must be plain text, got %s", nodeKind(qf.Completion))}
		}
		suffix = qf.Completion.Value
	}

	q := &Question{
		Name:     qf.Name,
		Prompt:   qf.Prompt,
		Strategy: spec,
		Suffix:   suffix,
		Erase:    erase,
		Argmax:   qf.Argmax,
	}
	for answer, rf := range qf.Transitions {
		r, err := rf.route()
		if err != nil {
			return nil, fmt.Errorf("transition %q: %w", answer, err)
		}
		q.On(answer, r)
	}
	if qf.Default != nil {
		if q.Default, err = qf.Default.route(); err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
	}
	if key := qf.Store; key != "" {
		q.Assign = func(st *RequestState, answer string) { st.Data[key] = answer }
	}
	return q, nil
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.AliasNode:
		return "alias"
	}
	if n.Tag == "!!null" {
		return "null"
	}
	return "scalar"
}

func (sf *StrategyFile) spec() (strategy.Spec, error) {
	var specs []strategy.Spec
	if sf.Choices != nil {
		specs = append(specs, strategy.Choices{Alternatives: sf.Choices})
	}
	if sf.Tokens != nil {
		specs = append(specs, strategy.Tokens{Items: sf.Tokens})
	}
	if c := sf.Chars; c != nil {
		mode, err := strategy.ParseCharsMode(c.Mode)
		if err != nil {
			return nil, err
		}
		specs = append(specs, strategy.Chars{Mode: mode, MaxLength: c.Max, MinLength: c.Min, Stop: c.Stop, IncludeStop: c.IncludeStop})
	}
	if u := sf.Until; u != nil {
		specs = append(specs, strategy.Until{Start: u.Start, Stop: u.Stop, AnyChar: u.AnyChar})
	}
	if l := sf.List; l != nil {
		list := strategy.List{Open: l.Open, Close: l.Close, Wrap: l.Wrap, Sep: l.Sep, EndWith: l.EndWith, Min: l.Min, Max: l.Max}
		if l.Element != nil {
			el, err := l.Element.spec()
			if err != nil {
				return nil, fmt.Errorf("list element: %w", err)
			}
			list.Element = el
		}
		for i := range l.Elements {
			el, err := l.Elements[i].spec()
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", i, err)
			}
			list.Elements = append(list.Elements, el)
		}
		specs = append(specs, list)
	}
	if len(specs) != 1 {
		return nil, fmt.Errorf("%w: exactly one strategy must be set, got %d", ErrInvalidFlow, len(specs))
	}
	return specs[0], nil
}

func (rf RouteFile) route() (Route, error) {
	var routes []Route
	if rf.Next != "" {
		routes = append(routes, Next(rf.Next))
	}
	if rf.Goto != nil {
		routes = append(routes, Goto(*rf.Goto))
	}
	if rf.Message != "" {
		routes = append(routes, Message(rf.Message))
	}
	if rf.Summary != nil {
		routes = append(routes, Summary(*rf.Summary))
	}
	if rf.Output != "" {
		routes = append(routes, Output(rf.Output))
	}
	if rf.Tool != nil {
		calls := rf.Tool
		routes = append(routes, Tool(func(*RequestState) ([]mods.ToolCall, error) {
			out := make([]mods.ToolCall, len(calls))
			for i, c := range calls {
				if c.ID == "" {
					c.ID = "call_" + uuid.NewString()
				}
				out[i] = c
			}
			return out, nil
		}))
	}
	if rf.Noop {
		routes = append(routes, Noop())
	}
	if len(routes) != 1 {
		return Route{}, fmt.Errorf("%w: exactly one route must be set, got %d", ErrInvalidFlow, len(routes))
	}
	return routes[0], nil
}
