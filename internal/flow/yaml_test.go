package flow

import (
	"errors"
	"strings"
	"testing"

	"github.com/samcharles93/steer/internal/selfprompt"
	"github.com/samcharles93/steer/internal/strategy"
)

const triage = `
name: triage
summary: "kind={{index .Answers \"kind\"}} sev={{.Data.sev}}"
questions:
  - name: kind
    prompt: "Bug or feature? "
    strategy: {choices: [bug, feature]}
    erase: prompt
    transitions:
      Bug: {next: severity}
    default: {output: "Thanks."}
  - name: severity
    prompt: "Severity: "
    strategy:
      list:
        element: {chars: {mode: digits, max: 1, min: 1}}
        sep: ","
        max: 2
    completion: ""
    erase: all
    store: sev
    default: {summary: ""}
`

func TestLoadDefinition(t *testing.T) {
	t.Parallel()
	def, err := LoadDefinition(strings.NewReader(triage))
	if err != nil {
		t.Fatalf("LoadDefinition: %v", err)
	}
	if def.Name != "triage" || len(def.Questions) != 2 {
		t.Fatalf("def = %+v", def)
	}
	kind, sev := def.Questions[0], def.Questions[1]
	if kind.Suffix != "\n" || kind.Erase != selfprompt.ErasePrompt {
		t.Fatalf("kind suffix=%q erase=%v", kind.Suffix, kind.Erase)
	}
	if r := kind.resolve(newRequestState("r"), " bug "); r.Kind != RouteNext || r.Target != "severity" {
		t.Fatalf("bug route = %+v", r)
	}
	if r := kind.resolve(newRequestState("r"), "feature"); r.Kind != RouteOutput || r.Text != "Thanks." {
		t.Fatalf("default route = %+v", r)
	}
	if sev.Suffix != "" || sev.Erase != selfprompt.EraseAll {
		t.Fatalf("severity suffix=%q erase=%v", sev.Suffix, sev.Erase)
	}
	list, ok := sev.Strategy.(strategy.List)
	if !ok || list.Sep == nil || *list.Sep != "," || list.Max != 2 {
		t.Fatalf("severity strategy = %#v", sev.Strategy)
	}

	st := newRequestState("r")
	st.Answers["kind"] = "bug"
	sev.Assign(st, "3")
	if got := def.Summary(st); got != "kind=bug sev=3" {
		t.Fatalf("summary = %q", got)
	}
	if _, err := New(def); err != nil {
		t.Fatalf("New: %v", err)
	}
}

func TestLoadDefinitionRejectsNonTextCompletion(t *testing.T) {
	t.Parallel()
	for _, completion := range []string{"{a: b}", "[x]", "~"} {
		src := "questions:\n  - name: q\n    strategy: {choices: [a]}\n    completion: " + completion + "\n"
		_, err := LoadDefinition(strings.NewReader(src))
		if !errors.Is(err, selfprompt.ErrMalformedSelfPrompt) {
			t.Fatalf("completion %s: err = %v", completion, err)
		}
		var me *selfprompt.MalformedError
		if !errors.As(err, &me) || me.Field != "completion" {
			t.Fatalf("completion %s: field not reported: %v", completion, err)
		}
	}
}

func TestLoadDefinitionErrors(t *testing.T) {
	t.Parallel()
	cases := map[string]struct {
		src  string
		want error
	}{
		"two-strategies": {
			src:  "questions:\n  - name: q\n    strategy: {choices: [a], tokens: [b]}\n",
			want: ErrInvalidFlow,
		},
		"no-strategy": {
			src:  "questions:\n  - name: q\n",
			want: ErrInvalidFlow,
		},
		"two-routes": {
			src:  "questions:\n  - name: q\n    strategy: {choices: [a]}\n    default: {output: x, noop: true}\n",
			want: ErrInvalidFlow,
		},
		"bad-erase": {
			src:  "questions:\n  - name: q\n    strategy: {choices: [a]}\n    erase: sometimes\n",
			want: selfprompt.ErrMalformedSelfPrompt,
		},
		"bad-template": {
			src:  "summary: \"{{.Nope\"\nquestions:\n  - name: q\n    strategy: {choices: [a]}\n",
			want: ErrInvalidFlow,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadDefinition(strings.NewReader(tc.src))
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := LoadDefinition(strings.NewReader("questions:\n  - name: q\n    colour: red\n")); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestToolRouteFromYAMLAssignsIDs(t *testing.T) {
	t.Parallel()
	src := `
questions:
  - name: q
    strategy: {choices: [a]}
    default:
      tool:
        - name: lookup
          arguments: {key: v}
`
	def, err := LoadDefinition(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	calls, err := def.Questions[0].Default.Tool(newRequestState("r"))
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 || calls[0].Name != "lookup" || !strings.HasPrefix(calls[0].ID, "call_") {
		t.Fatalf("calls = %+v", calls)
	}
}
