package mods

const (
	previewTokens = 10
	maxErrorText  = 100
)

// Describe summarizes a for trace records. Payloads are reduced to counts and
// short previews.
func Describe(a Action) map[string]any {
	d := map[string]any{}
	if a == nil {
		d["type"] = ActionNoop.String()
		return d
	}
	d["type"] = a.Kind().String()
	switch v := a.(type) {
	case ForceTokens:
		describeTokens(d, v.Tokens)
	case ForceOutput:
		describeTokens(d, v.Tokens)
	case AdjustedPrefill:
		describeTokens(d, v.Tokens)
		if v.MaxSteps > 0 {
			d["max_steps"] = v.MaxSteps
		}
	case Backtrack:
		d["n"] = v.N
		if len(v.Tokens) > 0 {
			describeTokens(d, v.Tokens)
		}
	case AdjustedLogits:
		d["logits_shape"] = []int{len(v.Logits)}
		if v.Temperature != nil {
			d["temperature"] = *v.Temperature
		}
	case ToolCalls:
		d["has_tool_calls"] = len(v.Calls) > 0
		names := make([]string, 0, len(v.Calls))
		for _, c := range v.Calls {
			names = append(names, c.Name)
		}
		d["tool_names"] = names
	case EmitError:
		d["error"] = truncate(v.Message, maxErrorText)
	}
	return d
}

func describeTokens(d map[string]any, tokens []int) {
	d["token_count"] = len(tokens)
	n := min(len(tokens), previewTokens)
	d["tokens_preview"] = append([]int(nil), tokens[:n]...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
