package llm

import (
	"encoding/json"
	"strings"

	"event-contract-bot/internal/types"
)

// ParseDecision extracts a decision from a model reply. It tries, in
// order: a ```json fenced block, a bare JSON object, the outermost brace
// pair. Anything else becomes a PASS so a confused model can never place
// an order.
func ParseDecision(raw string) types.Decision {
	jsonStr, ok := extractJSON(raw)
	if !ok {
		return passDecision("Failed to parse model response")
	}

	var d types.Decision
	if err := json.Unmarshal([]byte(jsonStr), &d); err != nil {
		return passDecision("Failed to parse model response")
	}
	return normalize(d)
}

func extractJSON(raw string) (string, bool) {
	if i := strings.Index(raw, "```json"); i >= 0 {
		rest := raw[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest), true
	}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed, true
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], true
	}
	return "", false
}

func normalize(d types.Decision) types.Decision {
	d.Action = strings.ToUpper(strings.TrimSpace(d.Action))
	if d.Action != types.ActionBuy {
		d.Action = types.ActionPass
	}
	d.Side = types.Side(strings.ToLower(strings.TrimSpace(string(d.Side))))
	if d.Side != types.SideYes && d.Side != types.SideNo {
		d.Side = ""
	}
	return d
}

func passDecision(reason string) types.Decision {
	return types.Decision{Action: types.ActionPass, Reasoning: reason}
}
