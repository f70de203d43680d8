package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// tagPayload is the per-tag object the model is asked to produce.
type tagPayload struct {
	Values          []any  `json:"values"`
	Reasoning       string `json:"reasoning"`
	OriginalContent string `json:"original_content"`
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// parseResponse extracts the per-tag payloads from a model completion.
// It tries the raw body first, then the largest brace-delimited
// substring, which salvages completions wrapped in prose or code fences.
func parseResponse(raw string) (map[string]tagPayload, error) {
	body := stripFences(raw)

	var out map[string]tagPayload
	if err := json.Unmarshal([]byte(body), &out); err == nil {
		return out, nil
	}

	if match := jsonObjectPattern.FindString(body); match != "" {
		if err := json.Unmarshal([]byte(match), &out); err == nil {
			return out, nil
		}
	}

	return nil, fmt.Errorf("%w: %.120s", errUnparseable, raw)
}

// stripFences removes a surrounding Markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// stringValues coerces a values list to strings, tolerating models that
// answer with numbers or booleans.
func stringValues(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case float64:
			out = append(out, strconv.FormatFloat(t, 'f', -1, 64))
		case bool:
			out = append(out, strconv.FormatBool(t))
		}
	}
	return out
}
