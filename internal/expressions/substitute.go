package expressions

import "strings"

// SubstituteParams resolves ${name} placeholders in step parameters and
// returns a new map; the input is never mutated. Only a string that is
// exactly one placeholder is substituted, so a resolved value keeps its
// native type; a placeholder embedded in a larger string stays literal.
// Definition variables are consulted before runtime variables, and a
// name that resolves nowhere leaves the placeholder untouched.
// Substitution recurses element-wise through nested maps and slices.
func SubstituteParams(params, defVars, runVars map[string]any) map[string]any {
	result := make(map[string]any, len(params))
	for key, value := range params {
		result[key] = substituteValue(value, defVars, runVars)
	}
	return result
}

func substituteValue(v any, defVars, runVars map[string]any) any {
	switch val := v.(type) {
	case string:
		return substituteToken(val, defVars, runVars)
	case map[string]any:
		return SubstituteParams(val, defVars, runVars)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = substituteValue(item, defVars, runVars)
		}
		return out
	default:
		return v
	}
}

func substituteToken(s string, defVars, runVars map[string]any) any {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return s
	}
	name := s[2 : len(s)-1]
	if v, ok := defVars[name]; ok {
		return v
	}
	if v, ok := runVars[name]; ok {
		return v
	}
	return s
}
