package flowstdlib

import (
	"strings"

	"flowrun/internal/model"
)

// Split divides a string close to its center at separator, ported in
// meaning from original_source/flowstdlib/data/split/split.rs: if a
// separator is found at or past the midpoint, the string is cut there and
// both halves are returned as "partial" (for further splitting); otherwise
// the search continues backwards from the midpoint, and the remainder past
// the last separator found is returned as a finished "token". A string too
// short to contain a separator is returned whole as a token. Runs again
// forever, feeding "partial" back into its own input via loopback (spec
// §4.4.1.a) until every token has drained out.
func Split(inputs []model.Value) (model.Value, bool, bool, error) {
	s, ok := inputs[0].(string)
	if !ok {
		return nil, false, true, nil
	}
	sep, _ := inputs[1].(string)

	partial, token := split(s, sep)

	out := map[string]any{}
	delta := -1

	if partial != nil {
		delta += len(partial)
		arr := make([]any, len(partial))
		for i, p := range partial {
			arr[i] = p
		}
		out["partial"] = arr
	}
	out["delta"] = delta

	if hasToken, tok := tokenResult(partial, token, s); hasToken {
		out["token"] = tok
		out["token-count"] = 1
	} else {
		out["token-count"] = 0
	}

	return out, true, true, nil
}

// tokenResult reports whether split() produced a finished token. split()
// returns an empty token both for blank input and alongside the two halves
// of a cut at or past the midpoint; neither counts as a token, while a
// backward cut yields one partial plus a real token.
func tokenResult(partial []string, token, original string) (bool, string) {
	if partial != nil && token == "" {
		return false, ""
	}
	if strings.TrimSpace(original) == "" {
		return false, ""
	}
	return true, token
}

// split separates text at a separator close to its center, dividing it into
// two halves when possible (original_source split.rs `split`).
func split(input, separator string) ([]string, string) {
	text := strings.TrimSpace(input)
	if text == "" {
		return nil, ""
	}
	if len(text) < 3 {
		return nil, text
	}

	middle := len(text) / 2

	for point := middle; point < len(text); point++ {
		if string(text[point]) == separator {
			return []string{text[0:point], text[point+1:]}, ""
		}
	}

	for point := middle - 1; point >= 0; point-- {
		if string(text[point]) == separator {
			return []string{text[0:point]}, text[point+1:]
		}
	}

	return nil, text
}
