package convert

// sanitizeNonFiniteJSON rewrites the non-standard numeric tokens some
// HF configs emit (Infinity, -Infinity, NaN) into 0 so encoding/json
// can parse the document. These fields are model-side metadata the
// deriver never reads, so the value does not matter. Tokens inside
// quoted strings and identifier-like runs are left untouched.
func sanitizeNonFiniteJSON(in []byte) []byte {
	if len(in) == 0 {
		return in
	}

	tokens := []string{"-Infinity", "Infinity", "NaN"}

	out := make([]byte, 0, len(in))
	var inString, escaped bool

	for i := 0; i < len(in); {
		c := in[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			out = append(out, c)
			i++
			continue
		}

		if c == '"' {
			inString = true
			out = append(out, c)
			i++
			continue
		}

		replaced := false
		for _, tok := range tokens {
			if matchesToken(in, i, tok) {
				out = append(out, '0')
				i += len(tok)
				replaced = true
				break
			}
		}

		if !replaced {
			out = append(out, c)
			i++
		}
	}

	return out
}

// matchesToken reports whether tok occurs at position at as a complete
// JSON value, i.e. bounded by structural characters or whitespace.
func matchesToken(in []byte, at int, tok string) bool {
	end := at + len(tok)
	if end > len(in) || string(in[at:end]) != tok {
		return false
	}

	if at > 0 {
		switch b := in[at-1]; {
		case b == ':' || b == ',' || b == '[':
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
		default:
			return false
		}
	}

	if end < len(in) {
		switch b := in[end]; {
		case b == ',' || b == ']' || b == '}':
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
		default:
			return false
		}
	}

	return true
}
