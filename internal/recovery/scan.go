package recovery

import "strings"

// stripFences removes a markdown code fence (``` or ```json) around the
// payload. Text without a fence is returned trimmed.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	// Drop the language tag on the opening fence line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(body, "json")
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// balancedObject returns the first top-level {...} span in s. Braces inside
// JSON strings are ignored.
func balancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// objectStarts lists the offsets of every top-level '{' in s. Braces nested
// inside an open object, or inside one of its strings, are skipped.
func objectStarts(s string) []int {
	var idx []int
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			// Quotes in surrounding prose do not open strings.
			inString = depth > 0
		case '{':
			if depth == 0 {
				idx = append(idx, i)
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return idx
}

// removeTrailingCommas drops commas that directly precede a closing bracket,
// outside of strings.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// closeTruncated completes a payload that was cut off mid-object, as happens
// when the provider hits its output token limit. It closes an open string,
// drops a dangling key or comma and closes every open bracket.
func closeTruncated(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	s = s[start:]

	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				// Already complete; nothing to repair.
				return "", false
			}
		}
	}
	if len(stack) == 0 {
		return "", false
	}

	out := s
	if escaped {
		out = out[:len(out)-1]
	}
	if inString {
		out += `"`
	}
	// A trailing key with no value, or a dangling separator, cannot be closed.
	for {
		trimmed := strings.TrimRight(out, " \t\r\n")
		switch {
		case strings.HasSuffix(trimmed, ","):
			out = strings.TrimSuffix(trimmed, ",")
			continue
		case strings.HasSuffix(trimmed, ":"):
			out = trimDanglingKey(strings.TrimSuffix(trimmed, ":"))
			continue
		}
		out = trimmed
		break
	}
	for i := len(stack) - 1; i >= 0; i-- {
		out += string(stack[i])
	}
	return out, true
}

// trimDanglingKey removes a trailing "key" whose value never arrived.
func trimDanglingKey(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	if !strings.HasSuffix(s, `"`) {
		return s
	}
	open := strings.LastIndex(s[:len(s)-1], `"`)
	if open < 0 {
		return s
	}
	return s[:open]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
