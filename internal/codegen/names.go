package codegen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}_]`)
	underscore = regexp.MustCompile(`_+`)
)

// SanitizeName turns free text into a class-style identifier: non-word
// characters become underscores, runs collapse, edges are trimmed and the
// first letter is capitalized. Empty results become "GeneratedCode".
func SanitizeName(name string) string {
	s := nonWord.ReplaceAllString(name, "_")
	s = underscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "GeneratedCode"
	}
	r, size := utf8.DecodeRuneInString(s)
	s = string(unicode.ToUpper(r)) + s[size:]
	if unicode.IsDigit(r) {
		s = "_" + s
	}
	return s
}

// upperSnake renders a state type as an UPPER_SNAKE enum member.
func upperSnake(s string) string {
	out := nonWord.ReplaceAllString(strings.ToUpper(s), "_")
	out = strings.Trim(underscore.ReplaceAllString(out, "_"), "_")
	if out == "" {
		return "UNKNOWN"
	}
	if r, _ := utf8.DecodeRuneInString(out); unicode.IsDigit(r) {
		out = "_" + out
	}
	return out
}

// pascalCase renders a state type as a PascalCase enum member.
func pascalCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, p := range parts {
		r, size := utf8.DecodeRuneInString(p)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(p[size:])
	}
	out := b.String()
	if out == "" {
		return "Unknown"
	}
	if r, _ := utf8.DecodeRuneInString(out); unicode.IsDigit(r) {
		out = "T" + out
	}
	return out
}

// snakeCase renders a node name as a lower_snake method suffix.
func snakeCase(s string) string {
	out := nonWord.ReplaceAllString(strings.ToLower(s), "_")
	out = strings.Trim(underscore.ReplaceAllString(out, "_"), "_")
	if out == "" {
		return "node"
	}
	if r, _ := utf8.DecodeRuneInString(out); unicode.IsDigit(r) {
		out = "n_" + out
	}
	return out
}

// camelCase renders a node name as a lowerCamel method suffix.
func camelCase(s string) string {
	p := pascalCase(s)
	if p == "Unknown" {
		return "node"
	}
	r, size := utf8.DecodeRuneInString(p)
	return string(unicode.ToLower(r)) + p[size:]
}

// uniqueNamer hands out identifiers, suffixing repeats with _2, _3, ...
type uniqueNamer map[string]int

func (u uniqueNamer) name(base string) string {
	u[base]++
	if n := u[base]; n > 1 {
		return fmt.Sprintf("%s_%d", base, n)
	}
	return base
}

// commentSafe flattens text for single-line comments.
func commentSafe(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// pyQuote renders a Python string literal. Go's quoting rules are a subset
// Python accepts.
func pyQuote(s string) string {
	return strconv.Quote(s)
}

// cQuote renders a C# or C++ string literal. Control characters use fixed
// width escapes so a following hex digit cannot be absorbed.
func cQuote(s string, cpp bool) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				if cpp {
					fmt.Fprintf(&b, `\%03o`, r)
				} else {
					fmt.Fprintf(&b, `\u%04x`, r)
				}
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func shortID(id string) string {
	s := snakeCase(id)
	if len(s) > 8 {
		s = s[:8]
	}
	return s
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
