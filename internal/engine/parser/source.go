package parser

import (
	"strings"
)

// statement is one logical Fortran statement after continuation joining,
// comment stripping and ';' splitting.
type statement struct {
	// raw keeps character literals untouched (needed for INCLUDE).
	raw string
	// code is upper-cased with character literal contents blanked.
	code string
	line int
	// directive holds the target of a '#include' preprocessor line; such
	// statements have no code.
	directive string
}

// splitStatements turns source text into logical statements. Fixed-form
// sources use column 1 comments and column 6 continuation marks; free-form
// sources use '!' comments and '&' continuation.
func splitStatements(src string, fixedForm bool) []statement {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")

	var (
		stmts   []statement
		buf     strings.Builder
		bufLine int
		pending bool
	)

	flush := func() {
		if !pending {
			return
		}
		for _, part := range splitSemicolons(buf.String()) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			stmts = append(stmts, statement{raw: part, code: blankLiterals(part), line: bufLine})
		}
		buf.Reset()
		pending = false
	}

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#") {
			// Preprocessor lines never take part in continuation.
			if target, ok := parsePreprocessorInclude(trimmed); ok {
				stmts = append(stmts, statement{raw: trimmed, directive: target, line: lineNo})
			}
			continue
		}

		if fixedForm {
			if isFixedFormComment(line) {
				continue
			}
			body, cont := fixedFormBody(line)
			body = stripComment(body)
			if cont && pending {
				buf.WriteString(" ")
				buf.WriteString(strings.TrimSpace(body))
				continue
			}
			flush()
			if strings.TrimSpace(body) == "" {
				continue
			}
			buf.WriteString(strings.TrimSpace(body))
			bufLine = lineNo
			pending = true
			continue
		}

		body := strings.TrimSpace(stripComment(line))
		if body == "" {
			// Blank and comment-only lines may sit inside a continued
			// statement; they neither end nor extend it.
			continue
		}
		if pending {
			body = strings.TrimPrefix(body, "&")
		} else {
			bufLine = lineNo
		}
		continued := strings.HasSuffix(body, "&")
		body = strings.TrimSuffix(body, "&")
		if pending {
			buf.WriteString(" ")
		}
		buf.WriteString(strings.TrimSpace(body))
		pending = true
		if !continued {
			flush()
		}
	}
	flush()

	return stmts
}

func isFixedFormComment(line string) bool {
	if line == "" {
		return false
	}
	switch line[0] {
	case 'c', 'C', '*', '!', 'd', 'D':
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(line), "!") && !hasCodeBefore(line, '!')
}

// hasCodeBefore reports whether something other than blanks precedes the
// first occurrence of c.
func hasCodeBefore(line string, c byte) bool {
	idx := strings.IndexByte(line, c)
	return idx > 0 && strings.TrimSpace(line[:idx]) != ""
}

// fixedFormBody returns the statement field (columns 7 to 72) and whether
// column 6 marks a continuation line.
func fixedFormBody(line string) (string, bool) {
	line = strings.ReplaceAll(line, "\t", "      ")
	if len(line) < 6 {
		return strings.TrimSpace(line), false
	}
	mark := line[5]
	cont := mark != ' ' && mark != '0'
	body := line[6:]
	if len(body) > 66 {
		body = body[:66]
	}
	if !cont {
		// Labels live in columns 1 to 5.
		return body, false
	}
	return body, true
}

// stripComment drops a trailing '!' comment that is not inside a character
// literal.
func stripComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '!':
			return line[:i]
		}
	}
	return line
}

func splitSemicolons(s string) []string {
	var (
		parts []string
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ';':
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// blankLiterals upper-cases s and replaces the contents of character
// literals with nothing, keeping the quotes.
func blankLiterals(s string) string {
	var (
		b     strings.Builder
		quote byte
	)
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
				b.WriteByte(c)
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			b.WriteByte(c)
			continue
		}
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

func parsePreprocessorInclude(line string) (string, bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "#"))
	if !strings.HasPrefix(rest, "include") {
		return "", false
	}
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "include"))
	if len(rest) < 2 {
		return "", false
	}
	open, closeCh := rest[0], byte(0)
	switch open {
	case '"':
		closeCh = '"'
	case '<':
		closeCh = '>'
	default:
		return "", false
	}
	end := strings.IndexByte(rest[1:], closeCh)
	if end < 0 {
		return "", false
	}
	return rest[1 : end+1], true
}
