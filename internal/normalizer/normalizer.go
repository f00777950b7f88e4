package normalizer

import "strings"

// Statement is one top-level SQL statement with the line it started on
// in the original input
type Statement struct {
	Text string
	Line int
}

// StripComments removes -- and # line comments and /* */ block comments.
// Comment markers inside quoted strings are left alone, and newlines are
// preserved so later stages can report original line numbers.
func StripComments(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))

	var quote byte
	i := 0
	n := len(sql)

	for i < n {
		c := sql[i]

		if quote != 0 {
			b.WriteByte(c)
			// Backslash escapes inside string literals
			if c == '\\' && quote != '`' && i+1 < n {
				b.WriteByte(sql[i+1])
				i += 2
				continue
			}
			if c == quote {
				quote = 0
			}
			i++
			continue
		}

		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			b.WriteByte(c)
			i++
		case c == '-' && i+1 < n && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}
		case c == '#':
			for i < n && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && sql[i+1] == '*':
			i += 2
			for i < n {
				if sql[i] == '*' && i+1 < n && sql[i+1] == '/' {
					i += 2
					break
				}
				if sql[i] == '\n' {
					b.WriteByte('\n')
				}
				i++
			}
		default:
			b.WriteByte(c)
			i++
		}
	}

	return b.String()
}

// Split segments comment-free SQL into top-level statements. Semicolons
// inside parentheses or quoted strings do not split. Whitespace outside
// string literals is collapsed to single spaces. An unterminated trailing
// statement is still emitted so the parser can diagnose it.
func Split(sql string) []Statement {
	var statements []Statement

	var cur strings.Builder
	line := 1
	startLine := 0
	depth := 0
	var quote byte
	lastSpace := false

	flush := func() {
		text := strings.TrimSpace(cur.String())
		if text != "" {
			statements = append(statements, Statement{Text: text, Line: startLine})
		}
		cur.Reset()
		startLine = 0
		lastSpace = false
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if c == '\n' {
			line++
		}

		if quote != 0 {
			cur.WriteByte(c)
			if c == '\\' && quote != '`' && i+1 < len(sql) {
				i++
				if sql[i] == '\n' {
					line++
				}
				cur.WriteByte(sql[i])
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}

		if isSpace(c) {
			if cur.Len() > 0 && !lastSpace {
				cur.WriteByte(' ')
				lastSpace = true
			}
			continue
		}

		if startLine == 0 {
			startLine = line
		}
		lastSpace = false

		switch c {
		case '\'', '"', '`':
			quote = c
			cur.WriteByte(c)
		case '(':
			depth++
			cur.WriteByte(c)
		case ')':
			if depth > 0 {
				depth--
			}
			cur.WriteByte(c)
		case ';':
			if depth == 0 {
				flush()
			} else {
				cur.WriteByte(c)
			}
		default:
			cur.WriteByte(c)
		}
	}

	flush()
	return statements
}

// Statements runs comment stripping and splitting in one step
func Statements(sql string) []Statement {
	return Split(StripComments(sql))
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
