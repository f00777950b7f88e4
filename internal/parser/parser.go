package parser

import (
	"fmt"
	"strings"

	"sql2erd/internal/normalizer"
	"sql2erd/pkg/models"
)

// StatementKind classifies a top-level statement
type StatementKind int

const (
	KindCreateTable StatementKind = iota
	KindUnsupported
	KindUnrecognized
)

// ExcerptLength bounds the statement text carried on diagnostics
const ExcerptLength = 100

// unsupportedPrefixes are DDL forms the engine detects but does not parse
var unsupportedPrefixes = []string{
	"CREATE INDEX",
	"CREATE UNIQUE INDEX",
	"CREATE VIEW",
	"CREATE OR REPLACE VIEW",
	"CREATE MATERIALIZED VIEW",
	"CREATE TRIGGER",
	"CREATE PROCEDURE",
	"CREATE FUNCTION",
	"CREATE TEMPORARY TABLE",
	"CREATE TEMP TABLE",
	"ALTER TABLE",
	"DROP TABLE",
	"DROP INDEX",
	"DROP VIEW",
}

// RawTable is one CREATE TABLE statement reduced to its name and the raw
// top-level clauses inside the outermost parentheses
type RawTable struct {
	Name    string
	Clauses []string
	Line    int
}

// Classify determines how a statement should be handled
func Classify(text string) StatementKind {
	upper := strings.ToUpper(text)
	for _, prefix := range unsupportedPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return KindUnsupported
		}
	}
	if strings.HasPrefix(upper, "CREATE TABLE") {
		if strings.Contains(upper, " PARTITION BY ") {
			return KindUnsupported
		}
		return KindCreateTable
	}
	return KindUnrecognized
}

// Excerpt truncates statement text for use in diagnostics
func Excerpt(text string) string {
	if len(text) > ExcerptLength {
		return text[:ExcerptLength]
	}
	return text
}

// ExtractCreateTable pulls the table name and raw clause list out of one
// CREATE TABLE statement. On failure it returns nil and a diagnostic
// instead of an error so the batch keeps going.
func ExtractCreateTable(stmt normalizer.Statement) (*RawTable, []models.Diagnostic) {
	var diags []models.Diagnostic

	name, rest := tableName(stmt.Text)
	if name == "" {
		diags = append(diags, models.Diagnostic{
			Line:             stmt.Line,
			StatementExcerpt: Excerpt(stmt.Text),
			Message:          "could not extract table name from CREATE TABLE statement",
			Severity:         models.SeverityError,
		})
		return nil, diags
	}

	open := indexTopLevel(rest, '(')
	if open < 0 {
		diags = append(diags, models.Diagnostic{
			Line:             stmt.Line,
			StatementExcerpt: Excerpt(stmt.Text),
			Message:          fmt.Sprintf("table %s has no column definition list", name),
			Severity:         models.SeverityError,
		})
		return nil, diags
	}

	body, ok := balancedBody(rest[open:])
	if !ok {
		diags = append(diags, models.Diagnostic{
			Line:             stmt.Line,
			StatementExcerpt: Excerpt(stmt.Text),
			Message:          fmt.Sprintf("unbalanced parentheses in table %s, definition truncated", name),
			Severity:         models.SeverityError,
		})
		return nil, diags
	}

	return &RawTable{
		Name:    name,
		Clauses: splitClauses(body),
		Line:    stmt.Line,
	}, nil
}

// tableName extracts the identifier after CREATE TABLE [IF NOT EXISTS] and
// returns it with the remainder of the statement
func tableName(text string) (string, string) {
	upper := strings.ToUpper(text)
	rest := text[len("CREATE TABLE"):]
	if idx := strings.Index(upper, "IF NOT EXISTS"); idx >= 0 && idx < 24 {
		rest = text[idx+len("IF NOT EXISTS"):]
	}
	rest = strings.TrimSpace(rest)

	// Scan to the opening parenthesis or first space, honoring identifier
	// quoting so names with spaces stay whole
	end := 0
	var quote byte
	for end < len(rest) {
		c := rest[end]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			end++
			continue
		}
		if c == '(' || c == ' ' {
			break
		}
		switch c {
		case '`', '"':
			quote = c
		case '[':
			quote = ']'
		}
		end++
	}
	name := StripQuotes(rest[:end])
	// Drop a schema qualifier such as mydb.users
	if dot := strings.LastIndex(name, "."); dot >= 0 {
		name = name[dot+1:]
	}
	return name, rest[end:]
}

// balancedBody returns the content of the outermost parentheses, or false
// when the closing parenthesis never arrives
func balancedBody(text string) (string, bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == '\\' && quote != '`' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return text[1:i], true
			}
		}
	}
	return "", false
}

// splitClauses splits the body on top-level commas, parenthesis- and
// quote-aware, so VARCHAR(10,2) and quoted defaults stay intact
func splitClauses(body string) []string {
	var clauses []string
	var cur strings.Builder
	depth := 0
	var quote byte

	flush := func() {
		text := strings.TrimSpace(cur.String())
		if text != "" {
			clauses = append(clauses, text)
		}
		cur.Reset()
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		if quote != 0 {
			cur.WriteByte(c)
			if c == '\\' && quote != '`' && i+1 < len(body) {
				i++
				cur.WriteByte(body[i])
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
			cur.WriteByte(c)
		case '(':
			depth++
			cur.WriteByte(c)
		case ')':
			depth--
			cur.WriteByte(c)
		case ',':
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
	return clauses
}

// indexTopLevel finds the first occurrence of c outside quoted strings
func indexTopLevel(text string, c byte) int {
	var quote byte
	for i := 0; i < len(text); i++ {
		b := text[i]
		if quote != 0 {
			if b == '\\' && quote != '`' {
				i++
			} else if b == quote {
				quote = 0
			}
			continue
		}
		switch b {
		case '\'', '"', '`':
			quote = b
		case c:
			return i
		}
	}
	return -1
}

// StripQuotes removes backtick, double-quote, and bracket identifier quoting
func StripQuotes(ident string) string {
	return strings.Trim(ident, "`\"[]")
}

// serialTypes maps auto-increment type aliases to plain integer types
var serialTypes = map[string]string{
	"SERIAL":      "INTEGER",
	"BIGSERIAL":   "BIGINT",
	"SMALLSERIAL": "SMALLINT",
	"SERIAL4":     "INTEGER",
	"SERIAL8":     "BIGINT",
	"SERIAL2":     "SMALLINT",
}

// NormalizeType canonicalizes a declared column type. SERIAL aliases become
// plain integer types and report auto-increment.
func NormalizeType(raw string) (string, bool) {
	typ := strings.ToUpper(strings.TrimSpace(raw))
	if mapped, ok := serialTypes[typ]; ok {
		return mapped, true
	}
	return typ, false
}
