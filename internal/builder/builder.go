package builder

import (
	"fmt"
	"strings"

	"sql2erd/internal/parser"
	"sql2erd/pkg/models"
)

// Result carries everything one CREATE TABLE statement contributed
type Result struct {
	Entity      *models.Entity
	ForeignKeys []models.ForeignKeyEdge
	UniqueSets  [][]string
	Diagnostics []models.Diagnostic
}

// constraintKeywords mark a clause as a table-level constraint rather than
// a column definition
var constraintKeywords = map[string]bool{
	"PRIMARY":  true,
	"FOREIGN":  true,
	"UNIQUE":   true,
	"CHECK":    true,
	"KEY":      true,
	"INDEX":    true,
	"FULLTEXT": true,
	"SPATIAL":  true,
	"EXCLUDE":  true,
}

// Build resolves the raw clause list for one table into an Entity plus its
// foreign-key edges. Parse failures in individual clauses become
// diagnostics; the rest of the table is still built.
func Build(raw *parser.RawTable) Result {
	res := Result{
		Entity: &models.Entity{Name: raw.Name},
	}

	var tablePK []string
	tablePKSeen := false
	inlineCascade := map[string]bool{}

	for _, clause := range raw.Clauses {
		tokens := tokenize(clause)
		if len(tokens) == 0 {
			continue
		}

		// Skip an optional CONSTRAINT <name> prefix
		body := tokens
		if strings.EqualFold(body[0], "CONSTRAINT") && len(body) > 2 {
			body = body[2:]
		}

		head := strings.ToUpper(body[0])
		if open := strings.Index(head, "("); open >= 0 {
			head = head[:open]
		}
		if !constraintKeywords[head] {
			col, cascade, diag := buildColumn(raw, body)
			if diag != nil {
				res.Diagnostics = append(res.Diagnostics, *diag)
				continue
			}
			if cascade {
				inlineCascade[strings.ToLower(col.Name)] = true
			}
			res.Entity.Columns = append(res.Entity.Columns, *col)
			continue
		}

		switch head {
		case "PRIMARY":
			cols := columnList(body)
			if len(cols) == 0 {
				res.Diagnostics = append(res.Diagnostics, clauseError(raw, clause,
					"PRIMARY KEY constraint has no column list"))
				continue
			}
			tablePK = cols
			tablePKSeen = true
		case "FOREIGN":
			edge, diag := buildForeignKey(raw, body, clause)
			if diag != nil {
				res.Diagnostics = append(res.Diagnostics, *diag)
				continue
			}
			res.ForeignKeys = append(res.ForeignKeys, *edge)
		case "UNIQUE":
			if cols := columnList(body); len(cols) > 0 {
				res.UniqueSets = append(res.UniqueSets, cols)
			}
		case "CHECK":
			res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
				Line:             raw.Line,
				StatementExcerpt: parser.Excerpt(clause),
				Message:          fmt.Sprintf("CHECK constraint on table %s is not supported and was skipped", raw.Name),
				Severity:         models.SeverityWarning,
			})
		default:
			// KEY, INDEX, FULLTEXT, SPATIAL, EXCLUDE carry no ER information
		}
	}

	applyPrimaryKey(raw, &res, tablePK, tablePKSeen)
	applyUniqueConstraints(&res)
	attachForeignKeys(&res, inlineCascade)

	return res
}

// applyUniqueConstraints marks single-column UNIQUE(...) constraints on the
// columns themselves; composite sets stay on the result for edge analysis
func applyUniqueConstraints(res *Result) {
	for _, set := range res.UniqueSets {
		if len(set) != 1 {
			continue
		}
		if col := res.Entity.Column(set[0]); col != nil {
			col.IsUnique = true
		}
	}
}

// buildColumn parses one column definition clause. The second return value
// reports an inline ON DELETE CASCADE action.
func buildColumn(raw *parser.RawTable, tokens []string) (*models.Column, bool, *models.Diagnostic) {
	if len(tokens) < 2 {
		d := clauseError(raw, strings.Join(tokens, " "), "column definition is missing a type")
		return nil, false, &d
	}

	name := parser.StripQuotes(tokens[0])
	rawType := tokens[1]
	start := 2
	// A detached precision group like "VARCHAR (255)" belongs to the type
	if start < len(tokens) && strings.HasPrefix(tokens[start], "(") {
		rawType += tokens[start]
		start++
	}
	typ, autoInc := parser.NormalizeType(rawType)

	col := &models.Column{
		Name:          name,
		Type:          typ,
		Nullable:      true,
		AutoIncrement: autoInc,
	}
	cascade := false

	// Inline modifiers compose; conflicting NULL/NOT NULL is last-wins
	for i := start; i < len(tokens); i++ {
		switch strings.ToUpper(tokens[i]) {
		case "NOT":
			if i+1 < len(tokens) && strings.EqualFold(tokens[i+1], "NULL") {
				col.Nullable = false
				i++
			}
		case "NULL":
			col.Nullable = true
		case "PRIMARY":
			if i+1 < len(tokens) && strings.EqualFold(tokens[i+1], "KEY") {
				col.IsPrimaryKey = true
				i++
			}
		case "UNIQUE":
			col.IsUnique = true
			if i+1 < len(tokens) && strings.EqualFold(tokens[i+1], "KEY") {
				i++
			}
		case "AUTO_INCREMENT", "AUTOINCREMENT", "IDENTITY":
			col.AutoIncrement = true
		case "DEFAULT":
			if i+1 < len(tokens) {
				val := stripCast(tokens[i+1])
				col.Default = &val
				i++
			}
		case "REFERENCES":
			ref, consumed := parseReference(tokens[i+1:])
			if ref != nil {
				col.IsForeignKey = true
				col.Reference = ref
			}
			i += consumed
		case "ON":
			if i+2 < len(tokens) && strings.EqualFold(tokens[i+1], "DELETE") &&
				strings.EqualFold(tokens[i+2], "CASCADE") {
				cascade = true
				i += 2
			}
		}
	}

	return col, cascade, nil
}

// buildForeignKey parses FOREIGN KEY (...) REFERENCES target (...) clauses.
// Mismatched source/target arity drops the edge with an error diagnostic.
func buildForeignKey(raw *parser.RawTable, tokens []string, clause string) (*models.ForeignKeyEdge, *models.Diagnostic) {
	sourceCols := columnList(tokens)

	refIdx := -1
	for i, tok := range tokens {
		if strings.EqualFold(tok, "REFERENCES") {
			refIdx = i
			break
		}
	}
	if refIdx < 0 || refIdx+1 >= len(tokens) || len(sourceCols) == 0 {
		d := clauseError(raw, clause, fmt.Sprintf("malformed FOREIGN KEY clause on table %s", raw.Name))
		return nil, &d
	}

	target, targetCols := referenceTarget(tokens[refIdx+1:])
	if target == "" || len(targetCols) == 0 {
		d := clauseError(raw, clause, fmt.Sprintf("FOREIGN KEY on table %s has no usable REFERENCES target", raw.Name))
		return nil, &d
	}

	if len(sourceCols) != len(targetCols) {
		d := clauseError(raw, clause, fmt.Sprintf(
			"FOREIGN KEY on table %s lists %d source columns but %d target columns",
			raw.Name, len(sourceCols), len(targetCols)))
		return nil, &d
	}

	upper := strings.ToUpper(clause)
	return &models.ForeignKeyEdge{
		Source:          raw.Name,
		SourceColumns:   sourceCols,
		Target:          target,
		TargetColumns:   targetCols,
		OnDeleteCascade: strings.Contains(upper, "ON DELETE CASCADE"),
		Line:            raw.Line,
	}, nil
}

// applyPrimaryKey merges inline and table-level primary key declarations.
// A table-level list wins over inline markers, with a redundancy warning.
func applyPrimaryKey(raw *parser.RawTable, res *Result, tablePK []string, tablePKSeen bool) {
	entity := res.Entity

	var inline []string
	for _, col := range entity.Columns {
		if col.IsPrimaryKey {
			inline = append(inline, col.Name)
		}
	}

	if !tablePKSeen {
		entity.PrimaryKey = inline
		if entity.PrimaryKey == nil {
			entity.PrimaryKey = []string{}
		}
		markKeyColumns(entity)
		return
	}

	if len(inline) > 0 {
		res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
			Line:             raw.Line,
			StatementExcerpt: parser.Excerpt(raw.Name),
			Message: fmt.Sprintf(
				"table %s declares both inline and table-level primary keys; the table-level list wins", raw.Name),
			Severity: models.SeverityWarning,
		})
		for i := range entity.Columns {
			entity.Columns[i].IsPrimaryKey = false
		}
	}

	entity.PrimaryKey = []string{}
	for _, name := range tablePK {
		col := entity.Column(name)
		if col == nil {
			res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
				Line:             raw.Line,
				StatementExcerpt: parser.Excerpt(raw.Name),
				Message: fmt.Sprintf(
					"primary key of table %s names unknown column %s", raw.Name, name),
				Severity: models.SeverityError,
			})
			continue
		}
		col.IsPrimaryKey = true
		entity.PrimaryKey = append(entity.PrimaryKey, col.Name)
	}
	markKeyColumns(entity)
}

// markKeyColumns enforces that primary key membership implies NOT NULL
func markKeyColumns(entity *models.Entity) {
	for _, name := range entity.PrimaryKey {
		if col := entity.Column(name); col != nil {
			col.Nullable = false
		}
	}
}

// attachForeignKeys folds inline column references into edges, marks FK
// columns from table-level edges, and derives per-edge nullability and
// uniqueness from the finished column set
func attachForeignKeys(res *Result, inlineCascade map[string]bool) {
	entity := res.Entity

	// Inline REFERENCES become single-column edges. Columns already claimed
	// by a table-level FOREIGN KEY clause are skipped so one declaration
	// does not become two edges.
	claimed := map[string]bool{}
	for _, edge := range res.ForeignKeys {
		for _, name := range edge.SourceColumns {
			claimed[strings.ToLower(name)] = true
		}
	}
	for _, col := range entity.Columns {
		if col.Reference == nil || claimed[strings.ToLower(col.Name)] {
			continue
		}
		res.ForeignKeys = append(res.ForeignKeys, models.ForeignKeyEdge{
			Source:          entity.Name,
			SourceColumns:   []string{col.Name},
			Target:          col.Reference.Table,
			TargetColumns:   []string{col.Reference.Column},
			OnDeleteCascade: inlineCascade[strings.ToLower(col.Name)],
		})
	}

	for i := range res.ForeignKeys {
		edge := &res.ForeignKeys[i]
		nullable := false
		for pos, name := range edge.SourceColumns {
			col := entity.Column(name)
			if col == nil {
				continue
			}
			col.IsForeignKey = true
			if col.Reference == nil {
				col.Reference = &models.Reference{
					Table:  edge.Target,
					Column: edge.TargetColumns[pos],
				}
			}
			if col.Nullable {
				nullable = true
			}
		}
		edge.SourceNullable = nullable
		edge.SourceUnique = columnsUnique(res, edge.SourceColumns)
	}
}

// columnsUnique reports whether the given column set is covered by a
// uniqueness guarantee: a single UNIQUE column, a matching UNIQUE
// constraint, or the table's whole primary key
func columnsUnique(res *Result, cols []string) bool {
	if len(cols) == 1 {
		if col := res.Entity.Column(cols[0]); col != nil && (col.IsUnique || soleKey(res.Entity, cols[0])) {
			return true
		}
	}
	if sameNameSet(res.Entity.PrimaryKey, cols) {
		return true
	}
	for _, set := range res.UniqueSets {
		if sameNameSet(set, cols) {
			return true
		}
	}
	return false
}

func soleKey(entity *models.Entity, name string) bool {
	return len(entity.PrimaryKey) == 1 && strings.EqualFold(entity.PrimaryKey[0], name)
}

func sameNameSet(a, b []string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for _, x := range a {
		found := false
		for _, y := range b {
			if strings.EqualFold(x, y) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// columnList extracts the identifiers of the first parenthesized group
func columnList(tokens []string) []string {
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "(") || strings.Contains(tok, "(") {
			open := strings.Index(tok, "(")
			close := strings.LastIndex(tok, ")")
			if close <= open {
				return nil
			}
			var cols []string
			for _, part := range strings.Split(tok[open+1:close], ",") {
				name := parser.StripQuotes(strings.TrimSpace(part))
				if name != "" {
					cols = append(cols, name)
				}
			}
			return cols
		}
	}
	return nil
}

// parseReference reads an inline REFERENCES target; returns the reference
// and how many tokens it consumed
func parseReference(tokens []string) (*models.Reference, int) {
	if len(tokens) == 0 {
		return nil, 0
	}
	target, cols := referenceTarget(tokens)
	if target == "" {
		return nil, 0
	}
	ref := &models.Reference{Table: target}
	if len(cols) > 0 {
		ref.Column = cols[0]
	}
	consumed := 1
	if !strings.Contains(tokens[0], "(") && len(tokens) > 1 && strings.HasPrefix(tokens[1], "(") {
		consumed = 2
	}
	return ref, consumed
}

// referenceTarget splits "users(id)" or "users (id)" into table and columns
func referenceTarget(tokens []string) (string, []string) {
	first := tokens[0]
	if open := strings.Index(first, "("); open >= 0 {
		table := parser.StripQuotes(first[:open])
		return table, columnList([]string{first[open:]})
	}
	table := parser.StripQuotes(first)
	if len(tokens) > 1 && strings.HasPrefix(tokens[1], "(") {
		return table, columnList([]string{tokens[1]})
	}
	return table, nil
}

// stripCast removes a Postgres-style ::type suffix from a default value
func stripCast(value string) string {
	if idx := strings.Index(value, "::"); idx >= 0 {
		return value[:idx]
	}
	return value
}

func clauseError(raw *parser.RawTable, clause, message string) models.Diagnostic {
	return models.Diagnostic{
		Line:             raw.Line,
		StatementExcerpt: parser.Excerpt(clause),
		Message:          message,
		Severity:         models.SeverityError,
	}
}

// tokenize splits a clause on whitespace while keeping quoted literals and
// parenthesized groups glued to their token
func tokenize(clause string) []string {
	var tokens []string
	var cur strings.Builder
	depth := 0
	var quote byte

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(clause); i++ {
		c := clause[i]
		if quote != 0 {
			cur.WriteByte(c)
			if c == '\\' && quote != '`' && i+1 < len(clause) {
				i++
				cur.WriteByte(clause[i])
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			cur.WriteByte(c)
		case c == '(':
			depth++
			cur.WriteByte(c)
		case c == ')':
			if depth > 0 {
				depth--
			}
			cur.WriteByte(c)
		case c == ' ' || c == '\t':
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
	return tokens
}
