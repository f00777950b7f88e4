package generator

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jaswdr/faker"
	"github.com/sirupsen/logrus"

	"sql2erd/pkg/models"
)

// SampleGenerator produces INSERT statements with plausible fake data for
// a parsed schema, so a freshly drawn diagram can be tried against a real
// database immediately
type SampleGenerator struct {
	Faker  faker.Faker
	Schema *models.Schema
	Logger *logrus.Logger

	// generated remembers emitted key values per table and column so
	// foreign keys can reference rows that actually exist
	generated map[string]map[string][]string
}

// NewSampleGenerator creates a generator over a parsed schema
func NewSampleGenerator(schema *models.Schema, logger *logrus.Logger) *SampleGenerator {
	return &SampleGenerator{
		Faker:     faker.New(),
		Schema:    schema,
		Logger:    logger,
		generated: make(map[string]map[string][]string),
	}
}

// Generate emits rows INSERT statements per table, visiting tables in the
// given order so foreign-key targets are populated before their referents
func (sg *SampleGenerator) Generate(order []string, rows int) string {
	var b strings.Builder
	for _, name := range order {
		entity := sg.Schema.Entity(name)
		if entity == nil {
			sg.Logger.Warningf("No entity named %s in schema, skipping", name)
			continue
		}
		for i := 0; i < rows; i++ {
			stmt := sg.insertStatement(entity, i)
			if stmt != "" {
				b.WriteString(stmt)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func (sg *SampleGenerator) insertStatement(entity *models.Entity, rowIndex int) string {
	var cols, vals []string
	for _, col := range entity.Columns {
		if col.AutoIncrement {
			continue
		}
		value := sg.valueFor(entity, col, rowIndex)
		cols = append(cols, col.Name)
		vals = append(vals, value)
		sg.remember(entity.Name, col.Name, value)
	}
	if len(cols) == 0 {
		return ""
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
		entity.Name, strings.Join(cols, ", "), strings.Join(vals, ", "))
}

// valueFor picks a value as a SQL literal, preferring foreign-key reuse,
// then column-name heuristics, then the declared type
func (sg *SampleGenerator) valueFor(entity *models.Entity, col models.Column, rowIndex int) string {
	if col.IsForeignKey && col.Reference != nil {
		if v, ok := sg.reuse(col.Reference.Table, col.Reference.Column, rowIndex); ok {
			return v
		}
		if col.Nullable {
			return "NULL"
		}
		return "1"
	}

	if col.IsPrimaryKey && isIntegerType(col.Type) {
		// Deterministic keys keep generated rows referencable
		return fmt.Sprintf("%d", rowIndex+1)
	}

	if v, ok := sg.byName(col); ok {
		return v
	}
	return sg.byType(col)
}

// byName mirrors common column naming conventions
func (sg *SampleGenerator) byName(col models.Column) (string, bool) {
	name := strings.ToLower(col.Name)
	switch {
	case strings.Contains(name, "email"):
		return quote(sg.Faker.Internet().Email()), true
	case strings.Contains(name, "first") && strings.Contains(name, "name"):
		return quote(sg.Faker.Person().FirstName()), true
	case strings.Contains(name, "last") && strings.Contains(name, "name"):
		return quote(sg.Faker.Person().LastName()), true
	case strings.Contains(name, "username") || strings.Contains(name, "user_name"):
		return quote(sg.Faker.Internet().User()), true
	case strings.Contains(name, "name") && !strings.Contains(name, "file"):
		return quote(sg.Faker.Person().Name()), true
	case strings.Contains(name, "phone"):
		return quote(sg.Faker.Phone().Number()), true
	case strings.Contains(name, "address"):
		return quote(sg.Faker.Address().Address()), true
	case strings.Contains(name, "city"):
		return quote(sg.Faker.Address().City()), true
	case strings.Contains(name, "country"):
		return quote(sg.Faker.Address().Country()), true
	case strings.Contains(name, "title"):
		return quote(sg.Faker.Lorem().Sentence(4)), true
	case strings.Contains(name, "description") || strings.Contains(name, "summary"):
		return quote(sg.Faker.Lorem().Sentence(10)), true
	case strings.Contains(name, "url") || strings.Contains(name, "website"):
		return quote(sg.Faker.Internet().URL()), true
	case strings.Contains(name, "uuid"):
		return quote(sg.Faker.UUID().V4()), true
	case strings.HasSuffix(name, "_at"):
		return quote(randomTimestamp()), true
	}
	return "", false
}

// byType falls back to the declared column type
func (sg *SampleGenerator) byType(col models.Column) string {
	base := baseType(col.Type)
	switch base {
	case "INT", "INTEGER", "TINYINT", "SMALLINT", "MEDIUMINT", "BIGINT":
		return fmt.Sprintf("%d", rand.Intn(1000)+1)
	case "FLOAT", "DOUBLE", "DECIMAL", "NUMERIC", "REAL":
		return fmt.Sprintf("%.2f", rand.Float64()*100)
	case "BOOLEAN", "BOOL":
		if rand.Intn(2) == 1 {
			return "TRUE"
		}
		return "FALSE"
	case "DATE":
		days := rand.Intn(365 * 5)
		return quote(time.Now().AddDate(0, 0, -days).Format("2006-01-02"))
	case "DATETIME", "TIMESTAMP":
		return quote(randomTimestamp())
	case "TIME":
		return quote(fmt.Sprintf("%02d:%02d:%02d", rand.Intn(24), rand.Intn(60), rand.Intn(60)))
	case "CHAR", "VARCHAR", "TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT":
		return quote(sg.stringFor(col))
	case "JSON":
		return quote(fmt.Sprintf(`{"%s": "%s"}`, sg.Faker.Lorem().Word(), sg.Faker.Lorem().Word()))
	default:
		sg.Logger.Debugf("No specific generator for type %s, using a word", col.Type)
		return quote(sg.Faker.Lorem().Word())
	}
}

func (sg *SampleGenerator) stringFor(col models.Column) string {
	length := typeLength(col.Type)
	switch {
	case length > 0 && length <= 5:
		return sg.Faker.RandomStringWithLength(length)
	case length > 0 && length <= 20:
		return sg.Faker.Lorem().Word()
	default:
		return sg.Faker.Lorem().Sentence(4)
	}
}

func (sg *SampleGenerator) remember(table, column, value string) {
	key := strings.ToLower(table)
	if sg.generated[key] == nil {
		sg.generated[key] = make(map[string][]string)
	}
	colKey := strings.ToLower(column)
	sg.generated[key][colKey] = append(sg.generated[key][colKey], value)
}

func (sg *SampleGenerator) reuse(table, column string, rowIndex int) (string, bool) {
	// Auto-increment keys are never emitted; reconstruct them by position
	target := sg.Schema.Entity(table)
	if target != nil {
		if col := target.Column(column); col != nil && col.AutoIncrement {
			return fmt.Sprintf("%d", rowIndex+1), true
		}
	}
	vals := sg.generated[strings.ToLower(table)][strings.ToLower(column)]
	if len(vals) == 0 {
		return "", false
	}
	return vals[rand.Intn(len(vals))], true
}

func randomTimestamp() string {
	days := rand.Intn(365 * 5)
	return time.Now().AddDate(0, 0, -days).Format("2006-01-02 15:04:05")
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// baseType strips a precision suffix like VARCHAR(255) to VARCHAR
func baseType(typ string) string {
	if idx := strings.Index(typ, "("); idx >= 0 {
		return strings.TrimSpace(typ[:idx])
	}
	return strings.TrimSpace(typ)
}

// typeLength extracts the leading precision argument, or 0
func typeLength(typ string) int {
	open := strings.Index(typ, "(")
	close := strings.Index(typ, ")")
	if open < 0 || close <= open {
		return 0
	}
	args := strings.Split(typ[open+1:close], ",")
	n := 0
	fmt.Sscanf(strings.TrimSpace(args[0]), "%d", &n)
	return n
}

func isIntegerType(typ string) bool {
	switch baseType(typ) {
	case "INT", "INTEGER", "TINYINT", "SMALLINT", "MEDIUMINT", "BIGINT":
		return true
	}
	return false
}
