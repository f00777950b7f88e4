package models

import (
	"encoding/json"
	"io"
	"strings"
)

// Severity levels for diagnostics
const (
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Relationship kinds, serialized exactly as the external renderer expects them
const (
	KindOneToOne   = "1-1"
	KindOneToMany  = "1-N"
	KindManyToMany = "N-M"
	KindNAry       = "n-ary"
)

// Reference points at the column a foreign key targets
type Reference struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Column represents a typed attribute of an entity
type Column struct {
	Name          string     `json:"name"`
	Type          string     `json:"declared_type"`
	Nullable      bool       `json:"nullable"`
	IsPrimaryKey  bool       `json:"is_primary_key"`
	IsForeignKey  bool       `json:"is_foreign_key"`
	IsUnique      bool       `json:"is_unique"`
	AutoIncrement bool       `json:"auto_increment"`
	Default       *string    `json:"default_value"`
	Reference     *Reference `json:"reference"`
}

// Entity represents a database table with its resolved keys
type Entity struct {
	Name        string   `json:"name"`
	Columns     []Column `json:"columns"`
	PrimaryKey  []string `json:"primary_key"`
	IsWeak      bool     `json:"is_weak"`
	IsJoinTable bool     `json:"is_join_table"`
}

// Column returns the column with the given name, matched case-insensitively
func (e *Entity) Column(name string) *Column {
	for i := range e.Columns {
		if strings.EqualFold(e.Columns[i].Name, name) {
			return &e.Columns[i]
		}
	}
	return nil
}

// ForeignKeyEdge is the internal record of one FOREIGN KEY constraint.
// Source and target column lists are aligned positionally.
type ForeignKeyEdge struct {
	Source          string
	SourceColumns   []string
	Target          string
	TargetColumns   []string
	OnDeleteCascade bool
	SourceNullable  bool
	SourceUnique    bool
	Line            int
	Resolved        bool
}

// Attribute is a non-key column carried onto a relationship
type Attribute struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Relationship represents an inferred relationship between entities
type Relationship struct {
	Name          string            `json:"name"`
	Kind          string            `json:"type"`
	Participants  []string          `json:"participants"`
	ViaTable      string            `json:"via_table"`
	Cardinality   map[string]string `json:"cardinality"`
	Participation map[string]string `json:"participation"`
	Attributes    []Attribute       `json:"attributes"`
	Identifying   bool              `json:"identifying"`
}

// Diagnostic captures one parser or inference problem without aborting the batch
type Diagnostic struct {
	Line             int    `json:"line"`
	StatementExcerpt string `json:"statement_excerpt"`
	Message          string `json:"message"`
	Severity         string `json:"severity"`
}

// Schema is the root document handed to the external renderer
type Schema struct {
	Entities      []*Entity      `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Warnings      []Diagnostic   `json:"warnings"`
	Errors        []Diagnostic   `json:"errors"`
}

// NewSchema creates an empty schema with non-nil sequences so the JSON
// document always carries all four top-level arrays
func NewSchema() *Schema {
	return &Schema{
		Entities:      []*Entity{},
		Relationships: []Relationship{},
		Warnings:      []Diagnostic{},
		Errors:        []Diagnostic{},
	}
}

// Encode writes the schema as indented JSON
func (s *Schema) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// Entity returns the entity with the given name, matched case-insensitively
func (s *Schema) Entity(name string) *Entity {
	for _, e := range s.Entities {
		if strings.EqualFold(e.Name, name) {
			return e
		}
	}
	return nil
}

// Config holds the inference conventions. The zero value is not usable;
// start from DefaultConfig and adjust.
type Config struct {
	// ForeignKeySuffix is the naming convention checked by the join-table
	// suffix rule
	ForeignKeySuffix string
	// MetadataColumns are the column names a join table may carry besides its
	// keys without losing its join classification. Matched case-insensitively.
	MetadataColumns []string
	// MaxStatements truncates pathological inputs. Zero means no limit.
	MaxStatements int
}

// DefaultConfig returns the documented default conventions
func DefaultConfig() Config {
	return Config{
		ForeignKeySuffix: "_id",
		MetadataColumns: []string{
			"created_at", "updated_at", "deleted_at",
			"is_deleted", "sort_order", "position",
		},
		MaxStatements: 5000,
	}
}

// IsMetadataColumn reports whether the name is in the configured metadata list
func (c Config) IsMetadataColumn(name string) bool {
	for _, m := range c.MetadataColumns {
		if strings.EqualFold(m, name) {
			return true
		}
	}
	return false
}
