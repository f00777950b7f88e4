package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestColumnJSONFieldNames(t *testing.T) {
	def := "0"
	col := Column{
		Name:      "user_id",
		Type:      "INT",
		Default:   &def,
		Reference: &Reference{Table: "users", Column: "id"},
	}
	data, err := json.Marshal(col)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	// Field names are a contract with the external renderer
	for _, key := range []string{
		`"name"`, `"declared_type"`, `"nullable"`, `"is_primary_key"`,
		`"is_foreign_key"`, `"is_unique"`, `"auto_increment"`,
		`"default_value"`, `"reference"`,
	} {
		if !bytes.Contains(data, []byte(key)) {
			t.Errorf("Expected column JSON to contain %s, got %s", key, data)
		}
	}
}

func TestRelationshipKindSerializesAsType(t *testing.T) {
	rel := Relationship{Name: "authors_books", Kind: KindOneToMany}
	data, err := json.Marshal(rel)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if !bytes.Contains(data, []byte(`"type":"1-N"`)) {
		t.Errorf("Expected kind under the 'type' key, got %s", data)
	}
}

func TestKindConstants(t *testing.T) {
	cases := []struct{ got, want string }{
		{KindOneToOne, "1-1"},
		{KindOneToMany, "1-N"},
		{KindManyToMany, "N-M"},
		{KindNAry, "n-ary"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("Expected kind constant %q, got %q", c.want, c.got)
		}
	}
}

func TestNewSchemaEncodesEmptyArrays(t *testing.T) {
	var buf bytes.Buffer
	if err := NewSchema().Encode(&buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out := buf.String()

	// Empty collections must be [], never null
	if strings.Contains(out, "null") {
		t.Errorf("Expected no null arrays in empty schema, got %s", out)
	}
	for _, key := range []string{`"entities"`, `"relationships"`, `"warnings"`, `"errors"`} {
		if !strings.Contains(out, key) {
			t.Errorf("Expected top-level key %s, got %s", key, out)
		}
	}
}

func TestEntityColumnLookupIsCaseInsensitive(t *testing.T) {
	e := Entity{
		Name:    "Users",
		Columns: []Column{{Name: "Email", Type: "VARCHAR(100)"}},
	}
	if e.Column("email") == nil {
		t.Error("Expected case-insensitive column lookup")
	}
	if e.Column("missing") != nil {
		t.Error("Expected nil for an unknown column")
	}
}

func TestSchemaEntityLookupIsCaseInsensitive(t *testing.T) {
	s := NewSchema()
	s.Entities = append(s.Entities, &Entity{Name: "Users"})

	if s.Entity("users") == nil {
		t.Error("Expected case-insensitive entity lookup")
	}
	if s.Entity("ghosts") != nil {
		t.Error("Expected nil for an unknown entity")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ForeignKeySuffix != "_id" {
		t.Errorf("Expected default suffix '_id', got %q", cfg.ForeignKeySuffix)
	}
	if cfg.MaxStatements != 5000 {
		t.Errorf("Expected default statement limit 5000, got %d", cfg.MaxStatements)
	}
	if !cfg.IsMetadataColumn("created_at") || !cfg.IsMetadataColumn("CREATED_AT") {
		t.Error("Expected created_at to be metadata, case-insensitively")
	}
	if cfg.IsMetadataColumn("grade") {
		t.Error("Expected grade not to be metadata")
	}
}
