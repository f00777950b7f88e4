package analyzer

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql2erd/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func column(name, typ string, opts ...func(*models.Column)) models.Column {
	col := models.Column{Name: name, Type: typ, Nullable: true}
	for _, opt := range opts {
		opt(&col)
	}
	return col
}

func pk(c *models.Column)      { c.IsPrimaryKey = true; c.Nullable = false }
func fk(c *models.Column)      { c.IsForeignKey = true }
func notNull(c *models.Column) { c.Nullable = false }
func autoInc(c *models.Column) { c.AutoIncrement = true }

func simpleEntity(name string) *models.Entity {
	return &models.Entity{
		Name:       name,
		Columns:    []models.Column{column("id", "INT", pk)},
		PrimaryKey: []string{"id"},
	}
}

func edge(source string, sourceCols []string, target string, targetCols []string) models.ForeignKeyEdge {
	return models.ForeignKeyEdge{
		Source:        source,
		SourceColumns: sourceCols,
		Target:        target,
		TargetColumns: targetCols,
		Resolved:      true,
	}
}

func TestIsJoinTableAllForeignKeys(t *testing.T) {
	postTags := &models.Entity{
		Name: "post_tags",
		Columns: []models.Column{
			column("post_id", "INT", fk, notNull),
			column("tag_id", "INT", fk, notNull),
		},
	}
	entities := []*models.Entity{simpleEntity("posts"), simpleEntity("tags"), postTags}
	edges := []models.ForeignKeyEdge{
		edge("post_tags", []string{"post_id"}, "posts", []string{"id"}),
		edge("post_tags", []string{"tag_id"}, "tags", []string{"id"}),
	}

	ra := NewRelationshipAnalyzer(models.DefaultConfig(), entities, edges, nil, testLogger())
	relationships, diags := ra.Analyze()

	assert.True(t, postTags.IsJoinTable)
	assert.Empty(t, diags)
	require.Len(t, relationships, 1)
	rel := relationships[0]
	assert.Equal(t, models.KindManyToMany, rel.Kind)
	assert.Equal(t, "post_tags", rel.Name)
	assert.Equal(t, "post_tags", rel.ViaTable)
	assert.Equal(t, []string{"posts", "tags"}, rel.Participants)
	assert.Equal(t, map[string]string{"posts": "N", "tags": "M"}, rel.Cardinality)
	assert.Equal(t, map[string]string{"posts": "total", "tags": "total"}, rel.Participation)
}

func TestIsJoinTableCompositeKey(t *testing.T) {
	// A composite primary key made entirely of foreign keys wins even when
	// the table carries extra payload columns
	enrollments := &models.Entity{
		Name: "enrollments",
		Columns: []models.Column{
			column("student_id", "INT", pk, fk),
			column("course_id", "INT", pk, fk),
			column("grade", "VARCHAR(2)"),
		},
		PrimaryKey: []string{"student_id", "course_id"},
	}
	entities := []*models.Entity{simpleEntity("students"), simpleEntity("courses"), enrollments}
	edges := []models.ForeignKeyEdge{
		edge("enrollments", []string{"student_id"}, "students", []string{"id"}),
		edge("enrollments", []string{"course_id"}, "courses", []string{"id"}),
	}

	ra := NewRelationshipAnalyzer(models.DefaultConfig(), entities, edges, nil, testLogger())
	relationships, _ := ra.Analyze()

	assert.True(t, enrollments.IsJoinTable)
	require.Len(t, relationships, 1)
	assert.Equal(t, []models.Attribute{{Name: "grade", Type: "VARCHAR(2)"}}, relationships[0].Attributes)
}

func TestIsJoinTableSuffixConvention(t *testing.T) {
	membership := &models.Entity{
		Name: "memberships",
		Columns: []models.Column{
			column("id", "INT", pk, autoInc),
			column("user_id", "INT", fk, notNull),
			column("team_id", "INT", fk, notNull),
			column("created_at", "TIMESTAMP"),
		},
		PrimaryKey: []string{"id"},
	}
	entities := []*models.Entity{simpleEntity("users"), simpleEntity("teams"), membership}
	edges := []models.ForeignKeyEdge{
		edge("memberships", []string{"user_id"}, "users", []string{"id"}),
		edge("memberships", []string{"team_id"}, "teams", []string{"id"}),
	}

	ra := NewRelationshipAnalyzer(models.DefaultConfig(), entities, edges, nil, testLogger())
	ra.Analyze()

	assert.True(t, membership.IsJoinTable)
}

func TestIsJoinTableSuffixConventionRejectsPayload(t *testing.T) {
	// A non-metadata payload column means the table models something of its
	// own and stays a plain entity
	membership := &models.Entity{
		Name: "memberships",
		Columns: []models.Column{
			column("id", "INT", pk, autoInc),
			column("user_id", "INT", fk, notNull),
			column("team_id", "INT", fk, notNull),
			column("nickname", "VARCHAR(50)"),
		},
		PrimaryKey: []string{"id"},
	}
	entities := []*models.Entity{simpleEntity("users"), simpleEntity("teams"), membership}
	edges := []models.ForeignKeyEdge{
		edge("memberships", []string{"user_id"}, "users", []string{"id"}),
		edge("memberships", []string{"team_id"}, "teams", []string{"id"}),
	}

	ra := NewRelationshipAnalyzer(models.DefaultConfig(), entities, edges, nil, testLogger())
	relationships, _ := ra.Analyze()

	assert.False(t, membership.IsJoinTable)
	// Two plain one-to-many relationships instead of one many-to-many
	assert.Len(t, relationships, 2)
}

func TestJoinOverride(t *testing.T) {
	lookup := &models.Entity{
		Name: "lookup",
		Columns: []models.Column{
			column("a_id", "INT", fk, notNull),
			column("b_id", "INT", fk, notNull),
			column("note", "TEXT"),
		},
	}
	entities := []*models.Entity{simpleEntity("a"), simpleEntity("b"), lookup}
	edges := []models.ForeignKeyEdge{
		edge("lookup", []string{"a_id"}, "a", []string{"id"}),
		edge("lookup", []string{"b_id"}, "b", []string{"id"}),
	}

	// Without the override the payload column blocks classification
	ra := NewRelationshipAnalyzer(models.DefaultConfig(), entities, edges, nil, testLogger())
	ra.Analyze()
	assert.False(t, lookup.IsJoinTable)

	lookup.IsJoinTable = false
	ra = NewRelationshipAnalyzer(models.DefaultConfig(), entities, edges, []string{"LOOKUP"}, testLogger())
	relationships, _ := ra.Analyze()
	assert.True(t, lookup.IsJoinTable)
	require.Len(t, relationships, 1)
	assert.Equal(t, models.KindManyToMany, relationships[0].Kind)
}

func TestTernaryRelationship(t *testing.T) {
	supplies := &models.Entity{
		Name: "supplies",
		Columns: []models.Column{
			column("supplier_id", "INT", pk, fk),
			column("part_id", "INT", pk, fk),
			column("project_id", "INT", pk, fk),
		},
		PrimaryKey: []string{"supplier_id", "part_id", "project_id"},
	}
	entities := []*models.Entity{
		simpleEntity("suppliers"), simpleEntity("parts"), simpleEntity("projects"), supplies,
	}
	edges := []models.ForeignKeyEdge{
		edge("supplies", []string{"supplier_id"}, "suppliers", []string{"id"}),
		edge("supplies", []string{"part_id"}, "parts", []string{"id"}),
		edge("supplies", []string{"project_id"}, "projects", []string{"id"}),
	}

	ra := NewRelationshipAnalyzer(models.DefaultConfig(), entities, edges, nil, testLogger())
	relationships, diags := ra.Analyze()

	require.Len(t, relationships, 1)
	rel := relationships[0]
	assert.Equal(t, models.KindNAry, rel.Kind)
	assert.Len(t, rel.Participants, 3)
	for _, p := range rel.Participants {
		assert.Equal(t, "N", rel.Cardinality[p])
	}

	require.Len(t, diags, 1)
	assert.Equal(t, models.SeverityWarning, diags[0].Severity)
	assert.Contains(t, diags[0].Message, "ternary relationship")
}

func TestOverWideEntityStaysPlain(t *testing.T) {
	audit := &models.Entity{
		Name: "audit_log",
		Columns: []models.Column{
			column("id", "INT", pk),
			column("user_id", "INT", fk),
			column("order_id", "INT", fk),
			column("product_id", "INT", fk),
			column("shipment_id", "INT", fk),
		},
		PrimaryKey: []string{"id"},
	}
	entities := []*models.Entity{
		simpleEntity("users"), simpleEntity("orders"),
		simpleEntity("products"), simpleEntity("shipments"), audit,
	}
	edges := []models.ForeignKeyEdge{
		edge("audit_log", []string{"user_id"}, "users", []string{"id"}),
		edge("audit_log", []string{"order_id"}, "orders", []string{"id"}),
		edge("audit_log", []string{"product_id"}, "products", []string{"id"}),
		edge("audit_log", []string{"shipment_id"}, "shipments", []string{"id"}),
	}

	ra := NewRelationshipAnalyzer(models.DefaultConfig(), entities, edges, nil, testLogger())
	relationships, diags := ra.Analyze()

	assert.False(t, audit.IsJoinTable)
	assert.Empty(t, relationships)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "references 4 distinct tables")
}

func TestWeakEntityIdentifyingRelationship(t *testing.T) {
	sections := &models.Entity{
		Name: "course_sections",
		Columns: []models.Column{
			column("course_id", "INT", pk, fk),
			column("section_no", "INT", pk),
			column("room", "VARCHAR(20)"),
		},
		PrimaryKey: []string{"course_id", "section_no"},
	}
	entities := []*models.Entity{simpleEntity("courses"), sections}
	edges := []models.ForeignKeyEdge{
		edge("course_sections", []string{"course_id"}, "courses", []string{"id"}),
	}

	ra := NewRelationshipAnalyzer(models.DefaultConfig(), entities, edges, nil, testLogger())
	relationships, _ := ra.Analyze()

	assert.True(t, sections.IsWeak)
	assert.False(t, sections.IsJoinTable)
	require.Len(t, relationships, 1)
	rel := relationships[0]
	assert.Equal(t, "courses_course_sections", rel.Name)
	assert.Equal(t, models.KindOneToMany, rel.Kind)
	assert.True(t, rel.Identifying)
}

func TestOneToOneFromUniqueSource(t *testing.T) {
	profile := &models.Entity{
		Name: "profiles",
		Columns: []models.Column{
			column("user_id", "INT", fk, notNull, func(c *models.Column) { c.IsUnique = true }),
			column("bio", "TEXT"),
		},
	}
	entities := []*models.Entity{simpleEntity("users"), profile}
	e := edge("profiles", []string{"user_id"}, "users", []string{"id"})
	e.SourceUnique = true

	ra := NewRelationshipAnalyzer(models.DefaultConfig(), entities, []models.ForeignKeyEdge{e}, nil, testLogger())
	relationships, _ := ra.Analyze()

	require.Len(t, relationships, 1)
	rel := relationships[0]
	assert.Equal(t, models.KindOneToOne, rel.Kind)
	assert.Equal(t, map[string]string{"users": "1", "profiles": "1"}, rel.Cardinality)
	assert.Equal(t, "total", rel.Participation["profiles"])
}

func TestUnresolvedEdgeLeavesPartialParticipation(t *testing.T) {
	posts := &models.Entity{
		Name: "posts",
		Columns: []models.Column{
			column("id", "INT", pk),
			column("author_id", "INT", fk, notNull),
		},
		PrimaryKey: []string{"id"},
	}
	dangling := edge("posts", []string{"author_id"}, "users", []string{"id"})
	dangling.Resolved = false

	ra := NewRelationshipAnalyzer(models.DefaultConfig(), []*models.Entity{posts}, []models.ForeignKeyEdge{dangling}, nil, testLogger())
	relationships, diags := ra.Analyze()

	require.Len(t, relationships, 1)
	assert.Equal(t, "partial", relationships[0].Participation["users"])
	require.Len(t, diags, 1)
	assert.Equal(t, models.SeverityWarning, diags[0].Severity)
	assert.Contains(t, diags[0].Message, "undefined table users")
}

func TestCircularReferenceWarning(t *testing.T) {
	employees := &models.Entity{
		Name: "employees",
		Columns: []models.Column{
			column("id", "INT", pk),
			column("dept_id", "INT", fk),
		},
		PrimaryKey: []string{"id"},
	}
	departments := &models.Entity{
		Name: "departments",
		Columns: []models.Column{
			column("id", "INT", pk),
			column("manager_id", "INT", fk),
		},
		PrimaryKey: []string{"id"},
	}
	edges := []models.ForeignKeyEdge{
		edge("employees", []string{"dept_id"}, "departments", []string{"id"}),
		edge("departments", []string{"manager_id"}, "employees", []string{"id"}),
	}

	ra := NewRelationshipAnalyzer(models.DefaultConfig(), []*models.Entity{employees, departments}, edges, nil, testLogger())
	_, diags := ra.Analyze()

	require.NotEmpty(t, diags)
	last := diags[len(diags)-1]
	assert.Equal(t, models.SeverityWarning, last.Severity)
	assert.Contains(t, last.Message, "circular reference between tables: departments, employees")
}

func TestInsertionOrder(t *testing.T) {
	users := simpleEntity("users")
	posts := &models.Entity{
		Name: "posts",
		Columns: []models.Column{
			column("id", "INT", pk),
			column("user_id", "INT", fk, notNull),
		},
		PrimaryKey: []string{"id"},
	}
	postTags := &models.Entity{
		Name: "post_tags",
		Columns: []models.Column{
			column("post_id", "INT", fk, notNull),
			column("tag_id", "INT", fk, notNull),
		},
	}
	tags := simpleEntity("tags")
	entities := []*models.Entity{postTags, posts, users, tags}
	edges := []models.ForeignKeyEdge{
		edge("posts", []string{"user_id"}, "users", []string{"id"}),
		edge("post_tags", []string{"post_id"}, "posts", []string{"id"}),
		edge("post_tags", []string{"tag_id"}, "tags", []string{"id"}),
	}

	ra := NewRelationshipAnalyzer(models.DefaultConfig(), entities, edges, nil, testLogger())
	ra.Analyze()
	order := ra.InsertionOrder()

	require.Len(t, order, 4)
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	assert.Less(t, pos["users"], pos["posts"], "referenced table must come first")
	assert.Equal(t, "post_tags", order[len(order)-1], "join tables go last")
}
