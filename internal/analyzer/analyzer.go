package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yourbasic/graph"

	"sql2erd/pkg/models"
)

// RelationshipAnalyzer classifies entities and derives relationships from
// the resolved foreign-key edges
type RelationshipAnalyzer struct {
	Config          models.Config
	Entities        []*models.Entity
	Edges           []models.ForeignKeyEdge
	JoinOverrides   map[string]bool
	DependencyGraph *graph.Mutable
	EntityIndexMap  map[string]int
	Logger          *logrus.Logger
}

// NewRelationshipAnalyzer creates an analyzer over the built entities. The
// override set forces the named entities to be treated as join tables and
// is snapshotted here, so later mutation by the caller has no effect.
func NewRelationshipAnalyzer(cfg models.Config, entities []*models.Entity, edges []models.ForeignKeyEdge, joinOverrides []string, logger *logrus.Logger) *RelationshipAnalyzer {
	overrides := make(map[string]bool, len(joinOverrides))
	for _, name := range joinOverrides {
		overrides[strings.ToLower(strings.TrimSpace(name))] = true
	}

	indexMap := make(map[string]int, len(entities))
	for i, e := range entities {
		indexMap[strings.ToLower(e.Name)] = i
	}

	return &RelationshipAnalyzer{
		Config:         cfg,
		Entities:       entities,
		Edges:          edges,
		JoinOverrides:  overrides,
		EntityIndexMap: indexMap,
		Logger:         logger,
	}
}

// Analyze runs classification and relationship derivation. Entities are
// mutated only here (is_weak, is_join_table); the returned relationships
// are immutable afterwards.
func (ra *RelationshipAnalyzer) Analyze() ([]models.Relationship, []models.Diagnostic) {
	relationships := []models.Relationship{}
	var diags []models.Diagnostic

	ra.buildDependencyGraph()

	edgesBySource := make(map[string][]*models.ForeignKeyEdge)
	for i := range ra.Edges {
		edge := &ra.Edges[i]
		edgesBySource[strings.ToLower(edge.Source)] = append(edgesBySource[strings.ToLower(edge.Source)], edge)
	}

	// Classification first, so direct-edge processing can skip join tables
	overWide := make(map[string]bool)
	for _, entity := range ra.Entities {
		edges := edgesBySource[strings.ToLower(entity.Name)]
		targets := distinctTargets(edges)

		if len(targets) >= 4 {
			// Too many participants for a drawable relationship; keep the
			// entity as a plain box and flag the design for review
			overWide[strings.ToLower(entity.Name)] = true
			diags = append(diags, models.Diagnostic{
				Message: fmt.Sprintf(
					"table %s references %d distinct tables; review whether it should be split",
					entity.Name, len(targets)),
				Severity: models.SeverityWarning,
			})
			continue
		}

		entity.IsJoinTable = ra.isJoinTable(entity, edges)
	}

	joinTables := make(map[string]bool)
	for _, entity := range ra.Entities {
		if entity.IsJoinTable {
			joinTables[strings.ToLower(entity.Name)] = true
		}
	}

	for _, entity := range ra.Entities {
		edges := edgesBySource[strings.ToLower(entity.Name)]
		if overWide[strings.ToLower(entity.Name)] {
			continue
		}

		if entity.IsJoinTable {
			rel, joinDiags := ra.joinRelationship(entity, edges)
			diags = append(diags, joinDiags...)
			if rel != nil {
				relationships = append(relationships, *rel)
			}
			continue
		}

		ra.markWeak(entity, edges)

		for _, edge := range edges {
			if joinTables[strings.ToLower(edge.Target)] {
				ra.Logger.Debugf("dropping edge %s -> %s: target classified as join table",
					edge.Source, edge.Target)
				continue
			}
			rel, warn := ra.directRelationship(entity, edge)
			relationships = append(relationships, rel)
			if warn != nil {
				diags = append(diags, *warn)
			}
		}
	}

	diags = append(diags, ra.circularWarnings()...)

	return relationships, diags
}

// isJoinTable applies the ordered classification rules, manual override
// first, short-circuiting on the first match
func (ra *RelationshipAnalyzer) isJoinTable(entity *models.Entity, edges []*models.ForeignKeyEdge) bool {
	if ra.JoinOverrides[strings.ToLower(entity.Name)] {
		ra.Logger.Debugf("table %s forced to join table by override", entity.Name)
		return true
	}
	if len(edges) < 2 {
		return false
	}

	fkCount := 0
	for _, col := range entity.Columns {
		if col.IsForeignKey {
			fkCount++
		}
	}

	// Rule A: nothing but foreign keys
	if len(entity.Columns) >= 2 && fkCount == len(entity.Columns) {
		return true
	}

	// Rule B: composite primary key made entirely of foreign keys
	if len(entity.PrimaryKey) >= 2 {
		allFK := true
		for _, name := range entity.PrimaryKey {
			col := entity.Column(name)
			if col == nil || !col.IsForeignKey {
				allFK = false
				break
			}
		}
		if allFK {
			return true
		}
	}

	// Rule C: two suffix-convention foreign keys plus only bookkeeping columns
	suffixFKs := 0
	for _, col := range entity.Columns {
		if col.IsForeignKey && strings.HasSuffix(strings.ToLower(col.Name), strings.ToLower(ra.Config.ForeignKeySuffix)) {
			suffixFKs++
		}
	}
	if suffixFKs == 2 {
		for _, col := range entity.Columns {
			if col.IsForeignKey {
				continue
			}
			if col.IsPrimaryKey && col.AutoIncrement {
				continue
			}
			if ra.Config.IsMetadataColumn(col.Name) {
				continue
			}
			return false
		}
		return true
	}

	return false
}

// joinRelationship emits the N-M or n-ary relationship for a join table
func (ra *RelationshipAnalyzer) joinRelationship(entity *models.Entity, edges []*models.ForeignKeyEdge) (*models.Relationship, []models.Diagnostic) {
	var diags []models.Diagnostic
	targets := distinctTargets(edges)
	if len(targets) == 0 {
		return nil, diags
	}

	participants := make([]string, 0, len(targets))
	for _, t := range targets {
		participants = append(participants, ra.canonicalName(t))
	}

	rel := &models.Relationship{
		Name:          entity.Name,
		Participants:  participants,
		ViaTable:      entity.Name,
		Cardinality:   map[string]string{},
		Participation: map[string]string{},
		Attributes:    relationshipAttributes(entity),
	}

	switch len(targets) {
	case 1, 2:
		rel.Kind = models.KindManyToMany
		symbols := []string{"N", "M"}
		for i, p := range participants {
			rel.Cardinality[p] = symbols[i%2]
		}
	case 3:
		rel.Kind = models.KindNAry
		for _, p := range participants {
			rel.Cardinality[p] = "N"
		}
		diags = append(diags, models.Diagnostic{
			Message:  fmt.Sprintf("table %s represents a ternary relationship", entity.Name),
			Severity: models.SeverityWarning,
		})
	}

	for _, p := range participants {
		rel.Participation[p] = "partial"
	}
	for _, edge := range edges {
		p := ra.canonicalName(edge.Target)
		if _, ok := rel.Participation[p]; !ok {
			continue
		}
		if !edge.SourceNullable && len(targets) <= 2 {
			rel.Participation[p] = "total"
		}
	}

	return rel, diags
}

// markWeak flags entities whose identity is borrowed from an FK target:
// the edge's source columns all sit inside this entity's primary key and
// its target columns cover the target's full primary key
func (ra *RelationshipAnalyzer) markWeak(entity *models.Entity, edges []*models.ForeignKeyEdge) {
	if len(entity.PrimaryKey) == 0 {
		return
	}
	for _, edge := range edges {
		if !edge.Resolved {
			continue
		}
		target := ra.entity(edge.Target)
		if target == nil || len(target.PrimaryKey) == 0 {
			continue
		}
		if namesSubset(edge.SourceColumns, entity.PrimaryKey) &&
			sameNameSet(edge.TargetColumns, target.PrimaryKey) {
			entity.IsWeak = true
			return
		}
	}
}

// directRelationship emits the binary relationship for one plain FK edge
func (ra *RelationshipAnalyzer) directRelationship(entity *models.Entity, edge *models.ForeignKeyEdge) (models.Relationship, *models.Diagnostic) {
	targetName := ra.canonicalName(edge.Target)

	kind := models.KindOneToMany
	sourceCard := "N"
	if edge.SourceUnique {
		kind = models.KindOneToOne
		sourceCard = "1"
	}

	sourcePart := "partial"
	if !edge.SourceNullable {
		sourcePart = "total"
	}

	var warn *models.Diagnostic
	targetPart := "total"
	if !edge.Resolved {
		// Existence of the referenced side cannot be proven
		targetPart = "partial"
		warn = &models.Diagnostic{
			Line: edge.Line,
			Message: fmt.Sprintf(
				"relationship %s_%s references undefined table %s; participation left partial",
				edge.Target, entity.Name, edge.Target),
			Severity: models.SeverityWarning,
		}
	}

	identifying := entity.IsWeak && namesSubset(edge.SourceColumns, entity.PrimaryKey)

	rel := models.Relationship{
		Name:         fmt.Sprintf("%s_%s", targetName, entity.Name),
		Kind:         kind,
		Participants: []string{targetName, entity.Name},
		Cardinality: map[string]string{
			targetName:  "1",
			entity.Name: sourceCard,
		},
		Participation: map[string]string{
			targetName:  targetPart,
			entity.Name: sourcePart,
		},
		Attributes:  []models.Attribute{},
		Identifying: identifying,
	}
	return rel, warn
}

// buildDependencyGraph records entity dependencies for cycle detection and
// insertion ordering. Mandatory foreign keys weigh less than optional ones
// so ordering prefers satisfying NOT NULL references first.
func (ra *RelationshipAnalyzer) buildDependencyGraph() {
	ra.DependencyGraph = graph.New(len(ra.Entities))
	for _, edge := range ra.Edges {
		src, okSrc := ra.EntityIndexMap[strings.ToLower(edge.Source)]
		dst, okDst := ra.EntityIndexMap[strings.ToLower(edge.Target)]
		if !okSrc || !okDst || src == dst {
			continue
		}
		weight := int64(2)
		if !edge.SourceNullable {
			weight = 1
		}
		ra.DependencyGraph.AddCost(src, dst, weight)
	}
}

// circularWarnings reports strongly connected entity groups, which the
// renderer cannot lay out as a hierarchy and schema authors usually want
// to know about
func (ra *RelationshipAnalyzer) circularWarnings() []models.Diagnostic {
	var diags []models.Diagnostic
	if ra.DependencyGraph == nil {
		return diags
	}
	for _, component := range graph.StrongComponents(ra.DependencyGraph) {
		if len(component) < 2 {
			continue
		}
		names := make([]string, 0, len(component))
		for _, idx := range component {
			names = append(names, ra.Entities[idx].Name)
		}
		sort.Strings(names)
		diags = append(diags, models.Diagnostic{
			Message: fmt.Sprintf("circular reference between tables: %s",
				strings.Join(names, ", ")),
			Severity: models.SeverityWarning,
		})
	}
	return diags
}

// InsertionOrder returns entity names ordered so foreign-key targets come
// before the tables referencing them; join tables go last. Falls back to
// declaration order when the graph has cycles.
func (ra *RelationshipAnalyzer) InsertionOrder() []string {
	if ra.DependencyGraph == nil {
		ra.buildDependencyGraph()
	}

	order := make([]string, 0, len(ra.Entities))
	if topo, ok := graph.TopSort(ra.DependencyGraph); ok {
		// TopSort puts dependents first; reverse so targets come first
		for i := len(topo) - 1; i >= 0; i-- {
			order = append(order, ra.Entities[topo[i]].Name)
		}
	} else {
		ra.Logger.Warning("dependency cycle detected, using declaration order")
		for _, e := range ra.Entities {
			order = append(order, e.Name)
		}
	}

	var plain, joins []string
	for _, name := range order {
		if e := ra.entity(name); e != nil && e.IsJoinTable {
			joins = append(joins, name)
		} else {
			plain = append(plain, name)
		}
	}
	return append(plain, joins...)
}

func (ra *RelationshipAnalyzer) entity(name string) *models.Entity {
	if idx, ok := ra.EntityIndexMap[strings.ToLower(name)]; ok {
		return ra.Entities[idx]
	}
	return nil
}

// canonicalName resolves a referenced table name to its declared spelling
func (ra *RelationshipAnalyzer) canonicalName(name string) string {
	if e := ra.entity(name); e != nil {
		return e.Name
	}
	return name
}

// distinctTargets lists the distinct referenced tables in edge order
func distinctTargets(edges []*models.ForeignKeyEdge) []string {
	seen := make(map[string]bool)
	var targets []string
	for _, edge := range edges {
		key := strings.ToLower(edge.Target)
		if !seen[key] {
			seen[key] = true
			targets = append(targets, edge.Target)
		}
	}
	return targets
}

// relationshipAttributes carries a join table's non-key columns onto the
// relationship itself
func relationshipAttributes(entity *models.Entity) []models.Attribute {
	attrs := []models.Attribute{}
	for _, col := range entity.Columns {
		if col.IsForeignKey || col.IsPrimaryKey {
			continue
		}
		attrs = append(attrs, models.Attribute{Name: col.Name, Type: col.Type})
	}
	return attrs
}

func namesSubset(sub, super []string) bool {
	if len(sub) == 0 {
		return false
	}
	for _, s := range sub {
		found := false
		for _, p := range super {
			if strings.EqualFold(s, p) {
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

func sameNameSet(a, b []string) bool {
	return len(a) == len(b) && namesSubset(a, b) && namesSubset(b, a)
}
