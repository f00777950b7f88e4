// Package engine wires the parsing pipeline together: normalize, split,
// extract, build, resolve, infer. Every stage reports problems as
// diagnostics instead of failing the batch.
package engine

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"sql2erd/internal/analyzer"
	"sql2erd/internal/builder"
	"sql2erd/internal/diagnostics"
	"sql2erd/internal/normalizer"
	"sql2erd/internal/parser"
	"sql2erd/pkg/models"
)

// Engine parses SQL DDL into an ER schema document. It holds no state
// between calls; each Parse builds a fresh Schema.
type Engine struct {
	Config  models.Config
	Workers int
	Logger  *logrus.Logger
}

// New creates an engine with the given conventions
func New(cfg models.Config, logger *logrus.Logger) *Engine {
	return &Engine{
		Config:  cfg,
		Workers: runtime.NumCPU(),
		Logger:  logger,
	}
}

// statementResult carries everything one statement produced, merged back
// in original statement order so output is deterministic
type statementResult struct {
	result      *builder.Result
	diagnostics []models.Diagnostic
}

// Parse runs the full pipeline over one DDL batch. joinOverrides names
// entities to force-classify as join tables.
func (e *Engine) Parse(sql string, joinOverrides []string) *models.Schema {
	schema, _ := e.parse(sql, joinOverrides)
	return schema
}

// ParseWithOrder additionally returns entity names ordered so that every
// referenced table comes before the tables that reference it
func (e *Engine) ParseWithOrder(sql string, joinOverrides []string) (*models.Schema, []string) {
	schema, ra := e.parse(sql, joinOverrides)
	return schema, ra.InsertionOrder()
}

func (e *Engine) parse(sql string, joinOverrides []string) (*models.Schema, *analyzer.RelationshipAnalyzer) {
	collector := diagnostics.NewCollector()

	statements := normalizer.Statements(sql)
	if e.Config.MaxStatements > 0 && len(statements) > e.Config.MaxStatements {
		collector.Add(models.Diagnostic{
			Line: statements[e.Config.MaxStatements].Line,
			Message: fmt.Sprintf(
				"input truncated after %d statements; remaining statements were not processed",
				e.Config.MaxStatements),
			Severity: models.SeverityCritical,
		})
		statements = statements[:e.Config.MaxStatements]
	}

	results := e.parseStatements(statements)

	// First pass: merge per-statement results in statement order
	var entities []*models.Entity
	var edges []models.ForeignKeyEdge
	index := make(map[string]bool)

	for _, sr := range results {
		collector.AddAll(sr.diagnostics)
		if sr.result == nil {
			continue
		}
		entity := sr.result.Entity
		if index[strings.ToLower(entity.Name)] {
			collector.Add(models.Diagnostic{
				StatementExcerpt: parser.Excerpt(entity.Name),
				Message:          fmt.Sprintf("duplicate definition of table %s ignored", entity.Name),
				Severity:         models.SeverityError,
			})
			continue
		}
		index[strings.ToLower(entity.Name)] = true
		entities = append(entities, entity)
		edges = append(edges, sr.result.ForeignKeys...)
	}

	// Second pass: resolve edges now that every entity is known. CREATE
	// TABLE order guarantees nothing, so this cannot happen sooner.
	edges = e.resolveEdges(entities, edges, collector)

	ra := analyzer.NewRelationshipAnalyzer(e.Config, entities, edges, joinOverrides, e.Logger)
	relationships, inferenceDiags := ra.Analyze()
	collector.AddAll(inferenceDiags)

	if len(entities) == 0 {
		collector.Add(models.Diagnostic{
			Message:  "no usable entities were found in the input",
			Severity: models.SeverityCritical,
		})
	}

	schema := models.NewSchema()
	schema.Entities = append(schema.Entities, entities...)
	schema.Relationships = relationships
	schema.Warnings = collector.Warnings()
	schema.Errors = collector.Errors()
	return schema, ra
}

// parseStatements extracts and builds each statement. Statements are
// independent, so they fan out across workers; results land in a slice
// indexed by statement position to keep diagnostic order deterministic.
func (e *Engine) parseStatements(statements []normalizer.Statement) []statementResult {
	results := make([]statementResult, len(statements))

	var g errgroup.Group
	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, stmt := range statements {
		i, stmt := i, stmt
		g.Go(func() error {
			results[i] = e.parseStatement(stmt)
			return nil
		})
	}
	// Workers never return errors; failures are diagnostics
	_ = g.Wait()

	return results
}

func (e *Engine) parseStatement(stmt normalizer.Statement) statementResult {
	switch parser.Classify(stmt.Text) {
	case parser.KindUnsupported:
		return statementResult{diagnostics: []models.Diagnostic{{
			Line:             stmt.Line,
			StatementExcerpt: parser.Excerpt(stmt.Text),
			Message:          "skipping unsupported statement",
			Severity:         models.SeverityWarning,
		}}}
	case parser.KindUnrecognized:
		return statementResult{diagnostics: []models.Diagnostic{{
			Line:             stmt.Line,
			StatementExcerpt: parser.Excerpt(stmt.Text),
			Message:          "skipping unrecognized statement",
			Severity:         models.SeverityWarning,
		}}}
	}

	raw, diags := parser.ExtractCreateTable(stmt)
	if raw == nil {
		return statementResult{diagnostics: diags}
	}

	res := builder.Build(raw)
	e.Logger.Debugf("built table %s with %d columns and %d foreign keys",
		res.Entity.Name, len(res.Entity.Columns), len(res.ForeignKeys))
	return statementResult{
		result:      &res,
		diagnostics: append(diags, res.Diagnostics...),
	}
}

// resolveEdges marks edges whose target entity exists and fills in target
// columns that inline REFERENCES left implicit. Dangling references stay
// in the edge list; losing them would hide information.
func (e *Engine) resolveEdges(entities []*models.Entity, edges []models.ForeignKeyEdge, collector *diagnostics.Collector) []models.ForeignKeyEdge {
	index := make(map[string]*models.Entity, len(entities))
	for _, entity := range entities {
		index[strings.ToLower(entity.Name)] = entity
	}

	for i := range edges {
		edge := &edges[i]
		target, ok := index[strings.ToLower(edge.Target)]
		if !ok {
			collector.Add(models.Diagnostic{
				Line: edge.Line,
				Message: fmt.Sprintf(
					"table %s references table %s, which is not defined anywhere in the input",
					edge.Source, edge.Target),
				Severity: models.SeverityError,
			})
			continue
		}
		edge.Resolved = true

		// REFERENCES without a column list means the target's primary key
		if bare(edge.TargetColumns) && len(edge.SourceColumns) == len(target.PrimaryKey) {
			edge.TargetColumns = append([]string(nil), target.PrimaryKey...)
			source := index[strings.ToLower(edge.Source)]
			if source == nil {
				continue
			}
			for pos, name := range edge.SourceColumns {
				if col := source.Column(name); col != nil && col.Reference != nil && col.Reference.Column == "" {
					col.Reference.Column = edge.TargetColumns[pos]
				}
			}
		}
	}
	return edges
}

func bare(cols []string) bool {
	if len(cols) == 0 {
		return true
	}
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}
