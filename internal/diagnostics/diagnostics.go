// Package diagnostics accumulates parser and inference feedback without
// ever halting the pipeline.
package diagnostics

import (
	"fmt"

	"sql2erd/pkg/models"
)

// Collector is an append-only aggregation of diagnostics keyed by severity.
// Duplicates are dropped only on exact (line, message) equality.
type Collector struct {
	warnings []models.Diagnostic
	errors   []models.Diagnostic
	seen     map[string]bool
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{
		warnings: []models.Diagnostic{},
		errors:   []models.Diagnostic{},
		seen:     make(map[string]bool),
	}
}

// Add routes one diagnostic by severity. Unknown severities are treated
// as errors rather than lost.
func (c *Collector) Add(d models.Diagnostic) {
	key := fmt.Sprintf("%d|%s", d.Line, d.Message)
	if c.seen[key] {
		return
	}
	c.seen[key] = true

	if d.Severity == models.SeverityWarning {
		c.warnings = append(c.warnings, d)
		return
	}
	c.errors = append(c.errors, d)
}

// AddAll appends a batch in order
func (c *Collector) AddAll(ds []models.Diagnostic) {
	for _, d := range ds {
		c.Add(d)
	}
}

// Warnings returns the accumulated warnings in arrival order
func (c *Collector) Warnings() []models.Diagnostic {
	return c.warnings
}

// Errors returns the accumulated error and critical diagnostics in
// arrival order
func (c *Collector) Errors() []models.Diagnostic {
	return c.errors
}

// HasCritical reports whether any critical diagnostic was recorded
func (c *Collector) HasCritical() bool {
	for _, d := range c.errors {
		if d.Severity == models.SeverityCritical {
			return true
		}
	}
	return false
}
