package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"sql2erd/pkg/models"
)

// SetupLogging configures the logging system
func SetupLogging(logLevel string) *logrus.Logger {
	logger := logrus.New()

	levelStr := logLevel
	if levelStr == "" {
		levelStr = os.Getenv("SQL2ERD_LOG_LEVEL")
		if levelStr == "" {
			levelStr = "info"
		}
	}

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stderr)

	return logger
}

// LoadEnvironmentVariables loads environment variables from a .env file
// when one exists. Only the extract command needs MYSQL_* variables, so
// missing values are hints rather than failures.
func LoadEnvironmentVariables(envFile string, logger *logrus.Logger) {
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		sampleEnvFile := envFile + ".sample"
		if _, err := os.Stat(sampleEnvFile); err == nil {
			logger.Infof("No %s file found, but %s exists. Consider copying %s to %s and updating it.",
				envFile, sampleEnvFile, sampleEnvFile, envFile)
		}
		return
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warningf("Error loading %s file: %v", envFile, err)
		return
	}
	logger.Infof("Loaded environment variables from %s", envFile)
}

// PrintSchemaReport writes a human-readable summary of the parsed schema
func PrintSchemaReport(w io.Writer, schema *models.Schema) {
	fmt.Fprintf(w, "\nSCHEMA ANALYSIS REPORT\n")
	fmt.Fprintf(w, "Entities: %d  Relationships: %d  Warnings: %d  Errors: %d\n\n",
		len(schema.Entities), len(schema.Relationships), len(schema.Warnings), len(schema.Errors))

	if len(schema.Entities) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Entity", "Columns", "Primary Key", "Kind"})
		for _, e := range schema.Entities {
			t.AppendRow(table.Row{e.Name, len(e.Columns), strings.Join(e.PrimaryKey, ", "), entityKind(e)})
		}
		t.Render()
		fmt.Fprintln(w)
	}

	if len(schema.Relationships) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Relationship", "Type", "Participants", "Via"})
		for _, r := range schema.Relationships {
			t.AppendRow(table.Row{r.Name, r.Kind, strings.Join(r.Participants, ", "), r.ViaTable})
		}
		t.Render()
		fmt.Fprintln(w)
	}

	printDiagnostics(w, "Warnings", schema.Warnings)
	printDiagnostics(w, "Errors", schema.Errors)
}

func entityKind(e *models.Entity) string {
	switch {
	case e.IsJoinTable:
		return "join table"
	case e.IsWeak:
		return "weak"
	default:
		return "regular"
	}
}

func printDiagnostics(w io.Writer, label string, diags []models.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", label)
	for _, d := range diags {
		if d.Line > 0 {
			fmt.Fprintf(w, "  [%s] line %d: %s\n", d.Severity, d.Line, d.Message)
		} else {
			fmt.Fprintf(w, "  [%s] %s\n", d.Severity, d.Message)
		}
	}
	fmt.Fprintln(w)
}
