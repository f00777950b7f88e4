package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"sql2erd/internal/connector"
	"sql2erd/internal/engine"
	"sql2erd/internal/generator"
	"sql2erd/internal/server"
	"sql2erd/internal/utils"
	"sql2erd/pkg/models"
)

func main() {
	var (
		envFile    string
		logLevel   string
		joinTables []string
		fkSuffix   string
		report     bool
		records    int
		addr       string
		host       string
		user       string
		password   string
		database   string
		port       string
	)

	newEngine := func() *engine.Engine {
		logger := utils.SetupLogging(logLevel)
		utils.LoadEnvironmentVariables(envFile, logger)

		cfg := models.DefaultConfig()
		if fkSuffix != "" {
			cfg.ForeignKeySuffix = fkSuffix
		}
		return engine.New(cfg, logger)
	}

	rootCmd := &cobra.Command{
		Use:   "sql2erd",
		Short: "A tool to derive entity-relationship diagrams from SQL DDL",
		Long: `sql2erd

Parses CREATE TABLE batches, infers entities and relationships (including
join tables, weak entities, and n-ary relationships), and emits a JSON
document for diagram rendering. Malformed input degrades to warnings and
errors in the output instead of aborting the run.`,
	}

	parseCmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a DDL file (or stdin) and print the schema document as JSON",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			eng := newEngine()

			// Read DDL from the file argument, or stdin when absent
			sql, err := readInput(args)
			if err != nil {
				eng.Logger.Errorf("Failed to read input: %v", err)
				os.Exit(1)
			}

			schema := eng.Parse(sql, joinTables)

			if report {
				utils.PrintSchemaReport(os.Stderr, schema)
			}

			if err := writeJSON(os.Stdout, schema); err != nil {
				eng.Logger.Errorf("Failed to encode schema: %v", err)
				os.Exit(1)
			}
		},
	}
	parseCmd.Flags().StringSliceVarP(&joinTables, "join-table", "j", nil, "Table names to force-classify as join tables (repeatable)")
	parseCmd.Flags().BoolVarP(&report, "report", "R", false, "Print a human-readable summary to stderr alongside the JSON")

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Pull DDL from a live MySQL database and print the schema document",
		Run: func(cmd *cobra.Command, args []string) {
			eng := newEngine()

			// Create database connector (flags fall back to MYSQL_* env vars)
			db := connector.NewDatabaseConnector(host, user, password, database, port, eng.Logger)
			if err := db.Connect(); err != nil {
				eng.Logger.Errorf("Failed to connect to database: %v", err)
				os.Exit(1)
			}
			defer db.Disconnect()

			// Dump CREATE TABLE statements and feed them through the engine
			sql, err := db.DumpDDL()
			if err != nil {
				eng.Logger.Errorf("Failed to dump DDL: %v", err)
				os.Exit(1)
			}

			schema := eng.Parse(sql, joinTables)

			if report {
				utils.PrintSchemaReport(os.Stderr, schema)
			}

			if err := writeJSON(os.Stdout, schema); err != nil {
				eng.Logger.Errorf("Failed to encode schema: %v", err)
				os.Exit(1)
			}
		},
	}
	extractCmd.Flags().StringVarP(&host, "host", "H", "", "MySQL host (default: localhost)")
	extractCmd.Flags().StringVarP(&user, "user", "u", "", "MySQL user (default: root)")
	extractCmd.Flags().StringVarP(&password, "password", "p", "", "MySQL password")
	extractCmd.Flags().StringVarP(&database, "database", "d", "", "MySQL database name")
	extractCmd.Flags().StringVarP(&port, "port", "P", "", "MySQL port (default: 3306)")
	extractCmd.Flags().StringSliceVarP(&joinTables, "join-table", "j", nil, "Table names to force-classify as join tables (repeatable)")
	extractCmd.Flags().BoolVarP(&report, "report", "R", false, "Print a human-readable summary to stderr alongside the JSON")

	sampleCmd := &cobra.Command{
		Use:   "sample [file]",
		Short: "Parse a DDL file (or stdin) and generate INSERT statements with realistic dummy data",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			eng := newEngine()

			sql, err := readInput(args)
			if err != nil {
				eng.Logger.Errorf("Failed to read input: %v", err)
				os.Exit(1)
			}

			// Insertion order puts referenced tables first so generated
			// rows satisfy foreign keys
			schema, order := eng.ParseWithOrder(sql, joinTables)
			if len(schema.Entities) == 0 {
				eng.Logger.Error("No tables found in input")
				os.Exit(1)
			}

			gen := generator.NewSampleGenerator(schema, eng.Logger)
			fmt.Print(gen.Generate(order, records))
		},
	}
	sampleCmd.Flags().StringSliceVarP(&joinTables, "join-table", "j", nil, "Table names to force-classify as join tables (repeatable)")
	sampleCmd.Flags().IntVarP(&records, "records", "r", 10, "Number of records to generate per table")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an HTTP API that parses posted DDL and returns the schema document",
		Run: func(cmd *cobra.Command, args []string) {
			eng := newEngine()

			srv := server.New(eng, eng.Logger)
			if err := srv.Run(addr); err != nil {
				eng.Logger.Errorf("Server failed: %v", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "Listen address")

	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "e", ".env", "Path to .env file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&fkSuffix, "fk-suffix", "s", "", "Foreign key naming suffix used by inference heuristics (default: _id)")

	rootCmd.AddCommand(parseCmd, extractCmd, sampleCmd, serveCmd)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// readInput returns the contents of the file argument, or stdin when no
// argument was given
func readInput(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(args[0])
	return string(data), err
}

func writeJSON(w io.Writer, schema *models.Schema) error {
	return schema.Encode(w)
}
