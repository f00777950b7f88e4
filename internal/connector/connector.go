package connector

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

// DatabaseConnector extracts DDL from a live MySQL database so the engine
// can parse a running schema instead of a script
type DatabaseConnector struct {
	Host     string
	User     string
	Password string
	Database string
	Port     string
	DB       *sql.DB
	Logger   *logrus.Logger
}

// NewDatabaseConnector creates a connector, falling back to MYSQL_*
// environment variables for missing parameters
func NewDatabaseConnector(host, user, password, database, port string, logger *logrus.Logger) *DatabaseConnector {
	if host == "" {
		host = getEnvOrDefault("MYSQL_HOST", "localhost")
	}
	if user == "" {
		user = getEnvOrDefault("MYSQL_USER", "root")
	}
	if password == "" {
		password = getEnvOrDefault("MYSQL_PASSWORD", "")
	}
	if database == "" {
		database = getEnvOrDefault("MYSQL_DATABASE", "")
	}
	if port == "" {
		port = getEnvOrDefault("MYSQL_PORT", "3306")
	}

	return &DatabaseConnector{
		Host:     host,
		User:     user,
		Password: password,
		Database: database,
		Port:     port,
		Logger:   logger,
	}
}

// Connect establishes the MySQL connection
func (dc *DatabaseConnector) Connect() error {
	if dc.Database == "" {
		return fmt.Errorf("database name must be provided either as an argument or as MYSQL_DATABASE environment variable")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", dc.User, dc.Password, dc.Host, dc.Port, dc.Database)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		dc.Logger.Errorf("Error connecting to MySQL database: %v", err)
		return err
	}

	if err := db.Ping(); err != nil {
		dc.Logger.Errorf("Error pinging MySQL database: %v", err)
		return err
	}

	dc.DB = db
	dc.Logger.Infof("Connected to MySQL database: %s", dc.Database)
	return nil
}

// Disconnect closes the database connection
func (dc *DatabaseConnector) Disconnect() {
	if dc.DB != nil {
		if err := dc.DB.Close(); err != nil {
			dc.Logger.Errorf("Error closing database connection: %v", err)
		} else {
			dc.Logger.Info("MySQL connection closed")
		}
	}
}

// Tables lists the base tables of the connected database. Views are
// excluded; they carry no ER information.
func (dc *DatabaseConnector) Tables() ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	rows, err := dc.DB.Query(query, dc.Database)
	if err != nil {
		dc.Logger.Errorf("Error listing tables: %v", err)
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			dc.Logger.Errorf("Error scanning table name: %v", err)
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// DumpDDL returns the CREATE TABLE statements of every base table as one
// script, ready for the parsing engine
func (dc *DatabaseConnector) DumpDDL() (string, error) {
	if dc.DB == nil {
		if err := dc.Connect(); err != nil {
			return "", err
		}
	}

	tables, err := dc.Tables()
	if err != nil {
		return "", err
	}
	if len(tables) == 0 {
		dc.Logger.Warningf("Database %s has no base tables", dc.Database)
		return "", nil
	}

	var b strings.Builder
	for _, table := range tables {
		ddl, err := dc.showCreateTable(table)
		if err != nil {
			dc.Logger.Warningf("Failed to dump DDL for table %s: %v", table, err)
			continue
		}
		b.WriteString(ddl)
		b.WriteString(";\n\n")
	}

	dc.Logger.Infof("Dumped DDL for %d tables from %s", len(tables), dc.Database)
	return b.String(), nil
}

func (dc *DatabaseConnector) showCreateTable(table string) (string, error) {
	row := dc.DB.QueryRow(fmt.Sprintf("SHOW CREATE TABLE `%s`", table))
	var name, ddl string
	if err := row.Scan(&name, &ddl); err != nil {
		return "", err
	}
	return ddl, nil
}

// getEnvOrDefault gets an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
