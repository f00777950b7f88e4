package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql2erd/internal/engine"
	"sql2erd/pkg/models"
)

func testServer() *Server {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(engine.New(models.DefaultConfig(), logger), logger)
}

func postParse(t *testing.T, srv *Server, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestParseEndpoint(t *testing.T) {
	rec := postParse(t, testServer(), ParseRequest{
		SQL: `
			CREATE TABLE authors (id INT PRIMARY KEY);
			CREATE TABLE books (
				id INT PRIMARY KEY,
				author_id INT NOT NULL,
				FOREIGN KEY (author_id) REFERENCES authors(id)
			);
		`,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var schema models.Schema
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schema))
	assert.Len(t, schema.Entities, 2)
	require.Len(t, schema.Relationships, 1)
	assert.Equal(t, models.KindOneToMany, schema.Relationships[0].Kind)
}

func TestParseEndpointJoinOverride(t *testing.T) {
	rec := postParse(t, testServer(), ParseRequest{
		SQL: `
			CREATE TABLE a (id INT PRIMARY KEY);
			CREATE TABLE b (id INT PRIMARY KEY);
			CREATE TABLE ab (
				id INT PRIMARY KEY,
				a_id INT NOT NULL,
				b_id INT NOT NULL,
				extra TEXT,
				FOREIGN KEY (a_id) REFERENCES a(id),
				FOREIGN KEY (b_id) REFERENCES b(id)
			);
		`,
		JoinTables: []string{"ab"},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var schema models.Schema
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schema))
	ab := schema.Entity("ab")
	require.NotNil(t, ab)
	assert.True(t, ab.IsJoinTable)
}

func TestParseEndpointBrokenInputStillOK(t *testing.T) {
	// Fail-safe parsing means malformed SQL is a 200 with diagnostics,
	// not a request failure
	rec := postParse(t, testServer(), ParseRequest{SQL: "CREATE TABLE broken (id INT"})

	require.Equal(t, http.StatusOK, rec.Code)

	var schema models.Schema
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schema))
	assert.NotEmpty(t, schema.Errors)
}

func TestParseEndpointRejectsMissingSQL(t *testing.T) {
	rec := postParse(t, testServer(), map[string]interface{}{"join_tables": []string{"x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseEndpointRejectsBadJSON(t *testing.T) {
	srv := testServer()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
