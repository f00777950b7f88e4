// Package server exposes the engine's output document over HTTP for the
// external diagram renderer. It contains no inference logic.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sql2erd/internal/engine"
)

// ParseRequest is the payload accepted by the parse endpoint
type ParseRequest struct {
	SQL        string   `json:"sql" binding:"required"`
	JoinTables []string `json:"join_tables"`
}

// Server wraps the parsing engine behind a small HTTP API
type Server struct {
	Engine *engine.Engine
	Logger *logrus.Logger
}

// New creates a server around an engine
func New(parseEngine *engine.Engine, logger *logrus.Logger) *Server {
	return &Server{
		Engine: parseEngine,
		Logger: logger,
	}
}

// Router builds the gin router. CORS is open because the renderer runs in
// the browser on another origin.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
	}))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.POST("/parse", s.handleParse)

	return router
}

// Run starts the HTTP server on the given address
func (s *Server) Run(addr string) error {
	s.Logger.Infof("Serving parse API on %s", addr)
	return s.Router().Run(addr)
}

func (s *Server) handleParse(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schema := s.Engine.Parse(req.SQL, req.JoinTables)
	s.Logger.Infof("Parsed %d entities and %d relationships",
		len(schema.Entities), len(schema.Relationships))
	c.JSON(http.StatusOK, schema)
}
