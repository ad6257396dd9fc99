// Package server exposes the pipelines over HTTP: multipart ingestion,
// JSON queries, a health probe and a websocket chat endpoint.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/docquery/docquery/internal/models"
	"github.com/docquery/docquery/pkg/pipeline"
)

// Pipeline is the slice of pipeline behavior the HTTP layer needs.
type Pipeline interface {
	Ingest(ctx context.Context, files []models.File) (models.IngestSummary, error)
	Query(ctx context.Context, req models.QueryRequest) (models.QueryResponse, error)
}

// Server routes HTTP and websocket traffic onto a Pipeline.
type Server struct {
	pipeline Pipeline
	logger   *zap.Logger
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// New builds the echo instance with all routes registered.
func New(p Pipeline, logger *zap.Logger) *echo.Echo {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{pipeline: p, logger: logger}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.requestLogger)

	e.GET("/healthz", s.handleHealth)
	e.POST("/ingest", s.handleIngest)
	e.POST("/query", s.handleQuery)
	e.GET("/ws", s.handleWebSocket)

	return e
}

// requestLogger tags every request with a UUID and logs its outcome.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := uuid.NewString()
		c.Response().Header().Set(echo.HeaderXRequestID, requestID)

		start := time.Now()
		err := next(c)
		s.logger.Info("request handled",
			zap.String("request_id", requestID),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)))
		return err
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIngest(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Detail: "No files provided"})
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Detail: "No files provided"})
	}

	files := make([]models.File, 0, len(headers))
	for _, header := range headers {
		src, err := header.Open()
		if err != nil {
			return c.JSON(http.StatusInternalServerError,
				errorResponse{Detail: "failed reading " + header.Filename + ": " + err.Error()})
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return c.JSON(http.StatusInternalServerError,
				errorResponse{Detail: "failed reading " + header.Filename + ": " + err.Error()})
		}
		files = append(files, models.File{Name: header.Filename, Data: data})
	}

	summary, err := s.pipeline.Ingest(c.Request().Context(), files)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoFiles) {
			return c.JSON(http.StatusBadRequest, errorResponse{Detail: "No files provided"})
		}
		return c.JSON(http.StatusInternalServerError, errorResponse{Detail: err.Error()})
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleQuery(c echo.Context) error {
	var req models.QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Detail: "invalid request body"})
	}
	if req.Question == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Detail: "question is required"})
	}

	// LLM failures never reach this point; they come back inside the
	// answer text. Only embedding and store failures are 500s.
	resp, err := s.pipeline.Query(c.Request().Context(), req)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Detail: err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}
