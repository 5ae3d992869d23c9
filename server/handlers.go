package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/pkg/extract"
	"github.com/xhad/docqa/pkg/pipeline"
)

type historyResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []models.Message `json:"messages"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ingestStatus maps rejected input to 400 and everything else to 500.
func ingestStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrUnsupportedType),
		errors.Is(err, pipeline.ErrNoText),
		errors.Is(err, pipeline.ErrNoChunks):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleUpload(c echo.Context) error {
	ctx := c.Request().Context()

	header, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}

	filename := filepath.Base(header.Filename)
	if _, err := extract.ForName(filename); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	src, err := header.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read upload")
	}
	defer src.Close()

	path, err := s.saveUpload(filename, src)
	if err != nil {
		s.log.ErrorContext(ctx, "upload_save_failed", slog.String("filename", filename), slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store upload")
	}

	saved, err := os.Open(path)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store upload")
	}
	defer saved.Close()

	result, err := s.ingester.Ingest(ctx, filename, saved)
	if err != nil {
		status := ingestStatus(err)
		if status == http.StatusInternalServerError {
			s.log.ErrorContext(ctx, "ingest_failed", slog.String("filename", filename), slog.String("error", err.Error()))
			return echo.NewHTTPError(status, "failed to index document").SetInternal(err)
		}
		return echo.NewHTTPError(status, err.Error())
	}

	return c.JSON(http.StatusOK, result)
}

func (s *Server) saveUpload(filename string, r io.Reader) (string, error) {
	dir := s.config.uploadDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s", uuid.NewString(), filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return "", err
	}
	return path, dst.Close()
}

func (s *Server) handleQuery(c echo.Context) error {
	var req pipeline.QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := s.querier.Query(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyQuestion) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to answer question").SetInternal(err)
	}

	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleHistory(c echo.Context) error {
	sessionID := c.Param("session_id")

	limit := s.config.HistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	messages, err := s.querier.History(c.Request().Context(), sessionID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load history").SetInternal(err)
	}
	if messages == nil {
		messages = []models.Message{}
	}

	return c.JSON(http.StatusOK, historyResponse{SessionID: sessionID, Messages: messages})
}
