package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	smerrors "github.com/otherjamesbrown/summit/pkg/errors"
	"github.com/otherjamesbrown/summit/pkg/journal"
	"github.com/otherjamesbrown/summit/pkg/observability"
	"github.com/otherjamesbrown/summit/pkg/upload"
)

// Multipart field names of POST /api/uploads.
const (
	formFile  = "file"
	formTitle = "title"
)

// SSE event name for upload states.
const eventState = "state"

type uploadResponse struct {
	Upload upload.State `json:"upload"`
}

// handleStartUpload buffers the recording, then hands it to the coordinator.
// The upload outlives the request, so it runs detached from the request's
// cancellation.
func (s *Server) handleStartUpload(c *gin.Context) {
	fh, err := c.FormFile(formFile)
	if err != nil {
		s.fail(c, http.StatusBadRequest, "Invalid upload", fmt.Errorf("reading %q field: %w", formFile, err))
		return
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		s.fail(c, http.StatusRequestEntityTooLarge, "Invalid upload",
			fmt.Errorf("file is %d bytes, limit is %d", fh.Size, s.cfg.MaxUploadBytes))
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.fail(c, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.fail(c, http.StatusBadRequest, "Invalid upload", fmt.Errorf("reading file: %w", err))
		return
	}

	req := upload.Request{
		FileName:    fh.Filename,
		Title:       c.PostForm(formTitle),
		ContentType: fh.Header.Get("Content-Type"),
		Body:        bytes.NewReader(data),
	}

	ctx := context.WithoutCancel(c.Request.Context())
	if _, err := s.deps.Uploads.Start(ctx, req); err != nil {
		switch {
		case smerrors.IsValidation(err):
			s.fail(c, http.StatusBadRequest, "Invalid upload", err)
		case smerrors.IsUploadInProgress(err):
			s.fail(c, http.StatusConflict, "Upload in progress", err)
		case errors.Is(err, upload.ErrClosed):
			s.fail(c, http.StatusServiceUnavailable, "Server shutting down", err)
		default:
			s.fail(c, http.StatusInternalServerError, "Failed to start upload", err)
		}
		return
	}

	c.JSON(http.StatusAccepted, uploadResponse{Upload: s.deps.Uploads.Snapshot()})
}

func (s *Server) handleCurrentUpload(c *gin.Context) {
	c.JSON(http.StatusOK, uploadResponse{Upload: s.deps.Uploads.Snapshot()})
}

func (s *Server) handleDismissUpload(c *gin.Context) {
	if !s.deps.Uploads.Dismiss() {
		s.fail(c, http.StatusConflict, "Nothing to dismiss",
			fmt.Errorf("upload is %s: %w", s.deps.Uploads.Snapshot().Stage, smerrors.ErrInvalidState))
		return
	}
	c.JSON(http.StatusOK, uploadResponse{Upload: s.deps.Uploads.Snapshot()})
}

// handleUploadEvents streams every upload state as server-sent events until
// the client goes away or the coordinator closes.
func (s *Server) handleUploadEvents(c *gin.Context) {
	states, unsubscribe := s.deps.Uploads.Subscribe()
	defer unsubscribe()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case st, ok := <-states:
			if !ok {
				return false
			}
			c.SSEvent(eventState, st)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (s *Server) handleUploadHistory(c *gin.Context) {
	if s.deps.History == nil {
		s.fail(c, http.StatusNotFound, "Upload history unavailable",
			fmt.Errorf("journal is not configured: %w", smerrors.ErrNotFound))
		return
	}

	opts := journal.HistoryOptions{FailedOnly: c.Query("failed") == "true"}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.fail(c, http.StatusBadRequest, "Invalid limit", fmt.Errorf("limit %q: %w", v, smerrors.ErrValidation))
			return
		}
		opts.Limit = limit
	}

	entries, err := s.deps.History.History(c.Request.Context(), opts)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to load upload history", err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"uploads": entries})
}

// MetricsObserver feeds upload transitions into the upload metrics.
func MetricsObserver(m *observability.Metrics) upload.Observer {
	return upload.ObserverFunc(func(_ context.Context, prev, next upload.State) {
		if prev.Stage == next.Stage {
			return
		}
		m.RecordUploadTransition(string(next.Stage), next.Stage.InFlight())
	})
}
