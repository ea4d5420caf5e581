package server

import (
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	smerrors "github.com/otherjamesbrown/summit/pkg/errors"
	"github.com/otherjamesbrown/summit/pkg/logging"
	"github.com/otherjamesbrown/summit/pkg/meeting"
)

const jsonContentType = "application/json; charset=utf-8"

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// fail writes an error body. Upstream failures become 500 like any other
// forwarding failure; caller mistakes keep their 4xx status.
func (s *Server) fail(c *gin.Context, status int, label string, err error) {
	s.logger.WithContext(c.Request.Context()).Warn(label,
		logging.Err(err),
		logging.F("path", c.Request.URL.Path),
		logging.F("status", status))
	c.AbortWithStatusJSON(status, errorBody{Error: label, Message: err.Error()})
}

func (s *Server) handleMeetings(c *gin.Context) {
	raw, err := s.deps.Reports.GetMeetingsRaw(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to fetch meetings", err)
		return
	}
	c.Data(http.StatusOK, jsonContentType, raw)
}

func (s *Server) handleTags(c *gin.Context) {
	raw, err := s.deps.Reports.GetTagsRaw(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to fetch tags", err)
		return
	}
	c.Data(http.StatusOK, jsonContentType, raw)
}

func (s *Server) handleMeetingDetail(c *gin.Context) {
	raw, err := s.deps.Reports.GetMeetingDetailRaw(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to fetch meeting detail", err)
		return
	}
	c.Data(http.StatusOK, jsonContentType, raw)
}

func (s *Server) handleMeetingScript(c *gin.Context) {
	raw, err := s.deps.Scripts.GetMeetingScriptRaw(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to fetch meeting script", err)
		return
	}
	c.Data(http.StatusOK, jsonContentType, raw)
}

// handleMeetingExport renders a meeting download. format is "text"
// (default, includes the transcript when it can be fetched) or "markdown".
func (s *Server) handleMeetingExport(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	format := strings.ToLower(c.DefaultQuery("format", "text"))
	if format != "text" && format != "markdown" && format != "md" {
		s.fail(c, http.StatusBadRequest, "Unsupported export format",
			smerrors.ErrValidation)
		return
	}

	m, err := s.deps.Reports.GetMeetingDetail(ctx, id)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to fetch meeting detail", err)
		return
	}

	var body, ext, contentType string
	if format == "text" {
		t, err := s.deps.Scripts.GetMeetingScript(ctx, id)
		if err != nil {
			s.logger.WithContext(ctx).Warn("Exporting without transcript",
				logging.Err(err),
				logging.F("script_id", id))
			t = nil
		}
		body, ext, contentType = meeting.RenderText(m, t, s.deps.Now()), "txt", "text/plain; charset=utf-8"
	} else {
		body, ext, contentType = meeting.RenderMarkdown(m), "md", "text/markdown; charset=utf-8"
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{
		"filename": meeting.ExportFileName(m, ext),
	})
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, contentType, []byte(body))
}

// chatRequest mirrors the chat service body.
type chatRequest struct {
	Question              string   `json:"question"`
	UserSelectedScriptIDs []string `json:"user_selected_script_ids"`
}

func (s *Server) handleChatQuery(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "Invalid chat query", err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.fail(c, http.StatusBadRequest, "Invalid chat query", smerrors.ErrValidation)
		return
	}

	answer, err := s.deps.Chat.SendChatQuery(c.Request.Context(), req.Question, req.UserSelectedScriptIDs)
	if err != nil {
		s.deps.Metrics.RecordChatQuery("error")
		s.fail(c, http.StatusInternalServerError, "Failed to query chat", err)
		return
	}
	s.deps.Metrics.RecordChatQuery("ok")

	c.JSON(http.StatusOK, answer)
}
