package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	smerrors "github.com/otherjamesbrown/summit/pkg/errors"
	"github.com/otherjamesbrown/summit/pkg/observability"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestReportSourceClient_GetMeetings(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/report-sources", r.URL.Path)
		w.Write([]byte(`[{"script_id":"a","title":"Budget","speakers":"Kim, Lee"},{"script_id":"b","title":"Hiring"}]`))
	})

	c := NewReportSourceClient(srv.URL+"/api", nil)
	meetings, err := c.GetMeetings(context.Background())
	require.NoError(t, err)
	require.Len(t, meetings, 2)
	assert.Equal(t, "Budget", meetings[0].Title)
	assert.Equal(t, 2, meetings[0].ParticipantCount())
}

func TestReportSourceClient_GetMeetingDetail_MinutesFallback(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/report-sources/m-42", r.URL.Path)
		w.Write([]byte(`{"script_id":"m-42","title":"Retro","minutes":"- shipped v2"}`))
	})

	c := NewReportSourceClient(srv.URL+"/api", nil)
	m, err := c.GetMeetingDetail(context.Background(), "m-42")
	require.NoError(t, err)
	assert.Equal(t, "- shipped v2", m.MeetingMinutes)

	raw, err := c.GetMeetingDetailRaw(context.Background(), "m-42")
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "- shipped v2", body["meeting_minutes"])
	assert.Equal(t, "- shipped v2", body["minutes"])
}

func TestReportSourceClient_GetTags(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/report-sources/tags", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		tags := make([]string, 25)
		for i := range tags {
			tags[i] = "tag"
		}
		json.NewEncoder(w).Encode(tags)
	})

	c := NewReportSourceClient(srv.URL+"/api/", nil)
	tags, err := c.GetTags(context.Background())
	require.NoError(t, err)
	assert.Len(t, tags, 20)
}

func TestClient_StatusErrorUsesBodyMessage(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"meeting does not exist"}`))
	})

	c := NewReportSourceClient(srv.URL, nil)
	_, err := c.GetMeetingDetail(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, "meeting does not exist", err.Error())
	assert.True(t, smerrors.IsUpstream(err))
	assert.Equal(t, smerrors.CodeHTTPStatus, smerrors.CodeOf(err))

	var ue *smerrors.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusNotFound, ue.StatusCode)
	assert.Equal(t, ServiceReportSource, ue.Service)
}

func TestClient_StatusErrorWithoutMessage(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	})

	c := NewReportSourceClient(srv.URL, nil)
	_, err := c.GetMeetings(context.Background())
	require.Error(t, err)
	assert.Equal(t, "HTTP error! status: 502", err.Error())
}

func TestClient_MalformedBody(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"script_id":`))
	})

	c := NewReportSourceClient(srv.URL, nil)
	_, err := c.GetMeetings(context.Background())
	require.Error(t, err)
	assert.Equal(t, smerrors.CodeDecode, smerrors.CodeOf(err))
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewChatClient(base, nil)
	_, err := c.SendChatQuery(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.Equal(t, smerrors.CodeTransport, smerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "could not reach chat")
}

func TestClient_Timeout(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	c := NewReportSourceClient(srv.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetMeetings(ctx)
	require.Error(t, err)
	assert.Equal(t, smerrors.CodeTimeout, smerrors.CodeOf(err))
}

func TestClient_RecordsMetrics(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	c := NewReportSourceClient(srv.URL, &Options{Metrics: metrics})

	_, err := c.GetTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UpstreamRequestsTotal.WithLabelValues(ServiceReportSource, "get_tags", "ok")))
}

func TestScriptClient_GetMeetingScript(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/scripts/s-1", r.URL.Path)
		w.Write([]byte(`{"segments":[{"speaker":"A","text":"hi"},{"speaker":"B","text":"hello"}]}`))
	})

	c := NewScriptClient(srv.URL+"/api", nil)
	tr, err := c.GetMeetingScript(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", tr.ScriptID)
	assert.Equal(t, "[A] hi\n\n[B] hello", tr.FormattedScript)

	raw, err := c.GetMeetingScriptRaw(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"formatted_script":"[A] hi\n\n[B] hello"`)
}

func TestScriptClient_CreateScript(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/scripts", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Weekly sync", r.FormValue("title"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "sync.m4a", header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "audio-bytes", string(data))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"new-1","title":"Weekly sync","segments":[]}`))
	})

	c := NewScriptClient(srv.URL+"/api", nil)
	created, err := c.CreateScript(context.Background(), "Weekly sync", "sync.m4a", strings.NewReader("audio-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "new-1", created.MeetingID())
	assert.JSONEq(t, `{"id":"new-1","title":"Weekly sync","segments":[]}`, string(created.Raw))
}

func TestScriptClient_CreateScriptFailure(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := NewScriptClient(srv.URL, nil)
	_, err := c.CreateScript(context.Background(), "t", "a.mp3", strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, "HTTP error! status: 500", err.Error())
}

func TestChatClient_SendChatQuery(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/query", r.URL.Path)

		var q ChatQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		assert.Equal(t, "what was decided?", q.Question)
		assert.Equal(t, []string{"a", "b"}, q.UserSelectedScriptIDs)

		w.Write([]byte(`{
			"final_answer": "Budget approved.",
			"used_script_ids": ["a"],
			"evidence_quotes": [{"quote":"approved","script_id":"a","chunk_index":3}],
			"confidence_score": 0.82
		}`))
	})

	c := NewChatClient(srv.URL+"/api", nil)
	ans, err := c.SendChatQuery(context.Background(), "what was decided?", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "Budget approved.", ans.Answer)
	assert.Equal(t, []string{"a"}, ans.UsedScriptIDs)
	assert.Empty(t, ans.Sources)
	require.NotNil(t, ans.ConfidenceScore)
	assert.InDelta(t, 0.82, *ans.ConfidenceScore, 1e-9)
	require.Len(t, ans.EvidenceQuotes, 1)
	assert.Equal(t, "/meetings/a?chunk=3", ans.EvidenceQuotes[0].Link())
}

func TestChatClient_EmptyScopeSendsEmptyList(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"question":"hi","user_selected_script_ids":[]}`, string(body))
		w.Write([]byte(`{"answer":"hello"}`))
	})

	c := NewChatClient(srv.URL, nil)
	ans, err := c.SendChatQuery(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", ans.Answer)
}

func TestSource_String(t *testing.T) {
	s := Source{ScriptID: "x", RelevanceScore: 0.5}
	assert.Equal(t, "Meeting (unknown date) - script x - relevance 0.50", s.String())
}
