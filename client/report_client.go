package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/otherjamesbrown/summit/pkg/meeting"
)

const reportSourcesPath = "report-sources"

// ReportSourceClient reads meeting summaries, minutes and tags.
type ReportSourceClient struct {
	baseClient
}

// NewReportSourceClient creates a client for the report-source service rooted
// at baseURL (the service's /api prefix).
func NewReportSourceClient(baseURL string, opts *Options) *ReportSourceClient {
	return &ReportSourceClient{baseClient: newBaseClient(ServiceReportSource, baseURL, opts)}
}

// GetMeetings returns every meeting known to the report-source service.
func (c *ReportSourceClient) GetMeetings(ctx context.Context) ([]meeting.Meeting, error) {
	var meetings []meeting.Meeting
	if err := c.get(ctx, "get_meetings", c.endpoint(reportSourcesPath), &meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}

// GetMeetingDetail returns one meeting with its minutes normalized.
func (c *ReportSourceClient) GetMeetingDetail(ctx context.Context, id string) (*meeting.Meeting, error) {
	var m meeting.Meeting
	if err := c.get(ctx, "get_meeting", c.endpoint(reportSourcesPath, id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetTags returns up to meeting.MaxTags tags. Placeholder tags are not
// filtered here; use meeting.UsableTags.
func (c *ReportSourceClient) GetTags(ctx context.Context) ([]string, error) {
	var tags []string
	if err := c.get(ctx, "get_tags", c.tagsURL(), &tags); err != nil {
		return nil, err
	}
	if len(tags) > meeting.MaxTags {
		tags = tags[:meeting.MaxTags]
	}
	return tags, nil
}

// GetMeetingsRaw returns the meeting list body as sent by the service.
func (c *ReportSourceClient) GetMeetingsRaw(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "get_meetings", c.endpoint(reportSourcesPath), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// GetMeetingDetailRaw returns the meeting body re-encoded after minutes
// normalization. Fields summit does not model are preserved.
func (c *ReportSourceClient) GetMeetingDetailRaw(ctx context.Context, id string) (json.RawMessage, error) {
	m, err := c.GetMeetingDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding meeting %s: %w", id, err)
	}
	return out, nil
}

// GetTagsRaw returns the tag list body as sent by the service.
func (c *ReportSourceClient) GetTagsRaw(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "get_tags", c.tagsURL(), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *ReportSourceClient) tagsURL() string {
	return c.endpoint(reportSourcesPath, "tags") + "?limit=" + strconv.Itoa(meeting.MaxTags)
}
