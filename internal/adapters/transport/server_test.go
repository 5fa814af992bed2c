package transport

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/convolog/convolog/internal/query"
)

func TestParseConversationsRequestDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/conversations", nil)

	req, err := parseConversationsRequest(r, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Limit != query.DefaultLimit {
		t.Errorf("expected default limit %d, got %d", query.DefaultLimit, req.Limit)
	}
	if req.SortOrder != query.SortDescending {
		t.Errorf("expected default sort order desc, got %s", req.SortOrder)
	}
	if !req.ShowRelatedThreads {
		t.Error("expected show_related_threads to default true")
	}
	if req.StartDate != nil || req.EndDate != nil {
		t.Error("expected nil date bounds when unspecified")
	}
}

func TestParseConversationsRequestParsesAllParams(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/conversations?project=a&project=b&start_date=2026-01-01&end_date=2026-01-31&keyword=deploy&show_related_threads=false&sort_order=asc&offset=5&limit=20", nil)

	req, err := parseConversationsRequest(r, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Projects) != 2 || req.Projects[0] != "a" || req.Projects[1] != "b" {
		t.Errorf("expected projects [a b], got %v", req.Projects)
	}
	if req.StartDate == nil || req.StartDate.Format("2006-01-02") != "2026-01-01" {
		t.Errorf("unexpected start date: %v", req.StartDate)
	}
	if req.EndDate == nil || req.EndDate.Format("2006-01-02") != "2026-01-31" {
		t.Errorf("unexpected end date: %v", req.EndDate)
	}
	if req.Keyword != "deploy" {
		t.Errorf("expected keyword deploy, got %q", req.Keyword)
	}
	if req.ShowRelatedThreads {
		t.Error("expected show_related_threads false")
	}
	if req.SortOrder != query.SortAscending {
		t.Errorf("expected sort order asc, got %s", req.SortOrder)
	}
	if req.Offset != 5 || req.Limit != 20 {
		t.Errorf("expected offset=5 limit=20, got offset=%d limit=%d", req.Offset, req.Limit)
	}
}

func TestParseConversationsRequestRejectsBadLimit(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/conversations?limit=0", nil)

	if _, err := parseConversationsRequest(r, time.UTC); err == nil {
		t.Fatal("expected validation error for limit=0")
	}
}

func TestParseConversationsRequestRejectsBadDate(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/conversations?start_date=not-a-date", nil)

	if _, err := parseConversationsRequest(r, time.UTC); err == nil {
		t.Fatal("expected validation error for malformed start_date")
	}
}
