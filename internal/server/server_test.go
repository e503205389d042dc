package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"subscope/internal/config"
	"subscope/internal/database"
)

var testThresholds = map[string]config.Threshold{
	"toxicity": {High: 0.70, Medium: 0.50},
	"insult":   {High: 0.78, Medium: 0.55},
}

func newTestServer(t *testing.T, db *database.DB) *Server {
	t.Helper()
	srv, err := New(db, testThresholds)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func seedFlagged(t *testing.T, db *database.DB) {
	t.Helper()
	if _, err := db.InsertPost(database.Post{
		ID: "p1", Author: ptr("someone"), CreatedUTC: 1717200000,
		Title: ptr("Awful Thread"), Body: ptr("**bold** rant"), Score: 3, RawJSON: "{}",
	}); err != nil {
		t.Fatalf("InsertPost: %v", err)
	}
	if err := db.EnsureLabelColumns([]string{"toxicity", "insult"}); err != nil {
		t.Fatalf("EnsureLabelColumns: %v", err)
	}
	if err := db.UpsertClassification(database.Classification{
		ID: "p1", ItemType: "post", TextCleaned: "awful thread bold rant",
		IsFlagged: true, FlagReason: ptr("toxicity (0.91)"),
		Scores: map[string]float64{"toxicity": 0.91, "insult": 0.12},
	}); err != nil {
		t.Fatalf("UpsertClassification: %v", err)
	}
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	seedFlagged(t, db)
	db.InsertRunReport("classify", 10, 1, 0)

	srv := newTestServer(t, db)

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Overview") {
		t.Error("expected 'Overview' in response body")
	}
	if !strings.Contains(body, "toxicity (0.91)") {
		t.Error("expected recent flag reason in response body")
	}
}

func TestIndexUnknownPathIs404(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db)

	rec := get(t, srv, "/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestFlaggedRoute(t *testing.T) {
	db := openTestDB(t)
	seedFlagged(t, db)

	srv := newTestServer(t, db)

	rec := get(t, srv, "/flagged")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "/item/p1") {
		t.Error("expected item link in flagged list")
	}
	if !strings.Contains(body, "toxicity (0.91)") {
		t.Error("expected flag reason in flagged list")
	}
}

func TestItemRoutePost(t *testing.T) {
	db := openTestDB(t)
	seedFlagged(t, db)

	srv := newTestServer(t, db)

	rec := get(t, srv, "/item/p1")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Awful Thread") {
		t.Error("expected post title in item page")
	}
	// Markdown body rendered, not escaped.
	if !strings.Contains(body, "<strong>bold</strong>") {
		t.Error("expected rendered markdown body")
	}
	if !strings.Contains(body, "0.91") {
		t.Error("expected score table in item page")
	}
	// toxicity 0.91 is past its high cutoff; insult 0.12 is below both.
	if !strings.Contains(body, `class="sev-high"`) {
		t.Error("expected high-severity bucket on toxicity score row")
	}
	if strings.Contains(body, `class="sev-medium"`) {
		t.Error("did not expect a medium-severity row")
	}
}

func TestItemRouteComment(t *testing.T) {
	db := openTestDB(t)
	db.InsertComment(database.Comment{
		ID: "c1", ParentID: ptr("p1"), LinkID: ptr("p1"), Author: ptr("replier"),
		CreatedUTC: 1717201000, Body: ptr("a reply"), RawJSON: "{}",
	})
	db.EnsureLabelColumns([]string{"toxicity"})
	db.UpsertClassification(database.Classification{
		ID: "c1", ItemType: "comment", TextCleaned: "a reply",
		Scores: map[string]float64{"toxicity": 0.05},
	})

	srv := newTestServer(t, db)

	rec := get(t, srv, "/item/c1")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "replier") {
		t.Error("expected comment author in item page")
	}
}

func TestItemRouteMissing(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db)

	rec := get(t, srv, "/item/nosuch")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestTopicsRoute(t *testing.T) {
	db := openTestDB(t)
	db.UpsertTopicMentions([]database.TopicMention{
		{Day: "2025-06-01", Category: "race_ethnicity", Term: "asian", Count: 2, TotalItems: 40, RatePer1K: 50},
		{Day: "2025-06-01", Category: "gender_sexuality", Term: "sexism", Count: 1, TotalItems: 40, RatePer1K: 25},
	})

	srv := newTestServer(t, db)

	rec := get(t, srv, "/topics")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "sexism") || !strings.Contains(body, "asian") {
		t.Error("expected both terms in unfiltered topics page")
	}

	rec = get(t, srv, "/topics?category=race_ethnicity")
	body = rec.Body.String()
	if !strings.Contains(body, "asian") {
		t.Error("expected asian in filtered page")
	}
	if strings.Contains(body, "sexism") {
		t.Error("did not expect sexism in race_ethnicity filter")
	}
}

func TestStaticRoute(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db)

	rec := get(t, srv, "/static/style.css")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "font-sans") {
		t.Error("expected CSS content")
	}
}
