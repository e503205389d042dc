package topics

import (
	"path/filepath"
	"testing"

	"subscope/internal/config"
	"subscope/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func testTopics() config.Topics {
	return config.Topics{
		Terms: map[string]string{
			"housing": `\bhousing\b`,
		},
		Categories: map[string]map[string]string{
			"gender_sexuality": {
				"sexism": `\bsex(ism|ist)\b`,
			},
			"race_ethnicity": {
				"asian": `\basian(?!\s*board)\b`,
				"white": `\bwhite\b`,
			},
		},
	}
}

func findMention(rows []database.TopicMention, category, term string) *database.TopicMention {
	for i := range rows {
		if rows[i].Category == category && rows[i].Term == term {
			return &rows[i]
		}
	}
	return nil
}

func TestRunCountsDeobfuscatedMentions(t *testing.T) {
	db := openTestDB(t)
	// 2024-06-01 UTC
	db.InsertPost(database.Post{ID: "p1", CreatedUTC: 1717200000, Title: ptr("campus climate"),
		Body: ptr("the $3xism here is rampant, especially toward asian and white students"), RawJSON: "{}"})
	db.InsertPost(database.Post{ID: "p2", CreatedUTC: 1717201000, Title: ptr("nothing to see"), RawJSON: "{}"})

	a, err := New(db, testTopics())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r, err := a.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.Items != 2 || r.Days != 1 {
		t.Fatalf("result = %+v", r)
	}

	rows, err := db.GetCategoryTopicMentions("")
	if err != nil {
		t.Fatalf("GetCategoryTopicMentions: %v", err)
	}
	for _, want := range []struct{ category, term string }{
		{"gender_sexuality", "sexism"},
		{"race_ethnicity", "asian"},
		{"race_ethnicity", "white"},
	} {
		m := findMention(rows, want.category, want.term)
		if m == nil {
			t.Errorf("missing mention %s/%s", want.category, want.term)
			continue
		}
		if m.Day != "2024-06-01" || m.Count != 1 || m.TotalItems != 2 {
			t.Errorf("%s/%s = %+v", want.category, want.term, m)
		}
		if m.RatePer1K != 500 {
			t.Errorf("%s/%s rate = %v, want 500", want.category, want.term, m.RatePer1K)
		}
	}
}

func TestRunBinaryPerItemCounting(t *testing.T) {
	db := openTestDB(t)
	db.InsertPost(database.Post{ID: "p1", CreatedUTC: 1717200000,
		Body: ptr("housing housing housing, all about housing"), RawJSON: "{}"})
	db.InsertComment(database.Comment{ID: "c1", CreatedUTC: 1717201000,
		Body: ptr("yes the housing situation is rough"), RawJSON: "{}"})

	a, err := New(db, testTopics())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows, err := db.GetTopicMentions()
	if err != nil {
		t.Fatalf("GetTopicMentions: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("legacy rows = %+v", rows)
	}
	// Two items mention the term, however many times each repeats it.
	if rows[0].Count != 2 || rows[0].TotalItems != 2 {
		t.Errorf("housing = %+v", rows[0])
	}
	if rows[0].RatePer1K != 1000 {
		t.Errorf("rate = %v", rows[0].RatePer1K)
	}
}

func TestRunLookaheadExcludesCompound(t *testing.T) {
	db := openTestDB(t)
	db.InsertPost(database.Post{ID: "p1", CreatedUTC: 1717200000,
		Body: ptr("I posted this on the asian board yesterday"), RawJSON: "{}"})
	db.InsertPost(database.Post{ID: "p2", CreatedUTC: 1717201000,
		Body: ptr("as an asian student I disagree"), RawJSON: "{}"})

	a, err := New(db, testTopics())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows, err := db.GetCategoryTopicMentions("race_ethnicity")
	if err != nil {
		t.Fatalf("GetCategoryTopicMentions: %v", err)
	}
	m := findMention(rows, "race_ethnicity", "asian")
	if m == nil {
		t.Fatal("expected asian mention")
	}
	if m.Count != 1 {
		t.Errorf("count = %d, want 1 (compound form excluded)", m.Count)
	}
}

func TestRunSkipsTombstones(t *testing.T) {
	db := openTestDB(t)
	db.InsertComment(database.Comment{ID: "c1", CreatedUTC: 1717200000, Body: ptr("[deleted]"), RawJSON: "{}"})
	db.InsertComment(database.Comment{ID: "c2", CreatedUTC: 1717201000, Body: ptr("housing is fine"), RawJSON: "{}"})

	a, err := New(db, testTopics())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows, err := db.GetTopicMentions()
	if err != nil {
		t.Fatalf("GetTopicMentions: %v", err)
	}
	if len(rows) != 1 || rows[0].Count != 1 {
		t.Fatalf("rows = %+v", rows)
	}
	// Tombstones stay out of the denominator; the one live item is the whole
	// population, so the rate is undiluted.
	if rows[0].TotalItems != 1 {
		t.Errorf("total = %d, want 1", rows[0].TotalItems)
	}
	if rows[0].RatePer1K != 1000 {
		t.Errorf("rate = %v, want 1000", rows[0].RatePer1K)
	}
}

func TestRunRemovedBodyLeavesTitleCountable(t *testing.T) {
	db := openTestDB(t)
	db.InsertPost(database.Post{ID: "p1", CreatedUTC: 1717200000,
		Title: ptr("housing question"), Body: ptr("[removed]"), RawJSON: "{}"})

	a, err := New(db, testTopics())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows, err := db.GetTopicMentions()
	if err != nil {
		t.Fatalf("GetTopicMentions: %v", err)
	}
	if len(rows) != 1 || rows[0].Count != 1 {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestRunRebuildIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	db.InsertPost(database.Post{ID: "p1", CreatedUTC: 1717200000, Body: ptr("housing talk"), RawJSON: "{}"})

	a, err := New(db, testTopics())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.Run(); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := a.Run(); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	rows, err := db.GetTopicMentions()
	if err != nil {
		t.Fatalf("GetTopicMentions: %v", err)
	}
	if len(rows) != 1 || rows[0].Count != 1 {
		t.Errorf("rebuild doubled counts: %+v", rows)
	}
}

func TestRunSplitsDaysOnUTC(t *testing.T) {
	db := openTestDB(t)
	// One second before and at 2024-06-01 00:00:00 UTC.
	db.InsertPost(database.Post{ID: "p1", CreatedUTC: 1717199999, Body: ptr("housing"), RawJSON: "{}"})
	db.InsertPost(database.Post{ID: "p2", CreatedUTC: 1717200000, Body: ptr("housing"), RawJSON: "{}"})

	a, err := New(db, testTopics())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r, err := a.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.Days != 2 {
		t.Errorf("days = %d, want 2", r.Days)
	}

	rows, err := db.GetTopicMentions()
	if err != nil {
		t.Fatalf("GetTopicMentions: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Day != "2024-05-31" || rows[1].Day != "2024-06-01" {
		t.Errorf("days = %s, %s", rows[0].Day, rows[1].Day)
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	db := openTestDB(t)
	_, err := New(db, config.Topics{Terms: map[string]string{"bad": `\b(unclosed`}})
	if err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}
