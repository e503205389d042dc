package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"subscope/internal/archive"
	"subscope/internal/database"
	"subscope/internal/reddit"
)

type fakeSource struct {
	posts    []reddit.Post
	comments map[string][]reddit.Comment
}

func (f *fakeSource) Subreddit() string { return "nyu" }

func (f *fakeSource) NewPosts(ctx context.Context, maxPosts int, since int64) ([]reddit.Post, error) {
	posts := f.posts
	if maxPosts > 0 && len(posts) > maxPosts {
		posts = posts[:maxPosts]
	}
	return posts, nil
}

func (f *fakeSource) Comments(ctx context.Context, postID string) ([]reddit.Comment, error) {
	return f.comments[postID], nil
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSource() *fakeSource {
	return &fakeSource{
		posts: []reddit.Post{
			{ID: "p1", Author: "alice", CreatedUTC: 1717200000, Title: "hello", SelfText: "first post", Subreddit: "nyu", RawJSON: `{"id":"p1"}`},
			{ID: "p2", Author: "bob", CreatedUTC: 1717210000, Title: "second", Subreddit: "nyu", RawJSON: `{"id":"p2"}`},
		},
		comments: map[string][]reddit.Comment{
			"p1": {
				{ID: "c1", ParentID: "t3_p1", LinkID: "t3_p1", Author: "carol", CreatedUTC: 1717201000, Body: "top reply", Subreddit: "nyu", RawJSON: `{"id":"c1"}`},
				{ID: "c2", ParentID: "t1_c1", LinkID: "t3_p1", Author: "dave", CreatedUTC: 1717202000, Body: "nested", Subreddit: "nyu", RawJSON: `{"id":"c2"}`},
			},
		},
	}
}

func TestRunStoresPostsAndComments(t *testing.T) {
	db := openTestDB(t)
	src := testSource()

	r := New(db, nil, src, 0, 0, false).Run(context.Background())
	if r.PostsNew != 2 || r.CommentsNew != 2 || r.Errors != 0 {
		t.Fatalf("result = %+v", r)
	}

	p, err := db.GetPost("p1")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if p == nil || *p.Title != "hello" {
		t.Fatalf("post p1 = %+v", p)
	}

	c, err := db.GetComment("c2")
	if err != nil {
		t.Fatalf("GetComment: %v", err)
	}
	if c == nil {
		t.Fatal("comment c2 missing")
	}
	// Type prefixes are stripped before storage.
	if *c.ParentID != "c1" || *c.LinkID != "p1" {
		t.Errorf("parent=%q link=%q", *c.ParentID, *c.LinkID)
	}
}

func TestRunCountsDuplicates(t *testing.T) {
	db := openTestDB(t)
	src := testSource()
	ing := New(db, nil, src, 0, 0, false)

	ing.Run(context.Background())
	r := ing.Run(context.Background())
	if r.PostsNew != 0 || r.PostsDup != 2 {
		t.Errorf("second run posts = %+v", r)
	}
	if r.CommentsNew != 0 || r.CommentsDup != 2 {
		t.Errorf("second run comments = %+v", r)
	}
}

func TestRunPostsOnly(t *testing.T) {
	db := openTestDB(t)
	src := testSource()

	r := New(db, nil, src, 0, 0, true).Run(context.Background())
	if r.PostsNew != 2 {
		t.Errorf("posts = %+v", r)
	}
	if r.CommentsFound != 0 {
		t.Errorf("expected no comments in posts-only mode, found %d", r.CommentsFound)
	}
}

func TestRunMaxPosts(t *testing.T) {
	db := openTestDB(t)
	src := testSource()

	r := New(db, nil, src, 0, 1, false).Run(context.Background())
	if r.PostsFound != 1 || r.PostsNew != 1 {
		t.Errorf("result = %+v", r)
	}
}

func TestRunArchivesRawJSON(t *testing.T) {
	db := openTestDB(t)
	store, err := archive.Open(t.TempDir())
	if err != nil {
		t.Fatalf("archive.Open: %v", err)
	}
	defer store.Close()

	New(db, store, testSource(), 0, 0, false).Run(context.Background())

	raw, err := store.Get("post", "p1")
	if err != nil {
		t.Fatalf("archive Get: %v", err)
	}
	if string(raw) != `{"id":"p1"}` {
		t.Errorf("archived post = %s", raw)
	}
	raw, err = store.Get("comment", "c1")
	if err != nil {
		t.Fatalf("archive Get comment: %v", err)
	}
	if string(raw) != `{"id":"c1"}` {
		t.Errorf("archived comment = %s", raw)
	}

	byAuthor, err := store.ByAuthor("carol")
	if err != nil {
		t.Fatalf("ByAuthor: %v", err)
	}
	if len(byAuthor) != 1 || byAuthor[0].ID != "c1" {
		t.Errorf("ByAuthor = %+v", byAuthor)
	}
}

func TestRunRecordsReport(t *testing.T) {
	db := openTestDB(t)

	New(db, nil, testSource(), 0, 0, false).Run(context.Background())

	report, err := db.LastRunReport("ingest")
	if err != nil {
		t.Fatalf("LastRunReport: %v", err)
	}
	if report == nil {
		t.Fatal("expected ingest run report")
	}
	if report.Processed != 4 {
		t.Errorf("processed = %d, want 4", report.Processed)
	}
}

func TestStripTypePrefix(t *testing.T) {
	cases := map[string]string{
		"t1_abc":  "abc",
		"t3_xyz":  "xyz",
		"abc":     "abc",
		"":        "",
		"t1_":     "t1_", // nothing after the prefix
		"toolong": "toolong",
	}
	for in, want := range cases {
		if got := StripTypePrefix(in); got != want {
			t.Errorf("StripTypePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}
