package ingest

import (
	"context"
	"log"
	"strings"
	"time"

	"subscope/internal/archive"
	"subscope/internal/database"
	"subscope/internal/reddit"
)

// Result holds the results of an ingest run.
type Result struct {
	PostsFound    int
	PostsNew      int
	PostsDup      int
	CommentsFound int
	CommentsNew   int
	CommentsDup   int
	Errors        int
}

// Source is the slice of the listing client the ingester needs.
type Source interface {
	Subreddit() string
	NewPosts(ctx context.Context, maxPosts int, since int64) ([]reddit.Post, error)
	Comments(ctx context.Context, postID string) ([]reddit.Comment, error)
}

// Ingester pulls new posts and their comment trees into the mirror and the
// raw archive.
type Ingester struct {
	db        *database.DB
	store     *archive.Store
	src       Source
	daysBack  int
	maxPosts  int
	postsOnly bool
}

// New creates an ingester. store may be nil to skip raw archiving.
func New(db *database.DB, store *archive.Store, src Source, daysBack, maxPosts int, postsOnly bool) *Ingester {
	return &Ingester{
		db:        db,
		store:     store,
		src:       src,
		daysBack:  daysBack,
		maxPosts:  maxPosts,
		postsOnly: postsOnly,
	}
}

// Run pulls the listing and stores what is new. Item-level failures are
// counted and logged rather than aborting the pull; an interrupted run can
// simply be re-run since inserts ignore duplicates.
func (i *Ingester) Run(ctx context.Context) *Result {
	r := &Result{}

	var since int64
	if i.daysBack > 0 {
		since = time.Now().AddDate(0, 0, -i.daysBack).Unix()
	}

	log.Printf("Pulling r/%s (max %d posts, %d days back)...", i.src.Subreddit(), i.maxPosts, i.daysBack)
	posts, err := i.src.NewPosts(ctx, i.maxPosts, since)
	if err != nil {
		// Keep whatever made it back before the failure.
		log.Printf("Listing pull ended early: %v", err)
		r.Errors++
	}
	r.PostsFound = len(posts)

	for _, p := range posts {
		inserted, err := i.db.InsertPost(database.Post{
			ID:          p.ID,
			Author:      optional(p.Author),
			CreatedUTC:  p.CreatedUTC,
			Title:       optional(p.Title),
			Body:        optional(p.SelfText),
			Score:       p.Score,
			NumComments: p.NumComments,
			Permalink:   optional(p.Permalink),
			Subreddit:   optional(p.Subreddit),
			RawJSON:     p.RawJSON,
		})
		if err != nil {
			log.Printf("Error storing post %s: %v", p.ID, err)
			r.Errors++
			continue
		}
		if inserted {
			r.PostsNew++
		} else {
			r.PostsDup++
		}
		i.archive("post", p.ID, p.Author, p.CreatedUTC, p.RawJSON)

		if i.postsOnly {
			continue
		}
		i.pullComments(ctx, p, r)
	}

	log.Printf("Ingest complete: %d posts (%d new, %d dup), %d comments (%d new, %d dup), %d errors",
		r.PostsFound, r.PostsNew, r.PostsDup, r.CommentsFound, r.CommentsNew, r.CommentsDup, r.Errors)

	if err := i.db.InsertRunReport("ingest", r.PostsFound+r.CommentsFound, 0, r.Errors); err != nil {
		log.Printf("Error recording run report: %v", err)
	}
	return r
}

func (i *Ingester) pullComments(ctx context.Context, p reddit.Post, r *Result) {
	comments, err := i.src.Comments(ctx, p.ID)
	if err != nil {
		log.Printf("Error pulling comments for %s: %v", p.ID, err)
		r.Errors++
		return
	}
	r.CommentsFound += len(comments)

	for _, c := range comments {
		inserted, err := i.db.InsertComment(database.Comment{
			ID:         c.ID,
			ParentID:   optional(StripTypePrefix(c.ParentID)),
			LinkID:     optional(StripTypePrefix(c.LinkID)),
			Author:     optional(c.Author),
			CreatedUTC: c.CreatedUTC,
			Body:       optional(c.Body),
			Score:      c.Score,
			Subreddit:  optional(c.Subreddit),
			RawJSON:    c.RawJSON,
		})
		if err != nil {
			log.Printf("Error storing comment %s: %v", c.ID, err)
			r.Errors++
			continue
		}
		if inserted {
			r.CommentsNew++
		} else {
			r.CommentsDup++
		}
		i.archive("comment", c.ID, c.Author, c.CreatedUTC, c.RawJSON)
	}
}

func (i *Ingester) archive(itemType, id, author string, createdUTC int64, raw string) {
	if i.store == nil {
		return
	}
	day := database.DayFromUnix(createdUTC)
	if err := i.store.Put(itemType, id, author, day, []byte(raw)); err != nil {
		log.Printf("Error archiving %s %s: %v", itemType, id, err)
	}
}

// StripTypePrefix removes the API's thing-type prefix ("t1_", "t3_") from a
// fullname, leaving the bare id.
func StripTypePrefix(fullname string) string {
	if len(fullname) > 3 && fullname[0] == 't' && fullname[2] == '_' {
		return fullname[3:]
	}
	return fullname
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
