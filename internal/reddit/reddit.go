package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const maxRetries = 3

// Post is a submission as returned by the listing API.
type Post struct {
	ID          string
	Author      string
	CreatedUTC  int64
	Title       string
	SelfText    string
	Score       int
	NumComments int
	Permalink   string
	Subreddit   string
	RawJSON     string
}

// Comment is a single comment from a thread. ParentID and LinkID carry the
// API's type prefixes (t1_/t3_) untouched; callers strip them as needed.
type Comment struct {
	ID         string
	ParentID   string
	LinkID     string
	Author     string
	CreatedUTC int64
	Body       string
	Score      int
	Subreddit  string
	RawJSON    string
}

// Client reads a subreddit through the public JSON listing endpoints. It
// paces itself with a fixed pause between requests and backs off when the
// API pushes back with 429s.
type Client struct {
	baseURL   string
	subreddit string
	userAgent string
	pause     time.Duration
	client    *http.Client
}

// NewClient creates a listing client for one subreddit.
func NewClient(baseURL, subreddit, userAgent string, pauseMS int) *Client {
	if pauseMS <= 0 {
		pauseMS = 300
	}
	return &Client{
		baseURL:   baseURL,
		subreddit: subreddit,
		userAgent: userAgent,
		pause:     time.Duration(pauseMS) * time.Millisecond,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Subreddit returns the subreddit this client reads.
func (c *Client) Subreddit() string {
	return c.subreddit
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    *string `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type postData struct {
	ID          string  `json:"id"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
}

type commentData struct {
	ID         string          `json:"id"`
	ParentID   string          `json:"parent_id"`
	LinkID     string          `json:"link_id"`
	Author     string          `json:"author"`
	CreatedUTC float64         `json:"created_utc"`
	Body       string          `json:"body"`
	Score      int             `json:"score"`
	Subreddit  string          `json:"subreddit"`
	Replies    json.RawMessage `json:"replies"`
}

// NewPosts walks /new newest-first and returns posts created at or after
// the since cutoff (epoch seconds; 0 means no cutoff), up to maxPosts.
func (c *Client) NewPosts(ctx context.Context, maxPosts int, since int64) ([]Post, error) {
	var posts []Post
	after := ""

	for {
		url := fmt.Sprintf("%s/r/%s/new.json?limit=100&raw_json=1", c.baseURL, c.subreddit)
		if after != "" {
			url += "&after=" + after
		}

		body, err := c.get(ctx, url)
		if err != nil {
			return posts, err
		}

		var page listing
		if err := json.Unmarshal(body, &page); err != nil {
			return posts, fmt.Errorf("decoding listing page: %w", err)
		}

		for _, child := range page.Data.Children {
			if child.Kind != "t3" {
				continue
			}
			var pd postData
			if err := json.Unmarshal(child.Data, &pd); err != nil {
				return posts, fmt.Errorf("decoding post: %w", err)
			}
			created := int64(pd.CreatedUTC)
			if since > 0 && created < since {
				// Listing is newest-first; everything past here is older.
				return posts, nil
			}
			posts = append(posts, Post{
				ID:          pd.ID,
				Author:      pd.Author,
				CreatedUTC:  created,
				Title:       pd.Title,
				SelfText:    pd.SelfText,
				Score:       pd.Score,
				NumComments: pd.NumComments,
				Permalink:   pd.Permalink,
				Subreddit:   pd.Subreddit,
				RawJSON:     string(child.Data),
			})
			if maxPosts > 0 && len(posts) >= maxPosts {
				return posts, nil
			}
		}

		if page.Data.After == nil || *page.Data.After == "" || len(page.Data.Children) == 0 {
			return posts, nil
		}
		after = *page.Data.After

		if err := c.sleep(ctx, c.pause); err != nil {
			return posts, err
		}
	}
}

// Comments returns the full comment tree of a post, flattened. "more"
// stubs are skipped; the listing API does not expand them.
func (c *Client) Comments(ctx context.Context, postID string) ([]Comment, error) {
	url := fmt.Sprintf("%s/comments/%s.json?limit=500&raw_json=1", c.baseURL, postID)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	// The endpoint returns two listings: the post itself, then its comments.
	var pages []listing
	if err := json.Unmarshal(body, &pages); err != nil {
		return nil, fmt.Errorf("decoding comment thread: %w", err)
	}
	if len(pages) < 2 {
		return nil, nil
	}

	var comments []Comment
	if err := flattenComments(pages[1].Data.Children, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func flattenComments(children []thing, out *[]Comment) error {
	for _, child := range children {
		if child.Kind != "t1" {
			continue
		}
		var cd commentData
		if err := json.Unmarshal(child.Data, &cd); err != nil {
			return fmt.Errorf("decoding comment: %w", err)
		}
		*out = append(*out, Comment{
			ID:         cd.ID,
			ParentID:   cd.ParentID,
			LinkID:     cd.LinkID,
			Author:     cd.Author,
			CreatedUTC: int64(cd.CreatedUTC),
			Body:       cd.Body,
			Score:      cd.Score,
			Subreddit:  cd.Subreddit,
			RawJSON:    string(child.Data),
		})

		// Replies is "" for leaves and a nested listing otherwise.
		if len(cd.Replies) > 0 && cd.Replies[0] == '{' {
			var replies listing
			if err := json.Unmarshal(cd.Replies, &replies); err != nil {
				return fmt.Errorf("decoding replies: %w", err)
			}
			if err := flattenComments(replies.Data.Children, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// get fetches a URL with the client's user agent, pausing before the request
// and retrying with doubled backoff when the API rate-limits or errors out.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	backoff := c.pause
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("listing request error: %w", err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if attempt >= maxRetries {
				return nil, fmt.Errorf("listing API returned %d after %d attempts", resp.StatusCode, attempt+1)
			}
			log.Printf("listing API returned %d, backing off %s", resp.StatusCode, backoff)
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("listing API returned %d for %s", resp.StatusCode, url)
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading response: %w", readErr)
		}
		return body, nil
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
