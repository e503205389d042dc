package classify

import (
	"subscope/internal/database"
	"subscope/internal/textclean"
)

// parentContext resolves the text a comment was replying to. The stored
// parent id is a bare id that may name either a comment or a post, so the
// comment table is probed first, then the post table. A parent that is
// missing or tombstoned falls back to the thread root via link_id, which
// keeps at least the topic of the thread in play. Returns "" when nothing
// useful is found.
func parentContext(db *database.DB, c database.Comment) (string, error) {
	if c.ParentID != nil {
		parent, err := db.GetComment(*c.ParentID)
		if err != nil {
			return "", err
		}
		if parent != nil {
			if parent.Body != nil {
				if text, flags := textclean.Clean(*parent.Body); flags.Live() {
					return text, nil
				}
			}
			// Tombstoned parent: fall through to the thread root.
		} else {
			post, err := db.GetPost(*c.ParentID)
			if err != nil {
				return "", err
			}
			if post != nil {
				if text := postText(post); text != "" {
					return text, nil
				}
			}
		}
	}

	if c.LinkID != nil && (c.ParentID == nil || *c.LinkID != *c.ParentID) {
		root, err := db.GetPost(*c.LinkID)
		if err != nil {
			return "", err
		}
		if root != nil {
			return postText(root), nil
		}
	}
	return "", nil
}

// postText is the cleaned title plus body of a post, used both for the
// post's own classification input and as parent context for its replies.
func postText(p *database.Post) string {
	raw := ""
	if p.Title != nil {
		raw = *p.Title
	}
	if p.Body != nil {
		if raw != "" {
			raw += "\n\n"
		}
		raw += *p.Body
	}
	text, flags := textclean.Clean(raw)
	if !flags.Live() {
		return ""
	}
	return text
}

// withContext appends the parent context to a comment's cleaned body. The
// child text goes first so the model's input truncation sacrifices context
// before it sacrifices the text being judged.
func withContext(body, context string) string {
	if context == "" {
		return body
	}
	return body + "\n\nPARENT: " + context
}
