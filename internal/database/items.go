package database

import "database/sql"

// InsertPost stores a post if it is not already present. Returns true when a
// new row was written. Re-ingesting an existing id is a no-op, which keeps
// interrupted pulls resumable.
func (db *DB) InsertPost(p Post) (bool, error) {
	res, err := db.conn.Exec(
		`INSERT OR IGNORE INTO posts
		(id, author, created_utc, title, body, score, num_comments, permalink, subreddit, raw_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Author, p.CreatedUTC, p.Title, p.Body, p.Score, p.NumComments,
		p.Permalink, p.Subreddit, p.RawJSON,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// InsertComment stores a comment if it is not already present.
func (db *DB) InsertComment(c Comment) (bool, error) {
	res, err := db.conn.Exec(
		`INSERT OR IGNORE INTO comments
		(id, parent_id, link_id, author, created_utc, body, score, subreddit, raw_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ParentID, c.LinkID, c.Author, c.CreatedUTC, c.Body, c.Score,
		c.Subreddit, c.RawJSON,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetPost returns a post by id, or nil if absent.
func (db *DB) GetPost(id string) (*Post, error) {
	row := db.conn.QueryRow(
		`SELECT id, author, created_utc, title, body, score, num_comments, permalink, subreddit, raw_json, collected_at
		FROM posts WHERE id = ?`, id,
	)
	var p Post
	if err := row.Scan(&p.ID, &p.Author, &p.CreatedUTC, &p.Title, &p.Body, &p.Score,
		&p.NumComments, &p.Permalink, &p.Subreddit, &p.RawJSON, &p.CollectedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetComment returns a comment by id, or nil if absent.
func (db *DB) GetComment(id string) (*Comment, error) {
	row := db.conn.QueryRow(
		`SELECT id, parent_id, link_id, author, created_utc, body, score, subreddit, raw_json, collected_at
		FROM comments WHERE id = ?`, id,
	)
	var c Comment
	if err := row.Scan(&c.ID, &c.ParentID, &c.LinkID, &c.Author, &c.CreatedUTC, &c.Body,
		&c.Score, &c.Subreddit, &c.RawJSON, &c.CollectedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// AllPosts returns every mirrored post ordered by creation time.
func (db *DB) AllPosts() ([]Post, error) {
	rows, err := db.conn.Query(
		`SELECT id, author, created_utc, title, body, score, num_comments, permalink, subreddit, raw_json, collected_at
		FROM posts ORDER BY created_utc`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Author, &p.CreatedUTC, &p.Title, &p.Body, &p.Score,
			&p.NumComments, &p.Permalink, &p.Subreddit, &p.RawJSON, &p.CollectedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// AllComments returns every mirrored comment ordered by creation time.
func (db *DB) AllComments() ([]Comment, error) {
	rows, err := db.conn.Query(
		`SELECT id, parent_id, link_id, author, created_utc, body, score, subreddit, raw_json, collected_at
		FROM comments ORDER BY created_utc`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.ParentID, &c.LinkID, &c.Author, &c.CreatedUTC, &c.Body,
			&c.Score, &c.Subreddit, &c.RawJSON, &c.CollectedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// GetStats returns aggregate counts for the status command and dashboard.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM posts").Scan(&s.Posts); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM comments").Scan(&s.Comments); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM classifications").Scan(&s.Classified); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM classifications WHERE is_flagged = 1").Scan(&s.Flagged); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow("SELECT COUNT(DISTINCT day) FROM topic_mentions_cat_daily").Scan(&s.TopicDays); err != nil {
		return nil, err
	}
	labels, err := db.LabelColumns()
	if err != nil {
		return nil, err
	}
	s.LabelColumns = labels
	return s, nil
}
