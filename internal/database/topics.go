package database

import (
	"database/sql"
	"fmt"
)

// ClearTopicMentions truncates both aggregate tables. Rebuild mode runs this
// before recomputing so repeated runs cannot double-count.
func (db *DB) ClearTopicMentions() error {
	if _, err := db.conn.Exec("DELETE FROM topic_mentions_daily"); err != nil {
		return fmt.Errorf("clearing topic_mentions_daily: %w", err)
	}
	if _, err := db.conn.Exec("DELETE FROM topic_mentions_cat_daily"); err != nil {
		return fmt.Errorf("clearing topic_mentions_cat_daily: %w", err)
	}
	return nil
}

// UpsertTopicMentions writes aggregate rows. Rows with an empty Category go
// to the legacy flat table, the rest to the categorized table.
func (db *DB) UpsertTopicMentions(rows []TopicMention) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}

	legacy, err := tx.Prepare(
		`INSERT INTO topic_mentions_daily (day, term, count, total_items, rate_per_1k)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(day, term) DO UPDATE SET
		  count = excluded.count,
		  total_items = excluded.total_items,
		  rate_per_1k = excluded.rate_per_1k`,
	)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer legacy.Close()

	categorized, err := tx.Prepare(
		`INSERT INTO topic_mentions_cat_daily (day, category, term, count, total_items, rate_per_1k)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(day, category, term) DO UPDATE SET
		  count = excluded.count,
		  total_items = excluded.total_items,
		  rate_per_1k = excluded.rate_per_1k`,
	)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer categorized.Close()

	for _, r := range rows {
		if r.Category == "" {
			_, err = legacy.Exec(r.Day, r.Term, r.Count, r.TotalItems, r.RatePer1K)
		} else {
			_, err = categorized.Exec(r.Day, r.Category, r.Term, r.Count, r.TotalItems, r.RatePer1K)
		}
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("upserting topic mention (%s, %s, %s): %w", r.Day, r.Category, r.Term, err)
		}
	}

	return tx.Commit()
}

// GetTopicMentions returns legacy rows ordered by day then term.
func (db *DB) GetTopicMentions() ([]TopicMention, error) {
	rows, err := db.conn.Query(
		`SELECT day, term, count, total_items, rate_per_1k
		FROM topic_mentions_daily ORDER BY day, term`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMentions(rows, false)
}

// GetCategoryTopicMentions returns categorized rows, optionally filtered to
// one category, ordered by day, category, term.
func (db *DB) GetCategoryTopicMentions(category string) ([]TopicMention, error) {
	query := `SELECT day, category, term, count, total_items, rate_per_1k
		FROM topic_mentions_cat_daily`
	var args []any
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY day, category, term"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMentions(rows, true)
}

// TopicCategories returns the distinct categories present in the aggregates.
func (db *DB) TopicCategories() ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT DISTINCT category FROM topic_mentions_cat_daily ORDER BY category",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func scanMentions(rows *sql.Rows, categorized bool) ([]TopicMention, error) {
	var out []TopicMention
	for rows.Next() {
		var m TopicMention
		var err error
		if categorized {
			err = rows.Scan(&m.Day, &m.Category, &m.Term, &m.Count, &m.TotalItems, &m.RatePer1K)
		} else {
			err = rows.Scan(&m.Day, &m.Term, &m.Count, &m.TotalItems, &m.RatePer1K)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
