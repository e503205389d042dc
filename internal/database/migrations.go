package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
// Per-label score columns are not part of the schema here; they are added
// dynamically by EnsureLabelColumns once the model's label set is known.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    author TEXT,
    created_utc INTEGER NOT NULL,
    title TEXT,
    body TEXT,
    score INTEGER DEFAULT 0,
    num_comments INTEGER DEFAULT 0,
    permalink TEXT,
    subreddit TEXT,
    raw_json TEXT NOT NULL,
    collected_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS comments (
    id TEXT PRIMARY KEY,
    parent_id TEXT,
    link_id TEXT,
    author TEXT,
    created_utc INTEGER NOT NULL,
    body TEXT,
    score INTEGER DEFAULT 0,
    subreddit TEXT,
    raw_json TEXT NOT NULL,
    collected_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS classifications (
    id TEXT PRIMARY KEY,
    item_type TEXT NOT NULL CHECK(item_type IN ('post', 'comment')),
    text_cleaned TEXT,
    is_deleted INTEGER DEFAULT 0,
    is_removed INTEGER DEFAULT 0,
    is_empty INTEGER DEFAULT 0,
    is_flagged INTEGER DEFAULT 0,
    flag_reason TEXT,
    classified_at TEXT
);

CREATE TABLE IF NOT EXISTS topic_mentions_daily (
    day TEXT NOT NULL,
    term TEXT NOT NULL,
    count INTEGER NOT NULL,
    total_items INTEGER NOT NULL,
    rate_per_1k REAL NOT NULL,
    PRIMARY KEY (day, term)
);

CREATE TABLE IF NOT EXISTS topic_mentions_cat_daily (
    day TEXT NOT NULL,
    category TEXT NOT NULL,
    term TEXT NOT NULL,
    count INTEGER NOT NULL,
    total_items INTEGER NOT NULL,
    rate_per_1k REAL NOT NULL,
    PRIMARY KEY (day, category, term)
);

CREATE TABLE IF NOT EXISTS run_reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    stage TEXT NOT NULL,
    ran_at TEXT DEFAULT (datetime('now')),
    processed INTEGER DEFAULT 0,
    flagged INTEGER DEFAULT 0,
    errors INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_utc);
CREATE INDEX IF NOT EXISTS idx_comments_created ON comments(created_utc);
CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments(parent_id);
CREATE INDEX IF NOT EXISTS idx_comments_link ON comments(link_id);
CREATE INDEX IF NOT EXISTS idx_classifications_type ON classifications(item_type);
CREATE INDEX IF NOT EXISTS idx_classifications_flagged ON classifications(is_flagged);
CREATE INDEX IF NOT EXISTS idx_topic_day ON topic_mentions_daily(day);
CREATE INDEX IF NOT EXISTS idx_topic_cat_day ON topic_mentions_cat_daily(day);
CREATE INDEX IF NOT EXISTS idx_topic_cat_category ON topic_mentions_cat_daily(category);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
