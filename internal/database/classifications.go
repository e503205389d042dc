package database

import (
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// fixedClassificationColumns are the columns every classifications row has;
// anything else in the table is a per-label score column.
var fixedClassificationColumns = map[string]bool{
	"id": true, "item_type": true, "text_cleaned": true,
	"is_deleted": true, "is_removed": true, "is_empty": true,
	"is_flagged": true, "flag_reason": true, "classified_at": true,
}

var labelColumnRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// EnsureLabelColumns adds a REAL score column for every label the active
// model reports, if not already present. Label names come from model config,
// so they are validated before being spliced into DDL.
func (db *DB) EnsureLabelColumns(labels []string) error {
	existing, err := db.LabelColumns()
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, l := range existing {
		have[l] = true
	}

	for _, label := range labels {
		if have[label] {
			continue
		}
		if !labelColumnRe.MatchString(label) {
			return fmt.Errorf("invalid label name %q", label)
		}
		if _, err := db.conn.Exec(
			fmt.Sprintf(`ALTER TABLE classifications ADD COLUMN "%s" REAL DEFAULT 0`, label),
		); err != nil {
			return fmt.Errorf("adding label column %s: %w", label, err)
		}
	}
	return nil
}

// LabelColumns returns the score columns currently present, sorted.
func (db *DB) LabelColumns() ([]string, error) {
	rows, err := db.conn.Query("PRAGMA table_info(classifications)")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt any
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		if !fixedClassificationColumns[name] {
			labels = append(labels, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(labels)
	return labels, nil
}

// UpsertClassification inserts or replaces the classification row for an
// item. Reprocessing overwrites; no history is kept. Score columns must have
// been created by EnsureLabelColumns first; labels present in c.Scores but
// absent from the table are an error rather than silently dropped.
func (db *DB) UpsertClassification(c Classification) error {
	labels := make([]string, 0, len(c.Scores))
	for label := range c.Scores {
		if !labelColumnRe.MatchString(label) {
			return fmt.Errorf("invalid label name %q", label)
		}
		labels = append(labels, label)
	}
	sort.Strings(labels)

	cols := []string{"id", "item_type", "text_cleaned", "is_deleted", "is_removed", "is_empty", "is_flagged", "flag_reason", "classified_at"}
	args := []any{c.ID, c.ItemType, c.TextCleaned, c.IsDeleted, c.IsRemoved, c.IsEmpty, c.IsFlagged, c.FlagReason, time.Now().UTC().Format(time.RFC3339)}
	for _, label := range labels {
		cols = append(cols, `"`+label+`"`)
		args = append(args, c.Scores[label])
	}

	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO classifications (%s) VALUES (%s)",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	)
	_, err := db.conn.Exec(query, args...)
	return err
}

// GetClassification returns the classification row for an item, or nil.
// Scores contains every label column in the table, including zeros.
func (db *DB) GetClassification(id string) (*Classification, error) {
	labels, err := db.LabelColumns()
	if err != nil {
		return nil, err
	}

	cols := "id, item_type, text_cleaned, is_deleted, is_removed, is_empty, is_flagged, flag_reason, classified_at"
	for _, label := range labels {
		cols += `, "` + label + `"`
	}

	row := db.conn.QueryRow("SELECT "+cols+" FROM classifications WHERE id = ?", id)

	var c Classification
	scores := make([]float64, len(labels))
	dest := []any{&c.ID, &c.ItemType, &c.TextCleaned, &c.IsDeleted, &c.IsRemoved, &c.IsEmpty, &c.IsFlagged, &c.FlagReason, &c.ClassifiedAt}
	for i := range scores {
		dest = append(dest, &scores[i])
	}
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	c.Scores = make(map[string]float64, len(labels))
	for i, label := range labels {
		c.Scores[label] = scores[i]
	}
	return &c, nil
}

// FlaggedClassifications returns flagged rows, most recent first.
func (db *DB) FlaggedClassifications(limit int) ([]Classification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.conn.Query(
		`SELECT id, item_type, text_cleaned, is_deleted, is_removed, is_empty, is_flagged, flag_reason, classified_at
		FROM classifications WHERE is_flagged = 1
		ORDER BY classified_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Classification
	for rows.Next() {
		var c Classification
		if err := rows.Scan(&c.ID, &c.ItemType, &c.TextCleaned, &c.IsDeleted, &c.IsRemoved,
			&c.IsEmpty, &c.IsFlagged, &c.FlagReason, &c.ClassifiedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
