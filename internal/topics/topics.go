package topics

import (
	"fmt"
	"log"

	"github.com/dlclark/regexp2"

	"subscope/internal/config"
	"subscope/internal/database"
	"subscope/internal/textclean"
)

// Result holds the results of an aggregation run. Items counts only the
// posts and comments with usable text, the same population the rates are
// computed over.
type Result struct {
	Items int
	Days  int
	Rows  int
}

// Aggregator recomputes the daily topic-mention tables from the mirrored
// text. Terms are matched after normalization and leetspeak deobfuscation,
// so "$3xism" counts toward the same term as "sexism".
type Aggregator struct {
	db         *database.DB
	terms      map[string]*regexp2.Regexp
	categories map[string]map[string]*regexp2.Regexp
}

// New compiles the configured pattern tables. Patterns may use lookarounds
// (e.g. to keep "asian board" out of an "asian" term), which is why these
// are regexp2 patterns rather than stdlib ones.
func New(db *database.DB, cfg config.Topics) (*Aggregator, error) {
	a := &Aggregator{
		db:         db,
		terms:      make(map[string]*regexp2.Regexp),
		categories: make(map[string]map[string]*regexp2.Regexp),
	}

	for term, pattern := range cfg.Terms {
		re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
		if err != nil {
			return nil, fmt.Errorf("compiling term %q: %w", term, err)
		}
		a.terms[term] = re
	}
	for category, terms := range cfg.Categories {
		compiled := make(map[string]*regexp2.Regexp, len(terms))
		for term, pattern := range terms {
			re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
			if err != nil {
				return nil, fmt.Errorf("compiling %s/%s: %w", category, term, err)
			}
			compiled[term] = re
		}
		a.categories[category] = compiled
	}
	return a, nil
}

// Run rebuilds both aggregate tables from scratch. Each item counts a term
// at most once however often the term appears in it; rates are mentions per
// thousand items that day.
func (a *Aggregator) Run() (*Result, error) {
	// day -> category -> term -> item count; "" category is the flat table.
	counts := make(map[string]map[string]map[string]int)
	totals := make(map[string]int)

	r := &Result{}
	tally := func(createdUTC int64, raw string) {
		// Only items with usable text enter the day's denominator;
		// tombstones and empties would dilute the rates.
		if textclean.IsDeletedOrRemoved(raw) {
			return
		}
		text := textclean.Deobfuscate(textclean.NormalizeForTopics(raw))
		if text == "" {
			return
		}

		day := database.DayFromUnix(createdUTC)
		totals[day]++
		r.Items++

		for term, re := range a.terms {
			a.count(counts, day, "", term, re, text)
		}
		for category, terms := range a.categories {
			for term, re := range terms {
				a.count(counts, day, category, term, re, text)
			}
		}
	}

	posts, err := a.db.AllPosts()
	if err != nil {
		return nil, fmt.Errorf("loading posts: %w", err)
	}
	for _, p := range posts {
		raw := ""
		if p.Title != nil {
			raw = *p.Title
		}
		// A tombstoned body still leaves the title countable.
		if p.Body != nil && !textclean.IsDeletedOrRemoved(*p.Body) {
			raw += " " + *p.Body
		}
		tally(p.CreatedUTC, raw)
	}

	comments, err := a.db.AllComments()
	if err != nil {
		return nil, fmt.Errorf("loading comments: %w", err)
	}
	for _, c := range comments {
		body := ""
		if c.Body != nil {
			body = *c.Body
		}
		tally(c.CreatedUTC, body)
	}

	var rows []database.TopicMention
	for day, byCategory := range counts {
		total := totals[day]
		if total < 1 {
			total = 1
		}
		for category, byTerm := range byCategory {
			for term, count := range byTerm {
				rows = append(rows, database.TopicMention{
					Day:        day,
					Category:   category,
					Term:       term,
					Count:      count,
					TotalItems: totals[day],
					RatePer1K:  1000 * float64(count) / float64(total),
				})
			}
		}
	}

	// Full rebuild: wipe first so vanished mentions do not linger.
	if err := a.db.ClearTopicMentions(); err != nil {
		return nil, err
	}
	if err := a.db.UpsertTopicMentions(rows); err != nil {
		return nil, err
	}

	r.Days = len(totals)
	r.Rows = len(rows)
	log.Printf("Topic aggregation complete: %d items over %d days, %d aggregate rows", r.Items, r.Days, r.Rows)

	if err := a.db.InsertRunReport("topics", r.Items, 0, 0); err != nil {
		log.Printf("Error recording run report: %v", err)
	}
	return r, nil
}

func (a *Aggregator) count(counts map[string]map[string]map[string]int, day, category, term string, re *regexp2.Regexp, text string) {
	matched, err := re.MatchString(text)
	if err != nil || !matched {
		return
	}
	if counts[day] == nil {
		counts[day] = make(map[string]map[string]int)
	}
	if counts[day][category] == nil {
		counts[day][category] = make(map[string]int)
	}
	counts[day][category][term]++
}
