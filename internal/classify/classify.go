package classify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"subscope/internal/config"
	"subscope/internal/database"
	"subscope/internal/infer"
	"subscope/internal/textclean"
)

const progressEvery = 50

// Result holds the results of a classification run.
type Result struct {
	Processed int
	Flagged   int
	Skipped   int
	Empty     int
	Errors    int
}

// item is one unit of work: an id, its cleaned text, and the text the model
// actually sees (comments carry their parent context there).
type item struct {
	id        string
	itemType  string
	cleaned   string
	modelText string
	flags     textclean.Flags
}

// Classifier runs every unclassified item through the toxicity model and
// stores scores plus the flag decision.
type Classifier struct {
	db         *database.DB
	model      infer.Model
	flagger    *Flagger
	batchSize  int
	reclassify bool
}

// New creates a classifier. With reclassify set, items that already have a
// classification row are scored again and overwritten.
func New(db *database.DB, model infer.Model, thresholds map[string]config.Threshold, batchSize int, reclassify bool) *Classifier {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Classifier{
		db:         db,
		model:      model,
		flagger:    NewFlagger(thresholds),
		batchSize:  batchSize,
		reclassify: reclassify,
	}
}

// Run classifies all pending posts and comments.
func (c *Classifier) Run(ctx context.Context) (*Result, error) {
	if err := c.db.EnsureLabelColumns(c.model.Labels()); err != nil {
		return nil, fmt.Errorf("preparing score columns: %w", err)
	}

	items, skipped, err := c.gather()
	if err != nil {
		return nil, err
	}

	r := &Result{Skipped: skipped}
	if len(items) == 0 {
		log.Println("Nothing to classify")
		return r, nil
	}
	log.Printf("Classifying %d items with %s (batch size %d)...", len(items), c.model.Name(), c.batchSize)

	for start := 0; start < len(items); start += c.batchSize {
		end := start + c.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		texts := make([]string, len(batch))
		for i, it := range batch {
			texts[i] = it.modelText
		}

		scores, err := c.model.Classify(ctx, texts)
		if err != nil {
			return r, fmt.Errorf("classifying batch at %d: %w", start, err)
		}

		for i, it := range batch {
			if err := c.store(it, scores[i], r); err != nil {
				log.Printf("Error storing classification for %s %s: %v", it.itemType, it.id, err)
				r.Errors++
			}
			r.Processed++
			if r.Processed%progressEvery == 0 {
				log.Printf("Classified %d/%d items", r.Processed, len(items))
			}
		}
	}

	rate := 0.0
	if r.Processed > 0 {
		rate = 100 * float64(r.Flagged) / float64(r.Processed)
	}
	log.Printf("Classification complete: %d processed, %d flagged (%.1f%%), %d empty, %d skipped, %d errors",
		r.Processed, r.Flagged, rate, r.Empty, r.Skipped, r.Errors)

	if err := c.db.InsertRunReport("classify", r.Processed, r.Flagged, r.Errors); err != nil {
		log.Printf("Error recording run report: %v", err)
	}
	return r, nil
}

// gather builds the work list: cleaned posts first, then comments with their
// parent context resolved.
func (c *Classifier) gather() ([]item, int, error) {
	var items []item
	skipped := 0

	posts, err := c.db.AllPosts()
	if err != nil {
		return nil, 0, fmt.Errorf("loading posts: %w", err)
	}
	for _, p := range posts {
		done, err := c.alreadyClassified(p.ID)
		if err != nil {
			return nil, 0, err
		}
		if done {
			skipped++
			continue
		}

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
		cleaned, flags := textclean.Clean(raw)
		// The model sees the deobfuscated form; the stored cleaned text keeps
		// the symbols as written.
		items = append(items, item{
			id:        p.ID,
			itemType:  "post",
			cleaned:   cleaned,
			modelText: textclean.Deobfuscate(cleaned),
			flags:     flags,
		})
	}

	comments, err := c.db.AllComments()
	if err != nil {
		return nil, 0, fmt.Errorf("loading comments: %w", err)
	}
	for _, cm := range comments {
		done, err := c.alreadyClassified(cm.ID)
		if err != nil {
			return nil, 0, err
		}
		if done {
			skipped++
			continue
		}

		body := ""
		if cm.Body != nil {
			body = *cm.Body
		}
		cleaned, flags := textclean.Clean(body)

		modelText := cleaned
		if flags.Live() {
			parent, err := parentContext(c.db, cm)
			if err != nil {
				return nil, 0, fmt.Errorf("resolving parent of %s: %w", cm.ID, err)
			}
			modelText = withContext(cleaned, parent)
		}
		items = append(items, item{
			id:        cm.ID,
			itemType:  "comment",
			cleaned:   cleaned,
			modelText: textclean.Deobfuscate(modelText),
			flags:     flags,
		})
	}

	return items, skipped, nil
}

func (c *Classifier) alreadyClassified(id string) (bool, error) {
	if c.reclassify {
		return false, nil
	}
	existing, err := c.db.GetClassification(id)
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}

func (c *Classifier) store(it item, scores infer.Scores, r *Result) error {
	flagged, reason := c.flagger.Evaluate(scores)
	if !it.flags.Live() {
		// Tombstones and empty items never flag, whatever the model returned.
		flagged, reason = false, ""
		r.Empty++
	}

	if flagged {
		r.Flagged++
		log.Printf("Flagged %s %s: %s", it.itemType, it.id, reason)
	} else if borderline := c.flagger.Borderline(scores); len(borderline) > 0 && it.flags.Live() {
		log.Printf("Borderline %s %s: %s", it.itemType, it.id, strings.Join(borderline, ", "))
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	return c.db.UpsertClassification(database.Classification{
		ID:          it.id,
		ItemType:    it.itemType,
		TextCleaned: it.cleaned,
		IsDeleted:   it.flags.IsDeleted,
		IsRemoved:   it.flags.IsRemoved,
		IsEmpty:     it.flags.IsEmpty,
		IsFlagged:   flagged,
		FlagReason:  reasonPtr,
		Scores:      scores,
	})
}
