package pipeline

import (
	"context"
	"fmt"
	"log"

	"subscope/internal/archive"
	"subscope/internal/classify"
	"subscope/internal/config"
	"subscope/internal/database"
	"subscope/internal/infer"
	"subscope/internal/ingest"
	"subscope/internal/reddit"
	"subscope/internal/topics"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps []StepResult
}

// Options tune a pipeline run.
type Options struct {
	DaysBack   int
	PostsOnly  bool
	Reclassify bool
}

// Pipeline orchestrates the 3-step monitoring pipeline: ingest, classify,
// aggregate topics.
type Pipeline struct {
	cfg   *config.Config
	db    *database.DB
	store *archive.Store
	opts  Options
}

// New creates a new pipeline. store may be nil to skip raw archiving.
func New(cfg *config.Config, db *database.DB, store *archive.Store, opts Options) *Pipeline {
	return &Pipeline{cfg: cfg, db: db, store: store, opts: opts}
}

// Run executes the full pipeline. A failed ingest still classifies whatever
// made it into the mirror; a failed classify stops the run since the topic
// tables would be rebuilt from the same text anyway.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{}

	step := p.runIngest(ctx)
	r.Steps = append(r.Steps, step)

	step = p.runClassify(ctx)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	step = p.runTopics()
	r.Steps = append(r.Steps, step)

	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun() *Result {
	r := &Result{}

	stats, err := p.db.GetStats()
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Ingest", Err: err})
		return r
	}

	r.Steps = append(r.Steps, StepResult{
		Name:    "Ingest",
		Summary: fmt.Sprintf("[dry-run] mirror holds %d posts, %d comments for r/%s", stats.Posts, stats.Comments, p.cfg.Source.Subreddit),
	})
	r.Steps = append(r.Steps, StepResult{
		Name:    "Classify",
		Summary: fmt.Sprintf("[dry-run] %d of %d items classified, %d flagged", stats.Classified, stats.Posts+stats.Comments, stats.Flagged),
	})
	r.Steps = append(r.Steps, StepResult{
		Name:    "Topics",
		Summary: fmt.Sprintf("[dry-run] aggregates cover %d days, would rebuild", stats.TopicDays),
	})
	return r
}

func (p *Pipeline) runIngest(ctx context.Context) StepResult {
	log.Println("Step 1/3: Ingesting listing...")
	src := reddit.NewClient(p.cfg.Source.BaseURL, p.cfg.Source.Subreddit, p.cfg.Source.UserAgent, p.cfg.Source.PauseMS)
	result := ingest.New(p.db, p.store, src, p.opts.DaysBack, p.cfg.Source.MaxPosts, p.opts.PostsOnly).Run(ctx)
	return StepResult{
		Name: "Ingest",
		Summary: fmt.Sprintf("%d new posts, %d new comments (%d duplicates, %d errors)",
			result.PostsNew, result.CommentsNew, result.PostsDup+result.CommentsDup, result.Errors),
	}
}

func (p *Pipeline) runClassify(ctx context.Context) StepResult {
	log.Println("Step 2/3: Classifying items...")
	model, err := infer.NewClient(p.cfg.Model.BaseURL, p.cfg.Model.Name, p.cfg.Model.MaxLength)
	if err != nil {
		return StepResult{Name: "Classify", Err: err}
	}
	result, err := classify.New(p.db, model, p.cfg.Model.Thresholds, p.cfg.Model.BatchSize, p.opts.Reclassify).Run(ctx)
	if err != nil {
		return StepResult{Name: "Classify", Err: err}
	}
	return StepResult{
		Name: "Classify",
		Summary: fmt.Sprintf("%d classified, %d flagged, %d skipped, %d errors",
			result.Processed, result.Flagged, result.Skipped, result.Errors),
	}
}

func (p *Pipeline) runTopics() StepResult {
	log.Println("Step 3/3: Aggregating topic mentions...")
	agg, err := topics.New(p.db, p.cfg.Topics)
	if err != nil {
		return StepResult{Name: "Topics", Err: err}
	}
	result, err := agg.Run()
	if err != nil {
		return StepResult{Name: "Topics", Err: err}
	}
	return StepResult{
		Name:    "Topics",
		Summary: fmt.Sprintf("%d items over %d days, %d aggregate rows", result.Items, result.Days, result.Rows),
	}
}
