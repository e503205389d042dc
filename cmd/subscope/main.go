package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"subscope/internal/archive"
	"subscope/internal/classify"
	"subscope/internal/config"
	"subscope/internal/database"
	"subscope/internal/infer"
	"subscope/internal/ingest"
	"subscope/internal/pipeline"
	"subscope/internal/reddit"
	"subscope/internal/server"
	"subscope/internal/topics"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "subscope",
	Short:   "Subreddit abuse monitoring",
	Long:    "Subscope mirrors a subreddit, classifies posts and comments for toxicity, and tracks daily topic mentions.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(archiveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("subscope", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/subscope/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set the subreddit, inference server, and thresholds.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Today: %s\n", database.GetToday())
		fmt.Printf("Subreddit: r/%s\n\n", cfg.Source.Subreddit)
		fmt.Println("Mirror:")
		fmt.Printf("  Posts: %d\n", stats.Posts)
		fmt.Printf("  Comments: %d\n", stats.Comments)
		fmt.Println("\nClassification:")
		fmt.Printf("  Classified: %d\n", stats.Classified)
		fmt.Printf("  Flagged: %d\n", stats.Flagged)
		if len(stats.LabelColumns) > 0 {
			fmt.Printf("  Labels: %v\n", stats.LabelColumns)
		}
		fmt.Println("\nTopics:")
		fmt.Printf("  Days with aggregates: %d\n", stats.TopicDays)

		for _, stage := range []string{"ingest", "classify", "topics"} {
			report, err := db.LastRunReport(stage)
			if err != nil {
				return err
			}
			if report != nil {
				fmt.Printf("\nLast %s run: %s (%d processed, %d errors)\n",
					stage, deref(report.RanAt), report.Processed, report.Errors)
			}
		}
		return nil
	},
}

// --- ingest command ---

var (
	ingestDays      int
	ingestPostsOnly bool
	noArchive       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Pull new posts and comments into the mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		store, err := openArchive()
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}

		src := reddit.NewClient(cfg.Source.BaseURL, cfg.Source.Subreddit, cfg.Source.UserAgent, cfg.Source.PauseMS)
		result := ingest.New(db, store, src, ingestDays, cfg.Source.MaxPosts, ingestPostsOnly).Run(cmd.Context())

		fmt.Println("\nIngest complete:")
		fmt.Printf("  Posts: %d new, %d duplicates\n", result.PostsNew, result.PostsDup)
		fmt.Printf("  Comments: %d new, %d duplicates\n", result.CommentsNew, result.CommentsDup)
		if result.Errors > 0 {
			fmt.Printf("  Errors: %d\n", result.Errors)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestDays, "days", 0, "Only pull posts newer than this many days (0 = no cutoff)")
	ingestCmd.Flags().BoolVar(&ingestPostsOnly, "posts-only", false, "Skip comment trees")
	ingestCmd.Flags().BoolVar(&noArchive, "no-archive", false, "Skip writing raw JSON to the archive")
}

// --- classify command ---

var reclassifyAll bool

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Score unclassified items with the toxicity model",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openExistingDB()
		if err != nil {
			return err
		}
		defer db.Close()

		model, err := infer.NewClient(cfg.Model.BaseURL, cfg.Model.Name, cfg.Model.MaxLength)
		if err != nil {
			return err
		}
		fmt.Printf("Model: %s (labels: %v)\n", model.Name(), model.Labels())

		result, err := classify.New(db, model, cfg.Model.Thresholds, cfg.Model.BatchSize, reclassifyAll).Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("\nClassification complete:")
		fmt.Printf("  Processed: %d\n", result.Processed)
		fmt.Printf("  Flagged: %d\n", result.Flagged)
		fmt.Printf("  Empty/tombstoned: %d\n", result.Empty)
		fmt.Printf("  Skipped (already classified): %d\n", result.Skipped)
		if result.Errors > 0 {
			fmt.Printf("  Errors: %d\n", result.Errors)
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&reclassifyAll, "all", false, "Reclassify items that already have scores")
}

// --- topics command ---

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Rebuild the daily topic-mention aggregates",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openExistingDB()
		if err != nil {
			return err
		}
		defer db.Close()

		agg, err := topics.New(db, cfg.Topics)
		if err != nil {
			return err
		}
		result, err := agg.Run()
		if err != nil {
			return err
		}

		fmt.Println("\nTopic aggregation complete:")
		fmt.Printf("  Items counted: %d\n", result.Items)
		fmt.Printf("  Days covered: %d\n", result.Days)
		fmt.Printf("  Aggregate rows: %d\n", result.Rows)
		return nil
	},
}

// --- run command ---

var (
	dryRun       bool
	runDays      int
	runPostsOnly bool
	runAll       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: ingest -> classify -> topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var store *archive.Store
		if !dryRun {
			store, err = openArchive()
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}
		}

		pipe := pipeline.New(cfg, db, store, pipeline.Options{
			DaysBack:   runDays,
			PostsOnly:  runPostsOnly,
			Reclassify: runAll,
		})

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun()
		} else {
			result = pipe.Run(context.Background())
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/3: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if !dryRun {
			fmt.Println("\nPipeline complete! Run 'subscope serve' to view the dashboard.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	runCmd.Flags().IntVar(&runDays, "days", 0, "Only pull posts newer than this many days")
	runCmd.Flags().BoolVar(&runPostsOnly, "posts-only", false, "Skip comment trees during ingest")
	runCmd.Flags().BoolVar(&runAll, "all", false, "Reclassify items that already have scores")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting dashboard at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, cfg.Model.Thresholds, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run the dashboard on (default from config)")
}

// --- archive command ---

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect the raw JSON archive",
}

var archiveGetCmd = &cobra.Command{
	Use:   "get [post|comment] [id]",
	Short: "Print the archived raw JSON for one item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		raw, err := store.Get(args[0], args[1])
		if err != nil {
			return err
		}
		if raw == nil {
			return fmt.Errorf("%s %s not in archive", args[0], args[1])
		}
		fmt.Println(string(raw))
		return nil
	},
}

var archiveAuthorCmd = &cobra.Command{
	Use:   "author [name]",
	Short: "List archived items by author",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.ByAuthor(args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("No archived items for %s\n", args[0])
			return nil
		}
		for _, r := range records {
			fmt.Printf("%s %s\n", r.Type, r.ID)
		}
		return nil
	},
}

var archiveDayCmd = &cobra.Command{
	Use:   "day [YYYY-MM-DD]",
	Short: "List archived items for a UTC day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.ByDay(args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("No archived items for %s\n", args[0])
			return nil
		}
		for _, r := range records {
			fmt.Printf("%s %s\n", r.Type, r.ID)
		}
		return nil
	},
}

func init() {
	archiveCmd.AddCommand(archiveGetCmd)
	archiveCmd.AddCommand(archiveAuthorCmd)
	archiveCmd.AddCommand(archiveDayCmd)
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, "subscope.db"))
}

// openExistingDB is for stages that only make sense on an existing mirror.
func openExistingDB() (*database.DB, error) {
	return database.OpenExisting(filepath.Join(cfg.GetDataDir(), "subscope.db"))
}

func openArchive() (*archive.Store, error) {
	if noArchive {
		return nil, nil
	}
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return archive.Open(filepath.Join(dataDir, "archive"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
