package database

// Post is a subreddit submission mirrored from the source platform.
type Post struct {
	ID          string
	Author      *string
	CreatedUTC  int64
	Title       *string
	Body        *string
	Score       int
	NumComments int
	Permalink   *string
	Subreddit   *string
	RawJSON     string
	CollectedAt *string
}

// Comment is a comment mirrored from the source platform. ParentID and
// LinkID are stored as bare item ids (type prefix already stripped); the
// prefixed originals remain inside RawJSON.
type Comment struct {
	ID          string
	ParentID    *string
	LinkID      *string
	Author      *string
	CreatedUTC  int64
	Body        *string
	Score       int
	Subreddit   *string
	RawJSON     string
	CollectedAt *string
}

// Classification is one classification row per item. Scores holds one entry
// per label column present in the table; the label set is open and depends
// on the model variant that produced the row.
type Classification struct {
	ID           string
	ItemType     string // "post" or "comment"
	TextCleaned  string
	IsDeleted    bool
	IsRemoved    bool
	IsEmpty      bool
	IsFlagged    bool
	FlagReason   *string
	Scores       map[string]float64
	ClassifiedAt *string
}

// TopicMention is one (day, term) or (day, category, term) aggregate row.
// Category is empty for the legacy flat-term table.
type TopicMention struct {
	Day        string
	Category   string
	Term       string
	Count      int
	TotalItems int
	RatePer1K  float64
}

// RunReport records the outcome of one pipeline stage run.
type RunReport struct {
	ID        int64
	Stage     string
	RanAt     *string
	Processed int
	Flagged   int
	Errors    int
}

// Stats contains aggregate database statistics.
type Stats struct {
	Posts        int
	Comments     int
	Classified   int
	Flagged      int
	TopicDays    int
	LabelColumns []string
}
