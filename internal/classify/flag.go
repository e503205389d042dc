package classify

import (
	"fmt"
	"sort"
	"strings"

	"subscope/internal/config"
	"subscope/internal/infer"
)

// Flagger turns label scores into a flag decision using per-label cutoffs.
// An item is flagged when any label clears its high cutoff; labels without a
// configured cutoff never flag, whatever the model thinks of them.
type Flagger struct {
	thresholds map[string]config.Threshold
	labels     []string
}

// NewFlagger creates a flagger from the configured threshold table. Labels
// are evaluated in sorted order so the reason string is deterministic.
func NewFlagger(thresholds map[string]config.Threshold) *Flagger {
	labels := make([]string, 0, len(thresholds))
	for label := range thresholds {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return &Flagger{thresholds: thresholds, labels: labels}
}

// Evaluate returns whether the scores cross any high cutoff, and a reason
// naming every label that did, e.g. "insult (0.83), toxicity (0.91)".
func (f *Flagger) Evaluate(scores infer.Scores) (bool, string) {
	var reasons []string
	for _, label := range f.labels {
		score, ok := scores[label]
		if !ok {
			continue
		}
		if score >= f.thresholds[label].High {
			reasons = append(reasons, fmt.Sprintf("%s (%.2f)", label, score))
		}
	}
	if len(reasons) == 0 {
		return false, ""
	}
	return true, strings.Join(reasons, ", ")
}

// Borderline returns the labels sitting between their medium and high
// cutoffs. These are not flagged but are worth surfacing in logs for
// threshold tuning.
func (f *Flagger) Borderline(scores infer.Scores) []string {
	var out []string
	for _, label := range f.labels {
		score, ok := scores[label]
		if !ok {
			continue
		}
		t := f.thresholds[label]
		if score >= t.Medium && score < t.High {
			out = append(out, fmt.Sprintf("%s (%.2f)", label, score))
		}
	}
	return out
}
