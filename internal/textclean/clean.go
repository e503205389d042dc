package textclean

import (
	"regexp"
	"strings"
)

// Markers Reddit substitutes for author-deleted and moderator-removed content.
const (
	DeletedMarker = "[deleted]"
	RemovedMarker = "[removed]"
)

// Flags records what cleaning discovered about a raw text. Deleted and
// removed are mutually exclusive; empty can occur on its own when cleaning
// strips everything from an otherwise live text.
type Flags struct {
	IsDeleted bool
	IsRemoved bool
	IsEmpty   bool
}

// Live reports whether the text should be sent to the classifier.
func (f Flags) Live() bool {
	return !f.IsDeleted && !f.IsRemoved && !f.IsEmpty
}

var (
	urlRe      = regexp.MustCompile(`http\S+|www\.\S+`)
	// Mentions only count at a token start: a mid-word @ or u/ is more
	// likely obfuscation ("p@ssw0rd") or a plain slash ("you/them").
	mentionRe  = regexp.MustCompile(`(^|\s)(?:u/|@)[A-Za-z0-9_-]+`)
	entityRe   = regexp.MustCompile(`&[a-zA-Z]+;`)
	mdLinkRe   = regexp.MustCompile(`\[.*?\]\(.*?\)`)
	emphasisRe = regexp.MustCompile("[*_~`]+")
	quoteRe    = regexp.MustCompile(`(?m)^>\s*`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

var entityDecoder = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">")

// Clean normalizes raw Reddit text into classifier-ready form. It never
// fails: any input maps to a cleaned string plus flags. Deletion and removal
// markers are detected before any rewriting and return empty text with the
// matching flag set, so callers skip classification for them.
func Clean(text string) (string, Flags) {
	var flags Flags

	if strings.TrimSpace(text) == "" {
		flags.IsEmpty = true
		return "", flags
	}

	switch strings.ToLower(strings.TrimSpace(text)) {
	case DeletedMarker:
		flags.IsDeleted = true
		return "", flags
	case RemovedMarker:
		flags.IsRemoved = true
		return "", flags
	}

	// Markdown links go first: stripping bare URLs would otherwise eat the
	// closing paren and leave the link syntax behind.
	cleaned := strings.TrimSpace(text)
	cleaned = mdLinkRe.ReplaceAllString(cleaned, "")
	cleaned = urlRe.ReplaceAllString(cleaned, "")
	cleaned = mentionRe.ReplaceAllString(cleaned, "$1<USER>")
	cleaned = entityDecoder.Replace(cleaned)
	cleaned = entityRe.ReplaceAllString(cleaned, "")
	cleaned = emphasisRe.ReplaceAllString(cleaned, "")
	cleaned = quoteRe.ReplaceAllString(cleaned, "")
	cleaned = spaceRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.ToLower(strings.TrimSpace(cleaned))

	flags.IsEmpty = cleaned == ""
	return cleaned, flags
}

// IsDeletedOrRemoved reports whether raw text is exactly a deletion or
// removal marker, ignoring case and surrounding whitespace.
func IsDeletedOrRemoved(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == DeletedMarker || t == RemovedMarker
}

// NormalizeForTopics applies the lighter normalization used by the topic
// mention aggregator: URLs, mentions, markdown links and HTML entities are
// replaced with spaces rather than placeholders, then whitespace collapses
// and the text lowercases. It is intentionally independent of Clean.
func NormalizeForTopics(text string) string {
	if text == "" {
		return ""
	}
	s := mdLinkRe.ReplaceAllString(text, " ")
	s = urlRe.ReplaceAllString(s, " ")
	s = mentionRe.ReplaceAllString(s, " ")
	s = entityRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}
