package textclean

import "testing"

func TestCleanDeletedMarker(t *testing.T) {
	for _, raw := range []string{"[deleted]", "  [deleted]  ", "[DELETED]"} {
		cleaned, flags := Clean(raw)
		if !flags.IsDeleted {
			t.Errorf("Clean(%q): expected IsDeleted", raw)
		}
		if flags.IsRemoved || flags.IsEmpty {
			t.Errorf("Clean(%q): unexpected flags %+v", raw, flags)
		}
		if cleaned != "" {
			t.Errorf("Clean(%q): expected empty cleaned text, got %q", raw, cleaned)
		}
		if flags.Live() {
			t.Errorf("Clean(%q): deleted text must not be live", raw)
		}
	}
}

func TestCleanRemovedMarker(t *testing.T) {
	cleaned, flags := Clean("[removed]")
	if !flags.IsRemoved || flags.IsDeleted {
		t.Errorf("unexpected flags %+v", flags)
	}
	if cleaned != "" {
		t.Errorf("expected empty cleaned text, got %q", cleaned)
	}
}

func TestCleanEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t "} {
		cleaned, flags := Clean(raw)
		if !flags.IsEmpty {
			t.Errorf("Clean(%q): expected IsEmpty", raw)
		}
		if flags.IsDeleted || flags.IsRemoved {
			t.Errorf("Clean(%q): unexpected flags %+v", raw, flags)
		}
		if cleaned != "" {
			t.Errorf("Clean(%q): expected empty cleaned text, got %q", raw, cleaned)
		}
	}
}

func TestCleanNoiseOnlyBecomesEmpty(t *testing.T) {
	cleaned, flags := Clean("https://example.com/x [link](https://y.com) **  **")
	if cleaned != "" {
		t.Errorf("expected empty cleaned text, got %q", cleaned)
	}
	if !flags.IsEmpty {
		t.Error("expected IsEmpty after cleaning stripped everything")
	}
	if flags.IsDeleted || flags.IsRemoved {
		t.Errorf("unexpected flags %+v", flags)
	}
}

func TestCleanRewrites(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"url stripped", "check http://spam.example now", "check now"},
		{"www stripped", "see www.example.com today", "see today"},
		{"reddit mention", "thanks u/Some_User-1 for this", "thanks <user> for this"},
		{"at mention", "cc @someone here", "cc <user> here"},
		{"mid-word at is not a mention", "my p@ssw0rd leaked", "my p@ssw0rd leaked"},
		{"mid-word slash is not a mention", "it was you/them all along", "it was you/them all along"},
		{"html entities decoded", "a &amp; b &lt;tag&gt;", "a & b <tag>"},
		{"unknown entity stripped", "foo&nbsp;bar", "foobar"},
		{"markdown link removed", "read [the rules](https://r.example) first", "read first"},
		{"emphasis removed", "this is **really** `bad` _stuff_", "this is really bad stuff"},
		{"quote marker removed", "> quoted line\nreply", "quoted line reply"},
		{"whitespace collapsed", "a\n\n  b\t c", "a b c"},
		{"lowercased", "YELLING Text", "yelling text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, flags := Clean(tt.in)
			if got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if !flags.Live() {
				t.Errorf("Clean(%q): expected live flags, got %+v", tt.in, flags)
			}
		})
	}
}

func TestIsDeletedOrRemoved(t *testing.T) {
	if !IsDeletedOrRemoved(" [Deleted] ") {
		t.Error("expected marker match")
	}
	if !IsDeletedOrRemoved("[removed]") {
		t.Error("expected marker match")
	}
	if IsDeletedOrRemoved("this comment was deleted") {
		t.Error("expected no match for prose")
	}
}

func TestDeobfuscate(t *testing.T) {
	tests := []struct{ in, want string }{
		{"p@ssw0rd", "password"},
		{"$3xism", "sexism"},
		{"h1", "hl"},
		{"plain text", "plain text"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Deobfuscate(tt.in); got != tt.want {
			t.Errorf("Deobfuscate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeobfuscateIdempotentOnCleanText(t *testing.T) {
	s := "nothing mapped here"
	if Deobfuscate(Deobfuscate(s)) != Deobfuscate(s) {
		t.Error("expected idempotence on text without mapped symbols")
	}
}

func TestNormalizeForTopics(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Check https://x.example and u/Someone", "check and"},
		{"[link](http://y) &amp; more", "more"},
		{"Lots   of\nSpace", "lots of space"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeForTopics(tt.in); got != tt.want {
			t.Errorf("NormalizeForTopics(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
