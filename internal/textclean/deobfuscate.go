package textclean

import "strings"

// Symbol substitutions commonly used to slip past keyword and model
// detection. Single characters only, so most legitimate words survive.
var deobfuscationTable = map[rune]rune{
	'$': 's',
	'@': 'a',
	'!': 'i',
	'1': 'l',
	'0': 'o',
	'3': 'e',
	'*': 'a',
}

// Deobfuscate maps leetspeak-style symbols back to the letters they resemble.
// It is applied only to text headed for classification, never to deleted,
// removed, or empty text.
func Deobfuscate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if sub, ok := deobfuscationTable[r]; ok {
			b.WriteRune(sub)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
