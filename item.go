package o365

import (
	"unicode"
	"unicode/utf8"
)

// Item is one object from a response's "value" array.
//
// Office 365 endpoints are inconsistent about the casing of the first letter
// of field names across API versions ("Subject" vs "subject"). Keys are
// canonicalized to a lowercase first rune once, when the item is built, so
// lookups succeed regardless of which casing the API or the caller used.
type Item map[string]any

// newItem canonicalizes every key of raw. When both casings of a key are
// present, the one that already started lowercase wins.
func newItem(raw map[string]any) Item {
	item := make(Item, len(raw))
	exact := make(map[string]bool, len(raw))
	for k, v := range raw {
		ck := lowerFirst(k)
		if exact[ck] {
			continue
		}
		if k == ck {
			exact[ck] = true
		}
		item[ck] = v
	}
	return item
}

// Get looks up a field regardless of the casing of its first letter.
// It returns nil when the field is absent.
func (it Item) Get(key string) any {
	return it[lowerFirst(key)]
}

// lowerFirst lowers the first rune of s, leaving the rest untouched.
func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
