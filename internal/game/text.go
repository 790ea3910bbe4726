package game

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// foldKey builds a fresh Caser per call; Casers are not safe for concurrent use.
func foldKey(text string) string {
	return cases.Fold().String(text)
}

// NormalizeText NFC-normalizes text, collapses runs of whitespace and trims it.
func NormalizeText(text string) string {
	fields := strings.Fields(norm.NFC.String(text))
	return strings.Join(fields, " ")
}

func truncateRunes(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max]))
}

// NormalizeItems trims, caps and case-insensitively deduplicates host-submitted
// item names, keeping the first spelling of each.
func NormalizeItems(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	items := make([]string, 0, len(raw))
	for _, entry := range raw {
		name := truncateRunes(NormalizeText(entry), MaxItemLength)
		if name == "" {
			continue
		}
		key := foldKey(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, name)
	}
	return items
}

// NormalizeAssociation trims and caps a submitted association value.
func NormalizeAssociation(value string) (string, error) {
	trimmed := truncateRunes(NormalizeText(value), MaxAssociationLen)
	if trimmed == "" {
		return "", invalid("association is required")
	}
	return trimmed, nil
}

// ValidateNickname returns the normalized nickname or a validation error.
func ValidateNickname(nickname string) (string, error) {
	trimmed := NormalizeText(nickname)
	if trimmed == "" {
		return "", invalid("nickname is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxNicknameLength {
		return "", invalid("nickname must be %d characters or fewer", MaxNicknameLength)
	}
	return trimmed, nil
}

// NicknameKey is the case-folded form two nicknames must not share in a room.
func NicknameKey(nickname string) string {
	return foldKey(NormalizeText(nickname))
}

// SameNickname compares nicknames case-insensitively.
func SameNickname(a, b string) bool {
	return NicknameKey(a) == NicknameKey(b)
}
