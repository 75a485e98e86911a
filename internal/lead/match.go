package lead

import "strings"

// Matches reports whether postText contains keywordText, case-insensitive.
// Empty post text or empty keyword text never matches.
func Matches(postText, keywordText string) bool {
	if postText == "" || keywordText == "" {
		return false
	}
	return strings.Contains(strings.ToLower(postText), strings.ToLower(keywordText))
}

// FirstMatch returns the first keyword in the supplied order whose text
// matches the post. A post is associated with at most one keyword per
// scrape: matching stops at the first hit, so keyword ordering decides
// ties. Inactive keywords are skipped.
func FirstMatch(post Post, keywords []Keyword) (Keyword, bool) {
	for _, kw := range keywords {
		if !kw.IsActive {
			continue
		}
		if Matches(post.Text, kw.Text) {
			return kw, true
		}
	}
	return Keyword{}, false
}

// NormalizeKeyword lowercases and trims keyword text. Two keywords that
// normalize to the same string are considered the same keyword.
func NormalizeKeyword(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
