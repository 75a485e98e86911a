package lead

import (
	"crypto/sha256"
	"encoding/hex"
)

// DedupKey derives the uniqueness key for a match under its source.
// Posts carrying a platform post ID dedup on it directly; posts without
// one fall back to a content fingerprint so repeated fetches of the same
// post cannot grow the match table without bound.
func DedupKey(externalPostID, postURL, matchedText string) string {
	if externalPostID != "" {
		return "external:" + externalPostID
	}
	return "sha256:" + Fingerprint(postURL, matchedText)
}

// Fingerprint hashes the post URL and matched text into a stable hex
// digest. Byte-identical inputs always produce the same fingerprint.
func Fingerprint(postURL, matchedText string) string {
	h := sha256.New()
	h.Write([]byte(postURL))
	h.Write([]byte{0})
	h.Write([]byte(matchedText))
	return hex.EncodeToString(h.Sum(nil))
}
