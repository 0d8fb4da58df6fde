// Package ids derives stable, content-addressable identifiers for the
// docset/page/chunk hierarchy and wraps the one place the engine needs a
// context-free unique value.
package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"
)

// hash returns the hex-encoded SHA-256 of the concatenated parts, each
// separated by a NUL byte so that e.g. ("ab", "c") and ("a", "bc") hash
// differently.
func hash(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Docset derives a stable docset identifier from its base URL and seed
// path, so re-indexing the same site never produces a duplicate docset.
func Docset(baseURL, seedSlug string) string {
	return hash("docset", baseURL, seedSlug)
}

// Page derives a stable page identifier from its owning docset and
// canonical URL. Unique within a docset per the Page.URL invariant.
func Page(docsetID, canonicalURL string) string {
	return hash("page", docsetID, canonicalURL)
}

// Chunk derives a stable chunk identifier from its owning page, its
// dense 0-based index, and its body text, so re-chunking identical
// content after a no-op refresh reproduces the same chunk IDs (P6).
func Chunk(pageID string, index int, body string) string {
	return hash("chunk", pageID, strconv.Itoa(index), body)
}

// ContentHash returns the SHA-256 hash of a page body, used for the
// incremental short-circuit in the indexing state machine.
func ContentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// New returns a fresh random identifier, for places where no natural
// content key exists.
func New() string {
	return uuid.NewString()
}
