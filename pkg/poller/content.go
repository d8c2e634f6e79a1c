package poller

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dukex/conduit/pkg/models"
)

// maxContentLen caps the raw content carried in trigger data.
const maxContentLen = 10000

// checkContent applies the HTTP policy: compare a SHA-256 digest of the body
// against the stored one. The first observation only establishes the baseline,
// so workflow creation does not cause a spurious execution. The digest is
// refreshed regardless of outcome.
func checkContent(content []byte, state *models.PollState) *Decision {
	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	previous := state.LastContentHash
	state.LastContentHash = digest

	if previous == "" || previous == digest {
		return &Decision{}
	}

	return &Decision{
		ShouldExecute: true,
		TriggerData: map[string]any{
			"content":      truncate(string(content), maxContentLen),
			"content_hash": digest,
		},
	}
}
