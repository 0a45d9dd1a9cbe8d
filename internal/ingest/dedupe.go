package ingest

import "github.com/roach88/lastclick/internal/model"

// Dedupe keeps the triples whose order fingerprint is neither in existing nor
// carried by an earlier triple of the batch. Input order is preserved and
// existing is not modified.
func Dedupe(existing map[string]struct{}, batch []model.Triple) []model.Triple {
	seen := make(map[string]struct{}, len(existing)+len(batch))
	for fp := range existing {
		seen[fp] = struct{}{}
	}

	kept := make([]model.Triple, 0, len(batch))
	for _, t := range batch {
		fp := t.Order.Fingerprint
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		kept = append(kept, t)
	}
	return kept
}

// orderFingerprints lists the order fingerprints of batch in order.
func orderFingerprints(batch []model.Triple) []string {
	fps := make([]string, len(batch))
	for i, t := range batch {
		fps[i] = t.Order.Fingerprint
	}
	return fps
}
