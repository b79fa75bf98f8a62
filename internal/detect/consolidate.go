package detect

import "sort"

// Consolidate merges the candidate lists of every strategy into disjoint
// duplicate groups. lists is indexed by strategy precedence
// (hash, metadata, technical, fingerprint); missing or empty lists are fine.
//
// Candidates are visited by descending confidence, ties going to the list
// with the lower index and then to the earlier candidate in that list. The
// Strategy label on a candidate plays no part in the order. A candidate is
// kept only if none of its tracks were claimed by an earlier group;
// otherwise it is dropped whole.
func Consolidate(lists [][]Candidate) []Candidate {
	type ranked struct {
		Candidate
		slot int
	}

	var all []ranked
	for slot, list := range lists {
		for _, c := range list {
			all = append(all, ranked{Candidate: c, slot: slot})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Confidence != all[j].Confidence {
			return all[i].Confidence > all[j].Confidence
		}
		return all[i].slot < all[j].slot
	})

	groups := make([]Candidate, 0)
	consumed := make(map[string]bool)

	for _, r := range all {
		c := r.Candidate
		ids := c.Identities()

		overlaps := false
		for _, id := range ids {
			if consumed[id] {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}

		for _, id := range ids {
			consumed[id] = true
		}
		groups = append(groups, c)
	}

	return groups
}
