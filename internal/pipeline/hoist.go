package pipeline

import "sort"

// hoist moves modules shared by enough entry chunks into a single shared
// chunk. members maps entry name to its chunk's module set; sources holds the
// entry source of every entry, which always stays in its own chunk.
//
// It returns the sorted hoisted modules and rewrites members in place. Only
// entries the policy selects lose their copy of a hoisted module.
func hoist(policy *SharedChunkPolicy, order []string, members map[string][]string, sources map[string]bool) []string {
	if policy == nil {
		return nil
	}

	counts := make(map[string]int)
	for _, name := range order {
		for _, p := range members[name] {
			if sources[p] || !policy.Matches(p, name) {
				continue
			}
			counts[p]++
		}
	}

	hoisted := make(map[string]bool)
	for p, n := range counts {
		if n >= policy.minChunks() {
			hoisted[p] = true
		}
	}
	if len(hoisted) == 0 {
		return nil
	}

	for _, name := range order {
		kept := make([]string, 0, len(members[name]))
		for _, p := range members[name] {
			if hoisted[p] && policy.Matches(p, name) {
				continue
			}
			kept = append(kept, p)
		}
		members[name] = kept
	}

	shared := make([]string, 0, len(hoisted))
	for p := range hoisted {
		shared = append(shared, p)
	}
	sort.Strings(shared)
	return shared
}
