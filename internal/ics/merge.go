package ics

import "famcal/internal/model"

// Merge concatenates per-feed event lists, dropping any event whose
// (start, title) pair was already seen. The first occurrence wins, so feed
// order decides which source tag survives.
func Merge(lists ...[]model.Event) []model.Event {
	total := 0
	for _, l := range lists {
		total += len(l)
	}

	seen := make(map[model.Key]struct{}, total)
	out := make([]model.Event, 0, total)
	for _, l := range lists {
		for _, ev := range l {
			k := ev.Key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, ev)
		}
	}
	return out
}
