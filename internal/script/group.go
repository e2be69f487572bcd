package script

// Group is a batch of consecutive segments dispatched in a single engine call.
// The engine accepts at most two distinct speakers per call, so every group
// carries at most two. Index is assigned at creation and is the sole ordering
// key for reassembly; completion order of concurrent work never matters.
type Group struct {
	Index    int
	Segments []Segment
	Speakers []string // distinct, in order of first appearance, len <= 2
}

// HasSpeaker reports whether the group already references the speaker.
func (g *Group) HasSpeaker(name string) bool {
	for _, s := range g.Speakers {
		if s == name {
			return true
		}
	}
	return false
}

// BuildGroups partitions segments into ordered groups of at most two distinct
// speakers using a single greedy left-to-right pass. No lookahead and no
// reordering: a third distinct speaker closes the current group and seeds a
// new one with just that segment. The partition is deliberately not minimal in
// group count.
func BuildGroups(segments []Segment) []Group {
	var groups []Group
	for _, seg := range segments {
		if len(groups) > 0 {
			cur := &groups[len(groups)-1]
			if cur.HasSpeaker(seg.Speaker) {
				cur.Segments = append(cur.Segments, seg)
				continue
			}
			if len(cur.Speakers) < 2 {
				cur.Speakers = append(cur.Speakers, seg.Speaker)
				cur.Segments = append(cur.Segments, seg)
				continue
			}
		}
		groups = append(groups, Group{
			Index:    len(groups),
			Segments: []Segment{seg},
			Speakers: []string{seg.Speaker},
		})
	}
	return groups
}

// DistinctSpeakers returns the distinct speaker names across all segments, in
// order of first appearance.
func DistinctSpeakers(segments []Segment) []string {
	var names []string
	seen := make(map[string]bool, 2)
	for _, seg := range segments {
		if !seen[seg.Speaker] {
			seen[seg.Speaker] = true
			names = append(names, seg.Speaker)
		}
	}
	return names
}
