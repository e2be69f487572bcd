package script

import "testing"

func segs(speakers ...string) []Segment {
	out := make([]Segment, len(speakers))
	for i, s := range speakers {
		out[i] = Segment{Speaker: s, Text: "line"}
	}
	return out
}

func TestBuildGroupsThirdSpeakerSplits(t *testing.T) {
	groups := BuildGroups(segs("Aoede", "Aoede", "Puck", "Charon", "Puck"))
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(groups), groups)
	}
	if len(groups[0].Segments) != 3 {
		t.Fatalf("expected first group to hold 3 segments, got %+v", groups[0])
	}
	if len(groups[0].Speakers) != 2 || groups[0].Speakers[0] != "Aoede" || groups[0].Speakers[1] != "Puck" {
		t.Fatalf("unexpected first group speakers: %v", groups[0].Speakers)
	}
	if groups[1].Segments[0].Speaker != "Charon" {
		t.Fatalf("second group must start at the third distinct speaker, got %+v", groups[1])
	}
	if len(groups[1].Speakers) != 2 || groups[1].Speakers[0] != "Charon" || groups[1].Speakers[1] != "Puck" {
		t.Fatalf("unexpected second group speakers: %v", groups[1].Speakers)
	}
}

func TestBuildGroupsInvariants(t *testing.T) {
	input := segs("Kore", "Puck", "Kore", "Leda", "Orus", "Leda", "Kore", "Kore", "Zephyr")
	groups := BuildGroups(input)

	var flattened []Segment
	for i, g := range groups {
		if g.Index != i {
			t.Fatalf("group %d has index %d", i, g.Index)
		}
		if len(g.Speakers) == 0 || len(g.Speakers) > 2 {
			t.Fatalf("group %d violates speaker bound: %v", i, g.Speakers)
		}
		flattened = append(flattened, g.Segments...)
	}
	if len(flattened) != len(input) {
		t.Fatalf("expected %d segments after flattening, got %d", len(input), len(flattened))
	}
	for i := range input {
		if flattened[i] != input[i] {
			t.Fatalf("segment %d reordered: expected %+v, got %+v", i, input[i], flattened[i])
		}
	}
}

func TestBuildGroupsSinglePair(t *testing.T) {
	groups := BuildGroups(segs("Kore", "Puck", "Kore", "Puck"))
	if len(groups) != 1 {
		t.Fatalf("two speakers must fit one group, got %+v", groups)
	}
}

func TestBuildGroupsEmpty(t *testing.T) {
	if groups := BuildGroups(nil); groups != nil {
		t.Fatalf("expected no groups for empty input, got %+v", groups)
	}
}

func TestDistinctSpeakers(t *testing.T) {
	names := DistinctSpeakers(segs("Puck", "Kore", "Puck", "Leda"))
	if len(names) != 3 || names[0] != "Puck" || names[1] != "Kore" || names[2] != "Leda" {
		t.Fatalf("unexpected distinct speakers: %v", names)
	}
}
