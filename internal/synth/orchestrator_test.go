package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/duetaudio/duet-core/internal/engine"
	"github.com/duetaudio/duet-core/internal/ratelimit"
	"github.com/duetaudio/duet-core/internal/script"
	"github.com/duetaudio/duet-core/internal/wav"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// scriptedCaller answers per group index, optionally delaying to force a
// completion order different from the index order.
type scriptedCaller struct {
	audio map[string][]byte // transcript -> pcm
	delay map[string]time.Duration
	fail  map[string]error
}

func (c *scriptedCaller) Synthesize(ctx context.Context, req engine.Request) (string, error) {
	if d, ok := c.delay[req.Transcript]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err, ok := c.fail[req.Transcript]; ok {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(c.audio[req.Transcript]), nil
}

func groupsFor(speakers ...string) []script.Group {
	segments := make([]script.Segment, len(speakers))
	for i, s := range speakers {
		segments[i] = script.Segment{Speaker: s, Text: fmt.Sprintf("line %d", i)}
	}
	return script.BuildGroups(segments)
}

func TestGenerateOrdersByIndexNotCompletion(t *testing.T) {
	// Three groups: Kore+Puck, then Leda+Orus after a split, then Zephyr.
	groups := groupsFor("Kore", "Puck", "Leda", "Orus", "Zephyr")
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}

	caller := &scriptedCaller{
		audio: map[string][]byte{},
		delay: map[string]time.Duration{},
	}
	// Later groups finish first.
	for _, g := range groups {
		caller.audio[Transcript(g)] = []byte{byte(g.Index), byte(g.Index)}
		caller.delay[Transcript(g)] = time.Duration(len(groups)-g.Index) * 30 * time.Millisecond
	}

	o := NewOrchestrator(caller, ratelimit.New(1000, 16), newLogger())
	results, err := o.Generate(context.Background(), groups, "key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := Assemble(results)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	wantPCM := []byte{0, 0, 1, 1, 2, 2}
	if !bytes.Equal(out[44:], wantPCM) {
		t.Fatalf("payload not in group-index order: %v", out[44:])
	}
	f, err := wav.Parse(out)
	if err != nil {
		t.Fatalf("parse container: %v", err)
	}
	if f.DataSize != len(wantPCM) {
		t.Fatalf("container data size %d, expected %d", f.DataSize, len(wantPCM))
	}
}

func TestGenerateFailFast(t *testing.T) {
	groups := groupsFor("Kore", "Puck", "Leda", "Orus")
	caller := &scriptedCaller{
		audio: map[string][]byte{},
		fail:  map[string]error{},
	}
	for _, g := range groups {
		caller.audio[Transcript(g)] = []byte{1}
	}
	caller.fail[Transcript(groups[1])] = engine.ErrTimeout

	o := NewOrchestrator(caller, ratelimit.New(1000, 16), newLogger())
	results, err := o.Generate(context.Background(), groups, "key")
	if results != nil {
		t.Fatalf("expected no partial results, got %+v", results)
	}
	if err == nil {
		t.Fatal("expected error")
	}
	var ge *GroupError
	if !errors.As(err, &ge) || ge.Group != 1 {
		t.Fatalf("expected failure attributed to group 1, got %v", err)
	}
	if !errors.Is(err, engine.ErrTimeout) {
		t.Fatalf("expected underlying timeout, got %v", err)
	}
}

func TestGenerateReleasesSlotsOnAllPaths(t *testing.T) {
	groups := groupsFor("Kore", "Puck", "Leda", "Orus", "Zephyr", "Kore")
	caller := &scriptedCaller{
		audio: map[string][]byte{},
		fail:  map[string]error{},
	}
	for _, g := range groups {
		caller.audio[Transcript(g)] = []byte{1}
	}
	caller.fail[Transcript(groups[0])] = engine.ErrTransport

	limiter := ratelimit.New(1000, 2)
	o := NewOrchestrator(caller, limiter, newLogger())
	if _, err := o.Generate(context.Background(), groups, "key"); err == nil {
		t.Fatal("expected error")
	}
	if got := limiter.InFlight(); got != 0 {
		t.Fatalf("expected all slots released, %d still held", got)
	}

	// The limiter stays usable afterwards.
	caller.fail = map[string]error{}
	if _, err := o.Generate(context.Background(), groups, "key"); err != nil {
		t.Fatalf("second run should succeed: %v", err)
	}
}

func TestTranscriptFormat(t *testing.T) {
	g := script.Group{
		Segments: []script.Segment{
			{Speaker: "Kore", Text: "Hello."},
			{Speaker: "Puck", Text: "Hi!"},
			{Speaker: "Kore", Text: "Bye."},
		},
		Speakers: []string{"Kore", "Puck"},
	}
	want := "Kore: Hello.\nPuck: Hi!\nKore: Bye."
	if got := Transcript(g); got != want {
		t.Fatalf("transcript mismatch:\n got %q\nwant %q", got, want)
	}
	bindings := VoiceBindings(g)
	if len(bindings) != 2 || bindings[0].Speaker != "Kore" || bindings[1].Voice != "Puck" {
		t.Fatalf("unexpected bindings: %+v", bindings)
	}
}

func TestAssembleRejectsBadPayload(t *testing.T) {
	_, err := Assemble([]GroupResult{{Index: 0, AudioB64: "%%% not base64"}})
	if err == nil {
		t.Fatal("expected decode error")
	}
}
