// Package synth runs grouped engine calls concurrently under the shared rate
// limiter and reassembles their audio in narrative order.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/duetaudio/duet-core/internal/engine"
	"github.com/duetaudio/duet-core/internal/ratelimit"
	"github.com/duetaudio/duet-core/internal/script"
)

// GroupResult carries one group's transport-encoded audio. Index is the
// originating group's index and the only ordering key downstream.
type GroupResult struct {
	Index    int
	AudioB64 string
}

// GroupError reports which group's engine call failed.
type GroupError struct {
	Group int
	Err   error
}

func (e *GroupError) Error() string {
	return fmt.Sprintf("group %d: %v", e.Group, e.Err)
}

func (e *GroupError) Unwrap() error { return e.Err }

// Orchestrator issues one engine call per group. All groups run concurrently;
// the only cap on parallelism is the limiter's concurrency budget.
type Orchestrator struct {
	caller  engine.Caller
	limiter *ratelimit.Limiter
	log     *slog.Logger

	waitMS metric.Float64Histogram
}

func NewOrchestrator(caller engine.Caller, limiter *ratelimit.Limiter, log *slog.Logger) *Orchestrator {
	meter := otel.Meter("duet/synth")
	waitMS, _ := meter.Float64Histogram("duet.limiter.wait_ms",
		metric.WithDescription("Time groups spend waiting on the rate limiter"))

	return &Orchestrator{
		caller:  caller,
		limiter: limiter,
		log:     log.With(slog.String("component", "orchestrator")),
		waitMS:  waitMS,
	}
}

// Generate produces one result per group, ordered by group index. Semantics
// are fail-fast and all-or-nothing: if any call fails the whole request fails
// with the lowest failing group's error, and no partial results are returned.
// Units already in flight when another fails are left to finish; their output
// is discarded. Nothing is retried at this layer.
func (o *Orchestrator) Generate(ctx context.Context, groups []script.Group, credential string) ([]GroupResult, error) {
	results := make([]GroupResult, len(groups))
	errs := make([]error, len(groups))

	var wg sync.WaitGroup
	for _, g := range groups {
		wg.Add(1)
		go func(g script.Group) {
			defer wg.Done()
			audio, err := o.synthesizeGroup(ctx, g, credential)
			if err != nil {
				errs[g.Index] = err
				return
			}
			results[g.Index] = GroupResult{Index: g.Index, AudioB64: audio}
		}(g)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, &GroupError{Group: i, Err: err}
		}
	}
	return results, nil
}

// synthesizeGroup runs one unit of work: admit under the limiter, call the
// engine, release the slot on every path.
func (o *Orchestrator) synthesizeGroup(ctx context.Context, g script.Group, credential string) (string, error) {
	waitStart := time.Now()
	if err := o.limiter.Acquire(ctx); err != nil {
		return "", err
	}
	defer o.limiter.Release()

	waited := time.Since(waitStart)
	o.waitMS.Record(ctx, float64(waited.Milliseconds()))
	if waited > time.Second {
		o.log.Info("group waited on rate limiter",
			slog.Int("group", g.Index),
			slog.Duration("waited", waited))
	}

	return o.caller.Synthesize(ctx, engine.Request{
		Transcript: Transcript(g),
		Speakers:   VoiceBindings(g),
		Credential: credential,
	})
}

// Transcript renders a group's segments as "Speaker: text" lines in segment
// order.
func Transcript(g script.Group) string {
	var b strings.Builder
	for i, seg := range g.Segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(seg.Speaker)
		b.WriteString(": ")
		b.WriteString(seg.Text)
	}
	return b.String()
}

// VoiceBindings maps a group's speakers to engine voices, preserving first
// appearance order.
func VoiceBindings(g script.Group) []engine.SpeakerVoice {
	out := make([]engine.SpeakerVoice, 0, len(g.Speakers))
	for _, name := range g.Speakers {
		out = append(out, engine.SpeakerVoice{Speaker: name, Voice: script.EngineVoice(name)})
	}
	return out
}
