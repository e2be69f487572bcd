// Package speech ties the generation pipeline together: parse annotated text,
// group by voice pair, dispatch groups under the rate limiter, and assemble
// the final audio container.
package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/duetaudio/duet-core/internal/history"
	"github.com/duetaudio/duet-core/internal/script"
	"github.com/duetaudio/duet-core/internal/synth"
	"github.com/duetaudio/duet-core/internal/wav"
)

// Output formats for the assembled audio.
const (
	FormatBinary = "binary"
	FormatBase64 = "base64"
)

// Request is one generation operation. Credential is forwarded to the engine
// untouched; an empty credential falls back to the configured key upstream.
type Request struct {
	Text       string
	Credential string
	Format     string
	Source     string // http or bus, for the job record
}

// Result carries the assembled audio and request metadata.
type Result struct {
	Audio           []byte // container bytes; nil when Format is base64
	AudioBase64     string // set when Format is base64
	Groups          int
	Speakers        int
	DurationSeconds float64
}

// Service runs generation requests and records them in the job history.
type Service struct {
	orch *synth.Orchestrator
	jobs *history.Store
	log  *slog.Logger

	requests   metric.Int64Counter
	groupsPer  metric.Int64Histogram
	durationMS metric.Float64Histogram
}

func NewService(orch *synth.Orchestrator, jobs *history.Store, log *slog.Logger) *Service {
	meter := otel.Meter("duet/speech")
	requests, _ := meter.Int64Counter("duet.generation.requests",
		metric.WithDescription("Generation requests by outcome"))
	groupsPer, _ := meter.Int64Histogram("duet.generation.groups",
		metric.WithDescription("Engine call groups per request"))
	durationMS, _ := meter.Float64Histogram("duet.generation.duration_ms",
		metric.WithDescription("End-to-end generation latency"))

	return &Service{
		orch:       orch,
		jobs:       jobs,
		log:        log.With(slog.String("component", "speech")),
		requests:   requests,
		groupsPer:  groupsPer,
		durationMS: durationMS,
	}
}

// Generate runs the full pipeline. On failure the returned error is always a
// *Error carrying the taxonomy kind and, for engine failures, the failing
// group index.
func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	res, err := s.generate(ctx, req)
	s.finish(ctx, req, res, err, time.Since(started))
	return res, err
}

func (s *Service) generate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, validationError(errors.New("text is required"))
	}
	switch req.Format {
	case FormatBinary, FormatBase64:
	case "":
		req.Format = FormatBinary
	default:
		return Result{}, validationError(errors.New("format must be binary or base64"))
	}

	segments, err := script.Parse(req.Text)
	if err != nil {
		return Result{}, classify(err)
	}
	groups := script.BuildGroups(segments)
	speakers := script.DistinctSpeakers(segments)

	s.log.Info("dispatching generation",
		slog.Int("segments", len(segments)),
		slog.Int("groups", len(groups)),
		slog.Int("speakers", len(speakers)))

	results, err := s.orch.Generate(ctx, groups, req.Credential)
	if err != nil {
		return Result{}, classify(err)
	}

	audio, err := synth.Assemble(results)
	if err != nil {
		return Result{}, classify(err)
	}

	out := Result{
		Groups:          len(groups),
		Speakers:        len(speakers),
		DurationSeconds: wav.Duration(len(audio) - 44),
	}
	if req.Format == FormatBase64 {
		out.AudioBase64 = base64.StdEncoding.EncodeToString(audio)
	} else {
		out.Audio = audio
	}
	return out, nil
}

// finish emits metrics and the job record for one request.
func (s *Service) finish(ctx context.Context, req Request, res Result, err error, elapsed time.Duration) {
	outcome := "completed"
	job := history.Job{
		Source:          req.Source,
		Status:          outcome,
		Groups:          res.Groups,
		Speakers:        res.Speakers,
		TextChars:       len(req.Text),
		DurationSeconds: res.DurationSeconds,
	}
	if err != nil {
		outcome = "failed"
		job.Status = outcome
		job.Error = err.Error()
	}

	s.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if err == nil {
		s.groupsPer.Record(ctx, int64(res.Groups))
	}
	s.durationMS.Record(ctx, float64(elapsed.Milliseconds()))

	if s.jobs != nil {
		if recErr := s.jobs.Append(ctx, job); recErr != nil {
			s.log.Warn("failed to record job", slog.String("error", recErr.Error()))
		}
	}
}
