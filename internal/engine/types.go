package engine

import (
	"context"
	"errors"
)

// SpeakerVoice binds a transcript speaker name to an engine prebuilt voice.
type SpeakerVoice struct {
	Speaker string
	Voice   string
}

// Request describes one synthesis call covering a single group. Transcript is
// the group's segments rendered as "Speaker: text" lines in narrative order;
// Speakers lists the group's voice bindings (at most two) in order of first
// appearance. Credential is forwarded to the engine untouched.
type Request struct {
	Transcript string
	Speakers   []SpeakerVoice
	Credential string
}

// Caller is the contract for producing one group's audio. The returned string
// is the engine's transport encoding of raw PCM (base64); decoding happens at
// assembly time.
type Caller interface {
	Synthesize(ctx context.Context, req Request) (string, error)
}

// Failure classes for a single engine call. Callers wrap these to decide how a
// whole generation request fails.
var (
	ErrTimeout   = errors.New("engine call timed out")
	ErrTransport = errors.New("engine unreachable")
	ErrResponse  = errors.New("engine response invalid")
)
