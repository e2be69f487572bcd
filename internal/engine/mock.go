package engine

import (
	"context"
	"encoding/base64"
)

type mockCaller struct {
	pcm []byte
}

// NewMockCaller returns a Caller that answers every request with the given
// PCM bytes, base64-encoded the way the real engine does.
func NewMockCaller(pcm []byte) Caller {
	return &mockCaller{pcm: pcm}
}

func (m *mockCaller) Synthesize(ctx context.Context, _ Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(m.pcm), nil
}
