package synth

import (
	"encoding/base64"
	"fmt"

	"github.com/duetaudio/duet-core/internal/wav"
)

// Assemble decodes each group's transport-encoded audio and concatenates the
// raw PCM in index order, gap-free, under one container header. The engine is
// assumed to emit a uniform sample format across a request, so no re-sampling
// or padding happens here.
func Assemble(results []GroupResult) ([]byte, error) {
	var pcm []byte
	for _, r := range results {
		raw, err := base64.StdEncoding.DecodeString(r.AudioB64)
		if err != nil {
			return nil, fmt.Errorf("decode group %d audio: %w", r.Index, err)
		}
		pcm = append(pcm, raw...)
	}
	return wav.Encode(pcm), nil
}
