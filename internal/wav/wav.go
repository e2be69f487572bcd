// Package wav synthesizes and parses the minimal RIFF/WAVE wrapper used for
// the engine's raw PCM output: a fixed 44-byte header followed by the payload.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	headerSize = 44

	// Fixed output format for a generation request: the engine emits mono
	// 16-bit signed little-endian samples at 24 kHz across all calls.
	SampleRate    = 24000
	Channels      = 1
	BitsPerSample = 16
)

// Format describes a parsed container header.
type Format struct {
	AudioFormat   int
	Channels      int
	SampleRate    int
	ByteRate      int
	BlockAlign    int
	BitsPerSample int
	DataSize      int
}

// Encode wraps raw PCM bytes in a canonical 44-byte header. The payload is
// appended verbatim with no padding or re-sampling.
func Encode(pcm []byte) []byte {
	byteRate := SampleRate * Channels * BitsPerSample / 8
	blockAlign := Channels * BitsPerSample / 8

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // linear PCM
	binary.Write(buf, binary.LittleEndian, uint16(Channels))
	binary.Write(buf, binary.LittleEndian, uint32(SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(BitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// Duration estimates playback length in seconds for a PCM payload of the
// fixed format.
func Duration(pcmBytes int) float64 {
	return float64(pcmBytes) / float64(SampleRate*Channels*BitsPerSample/8)
}

// Parse reads a 44-byte header back into a Format. Used by tests and by
// callers that want to sanity-check assembled output.
func Parse(data []byte) (Format, error) {
	if len(data) < headerSize {
		return Format{}, errors.New("container shorter than header")
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, errors.New("missing RIFF/WAVE magic")
	}
	if string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return Format{}, errors.New("unexpected chunk layout")
	}
	f := Format{
		AudioFormat:   int(binary.LittleEndian.Uint16(data[20:22])),
		Channels:      int(binary.LittleEndian.Uint16(data[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(data[24:28])),
		ByteRate:      int(binary.LittleEndian.Uint32(data[28:32])),
		BlockAlign:    int(binary.LittleEndian.Uint16(data[32:34])),
		BitsPerSample: int(binary.LittleEndian.Uint16(data[34:36])),
		DataSize:      int(binary.LittleEndian.Uint32(data[40:44])),
	}
	if total := int(binary.LittleEndian.Uint32(data[4:8])); total != 36+f.DataSize {
		return f, fmt.Errorf("total size %d does not match data size %d", total, f.DataSize)
	}
	return f, nil
}
