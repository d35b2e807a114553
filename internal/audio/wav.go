// Package audio decodes the persisted WAV artifact into a mono sample buffer
// normalized to [-1, 1].
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

const streamBlock = 4096

// Samples is a mono PCM buffer.
type Samples struct {
	Data       []float64
	SampleRate int
}

// Duration in seconds.
func (s Samples) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Data)) / float64(s.SampleRate)
}

// Decode reads a PCM WAV stream and averages its channels.
func Decode(r io.Reader) (Samples, error) {
	streamer, format, err := wav.Decode(r)
	if err != nil {
		return Samples{}, fmt.Errorf("decode wav: %w", err)
	}
	defer func() { _ = streamer.Close() }()

	if format.SampleRate <= 0 {
		return Samples{}, errors.New("decode wav: invalid sample rate")
	}

	out := Samples{SampleRate: int(format.SampleRate)}
	if n := streamer.Len(); n > 0 {
		out.Data = make([]float64, 0, n)
	}
	buf := make([][2]float64, streamBlock)
	for {
		n, ok := streamer.Stream(buf)
		for _, frame := range buf[:n] {
			out.Data = append(out.Data, downmix(frame, format))
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return Samples{}, fmt.Errorf("decode wav: %w", err)
	}
	return out, nil
}

func DecodeFile(path string) (Samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return Samples{}, err
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

func downmix(frame [2]float64, format beep.Format) float64 {
	if format.NumChannels == 1 {
		return frame[0]
	}
	return (frame[0] + frame[1]) / 2
}
