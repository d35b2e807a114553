package highlights

import (
	"errors"
	"fmt"
	"math"

	"github.com/forPelevin/vodclips/internal/types"
)

// Scorer slices a sample buffer into fixed windows and measures each one.
// WindowSize and StepSize are in seconds.
type Scorer struct {
	WindowSize float64
	StepSize   float64
}

// Scored is the Scorer output. CentroidFallbacks counts windows whose
// spectral centroid could not be computed and was recorded as 0.
type Scored struct {
	Segments          []types.AudioSegment
	CentroidFallbacks int
}

var ErrInvalidWindow = errors.New("invalid analysis window")

func (s Scorer) Validate() error {
	if !(s.WindowSize > 0) || math.IsInf(s.WindowSize, 0) {
		return fmt.Errorf("%w: window size must be > 0, got %v", ErrInvalidWindow, s.WindowSize)
	}
	if !(s.StepSize > 0) || math.IsInf(s.StepSize, 0) {
		return fmt.Errorf("%w: step size must be > 0, got %v", ErrInvalidWindow, s.StepSize)
	}
	return nil
}

// Score measures every window that fits fully inside samples. A trailing
// partial window is dropped, so a buffer shorter than one window yields no
// segments.
func (s Scorer) Score(samples []float64, sampleRate int) (Scored, error) {
	if err := s.Validate(); err != nil {
		return Scored{}, err
	}
	if sampleRate <= 0 {
		return Scored{}, fmt.Errorf("%w: sample rate must be > 0, got %d", ErrInvalidWindow, sampleRate)
	}
	windowSamples := int(math.Round(s.WindowSize * float64(sampleRate)))
	stepSamples := int(math.Round(s.StepSize * float64(sampleRate)))
	if windowSamples <= 0 || stepSamples <= 0 {
		return Scored{}, fmt.Errorf("%w: window %vs / step %vs shorter than one sample at %d Hz",
			ErrInvalidWindow, s.WindowSize, s.StepSize, sampleRate)
	}

	out := Scored{Segments: []types.AudioSegment{}}
	if len(samples) < windowSamples {
		return out, nil
	}
	out.Segments = make([]types.AudioSegment, 0, (len(samples)-windowSamples)/stepSamples+1)

	sp := newSpectrum(frameLength)
	for i, off := 0, 0; off+windowSamples <= len(samples); i, off = i+1, off+stepSamples {
		win := samples[off : off+windowSamples]

		centroid, err := sp.meanCentroid(win, sampleRate)
		if err != nil {
			centroid = 0
			out.CentroidFallbacks++
		}

		// Start times step exactly by StepSize; sample offsets carry the rounding.
		start := float64(i) * s.StepSize
		out.Segments = append(out.Segments, types.AudioSegment{
			StartTime:        start,
			EndTime:          start + s.WindowSize,
			Duration:         s.WindowSize,
			RMSScore:         rms(win),
			PeakAmplitude:    peak(win),
			SpectralCentroid: centroid,
			ZeroCrossingRate: zeroCrossingRate(win),
		})
	}
	return out, nil
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func peak(x []float64) float64 {
	var p float64
	for _, v := range x {
		if a := math.Abs(v); a > p {
			p = a
		}
	}
	return p
}

// zeroCrossingRate is the fraction of adjacent sample pairs that change sign.
// Zero counts as positive.
func zeroCrossingRate(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	crossings := 0
	prev := math.Signbit(x[0])
	for _, v := range x[1:] {
		cur := math.Signbit(v)
		if cur != prev {
			crossings++
		}
		prev = cur
	}
	return float64(crossings) / float64(len(x))
}
