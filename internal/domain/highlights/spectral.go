package highlights

import (
	"errors"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	frameLength = 2048
	hopLength   = 512
)

var errDegenerateSpectrum = errors.New("degenerate spectrum")

// spectrum holds the FFT plan and scratch buffers reused across windows.
type spectrum struct {
	n      int
	fft    *fourier.FFT
	hann   []float64
	frame  []float64
	coeffs []complex128
}

func newSpectrum(n int) *spectrum {
	hann := make([]float64, n)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return &spectrum{
		n:      n,
		fft:    fourier.NewFFT(n),
		hann:   hann,
		frame:  make([]float64, n),
		coeffs: make([]complex128, n/2+1),
	}
}

// meanCentroid averages the magnitude-weighted frequency centroid over the
// sub-frames of x. Silent frames contribute 0. A window with no energy at all,
// or one that produces a non-finite result, is reported as degenerate.
func (sp *spectrum) meanCentroid(x []float64, sampleRate int) (float64, error) {
	if len(x) == 0 {
		return 0, errDegenerateSpectrum
	}

	var (
		sum    float64
		frames int
		voiced int
	)
	for off := 0; ; off += hopLength {
		end := off + sp.n
		if end > len(x) {
			if frames > 0 {
				break
			}
			// Shorter than a frame: analyze it zero-padded.
			end = len(x)
		}
		c, ok := sp.centroid(x[off:end], sampleRate)
		if ok {
			sum += c
			voiced++
		}
		frames++
		if end == len(x) {
			break
		}
	}

	if voiced == 0 {
		return 0, errDegenerateSpectrum
	}
	mean := sum / float64(frames)
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return 0, errDegenerateSpectrum
	}
	return mean, nil
}

func (sp *spectrum) centroid(x []float64, sampleRate int) (float64, bool) {
	for i := range sp.frame {
		if i < len(x) {
			sp.frame[i] = x[i] * sp.hann[i]
		} else {
			sp.frame[i] = 0
		}
	}
	sp.coeffs = sp.fft.Coefficients(sp.coeffs, sp.frame)

	var weighted, total float64
	binHz := float64(sampleRate) / float64(sp.n)
	for k, c := range sp.coeffs {
		mag := cmplx.Abs(c)
		weighted += float64(k) * binHz * mag
		total += mag
	}
	if total <= 0 {
		return 0, false
	}
	return weighted / total, true
}
