package audio

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// butterworthQ gives a maximally flat passband for a single section.
const butterworthQ = 1 / math.Sqrt2

// newPreFilter builds the low-pass run over captured audio before pitch
// detection. State carries across ProcessBlock calls so a stream can be
// filtered hop by hop. A cutoff outside (0, Nyquist) passes audio through.
func newPreFilter(cutoff, sampleRate float64) *biquad.Section {
	if sampleRate <= 0 || !(cutoff > 0) || cutoff >= sampleRate/2 || math.IsInf(cutoff, 0) {
		return biquad.NewSection(biquad.Coefficients{B0: 1})
	}
	return biquad.NewSection(design.Lowpass(cutoff, butterworthQ, sampleRate))
}
