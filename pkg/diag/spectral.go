package diag

import (
	"github.com/firewheel-audio/firewheel-go/pkg/dsp/analysis"
)

// SpectralReport is a single-buffer spectral and loudness snapshot,
// meant for the same control-side "inspect a render" use as
// BufferAnalyzer, but in the frequency and perceptual-loudness domain
// rather than the time domain.
type SpectralReport struct {
	PeakDB          float64
	RMSDB           float64
	IntegratedLUFS  float64
	PeakFrequencyHz float64
	PeakMagnitudeDB float64
	SpectrumDB      []float64
}

// AnalyzeSpectrum runs buffer through an FFT-backed spectrum analyzer
// plus peak/RMS/LUFS meters, all from pkg/dsp/analysis, and reports the
// combined result. fftSize should be a power of two no larger than
// len(buffer). The buffer is treated as mono: the LUFS meter is built
// with a channel count of 1.
func AnalyzeSpectrum(buffer []float32, sampleRate float64, fftSize int) SpectralReport {
	samples := make([]float64, len(buffer))
	for i, s := range buffer {
		samples[i] = float64(s)
	}

	var report SpectralReport

	peakMeter := analysis.NewPeakMeter(sampleRate)
	peakMeter.Process(samples)
	report.PeakDB = peakMeter.GetPeakDB()

	rmsMeter := analysis.NewRMSMeter(len(samples))
	rmsMeter.Process(samples)
	report.RMSDB = rmsMeter.GetRMSDB()

	lufsMeter := analysis.NewLUFSMeter(sampleRate, 1)
	lufsMeter.Process(samples)
	report.IntegratedLUFS = lufsMeter.GetIntegratedLUFS()

	sa := analysis.NewSpectrumAnalyzer(fftSize, sampleRate, analysis.HannWindow)
	sa.Process(samples)
	report.SpectrumDB = sa.GetSpectrumDB()
	report.PeakFrequencyHz, report.PeakMagnitudeDB = sa.GetPeakFrequency()

	return report
}
