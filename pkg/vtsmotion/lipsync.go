package vtsmotion

import (
	"math"
	"math/rand"
	"time"
)

// ExtractorConfig tunes the mouth envelope extraction.
type ExtractorConfig struct {
	FrameInterval time.Duration

	BandLow   float64 // Hz
	BandHigh  float64 // Hz
	BandBins  int
	BandBlend float64 // band weight, remainder is raw RMS

	NoiseFloorWindow time.Duration
	NoiseFloorScale  float64
	Gain             float64

	Attack  float64
	Release float64

	OpenThreshold  float64
	CloseThreshold float64
	MinOpen        time.Duration // minimum dwell once open
	MinClose       time.Duration // minimum dwell once closed

	SilenceRMS    float64
	SilenceFrames int

	MicroClosureMin   time.Duration
	MicroClosureMax   time.Duration
	MicroClosureDepth float64
	MicroClosureLevel float64

	VariationLevel float64
	VariationMin   float64
	VariationMax   float64
}

func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		FrameInterval: 15 * time.Millisecond,

		BandLow:   300,
		BandHigh:  3400,
		BandBins:  16,
		BandBlend: 0.7,

		NoiseFloorWindow: 200 * time.Millisecond,
		NoiseFloorScale:  1.1,
		Gain:             2.2,

		Attack:  0.85,
		Release: 0.70,

		OpenThreshold:  0.20,
		CloseThreshold: 0.10,
		MinOpen:        50 * time.Millisecond,
		MinClose:       30 * time.Millisecond,

		SilenceRMS:    0.02,
		SilenceFrames: 3,

		MicroClosureMin:   100 * time.Millisecond,
		MicroClosureMax:   160 * time.Millisecond,
		MicroClosureDepth: 0.12,
		MicroClosureLevel: 0.30,

		VariationLevel: 0.4,
		VariationMin:   0.97,
		VariationMax:   1.06,
	}
}

// Extractor converts speech waveforms into mouth-openness envelopes.
// Extraction is pure per call, so the same buffer can be re-extracted
// after an interruption.
type Extractor struct {
	cfg ExtractorConfig
	rng *rand.Rand
}

func NewExtractor(cfg ExtractorConfig) *Extractor {
	return &Extractor{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FrameInterval returns the interval the frames were computed with;
// playback must consume them at the same pace.
func (e *Extractor) FrameInterval() time.Duration {
	return e.cfg.FrameInterval
}

// Extract computes the mouth envelope for a mono buffer. Output values
// are in [0, 1], one frame per FrameInterval.
func (e *Extractor) Extract(samples []float64, sampleRate int) []LipSyncFrame {
	if len(samples) == 0 || sampleRate <= 0 {
		return nil
	}

	frameLen := int(float64(sampleRate) * e.cfg.FrameInterval.Seconds())
	if frameLen < 1 {
		frameLen = 1
	}
	frameCount := len(samples) / frameLen
	if frameCount == 0 {
		return nil
	}

	window := hannWindow(frameLen)
	binFreqs := e.bandBinFreqs()

	// Raw per-frame level: banded spectral magnitude blended with RMS.
	raw := make([]float64, frameCount)
	rms := make([]float64, frameCount)
	for i := 0; i < frameCount; i++ {
		frame := samples[i*frameLen : (i+1)*frameLen]
		rms[i] = frameRMS(frame)
		band := bandLevel(frame, window, binFreqs, sampleRate)
		raw[i] = e.cfg.BandBlend*band + (1-e.cfg.BandBlend)*rms[i]
	}

	// Noise floor from the leading near-silence of the same buffer.
	floorFrames := int(e.cfg.NoiseFloorWindow / e.cfg.FrameInterval)
	if floorFrames < 1 {
		floorFrames = 1
	}
	if floorFrames > frameCount {
		floorFrames = frameCount
	}
	var floor float64
	for i := 0; i < floorFrames; i++ {
		floor += raw[i]
	}
	floor = floor / float64(floorFrames) * e.cfg.NoiseFloorScale

	// MinClose is the dwell before the gate may open again; MinOpen the
	// dwell before it may close. Opening is the faster of the two so
	// speech onsets read with minimal latency.
	openDwellFrames := framesFor(e.cfg.MinClose, e.cfg.FrameInterval)
	closeDwellFrames := framesFor(e.cfg.MinOpen, e.cfg.FrameInterval)

	frames := make([]LipSyncFrame, 0, frameCount)
	var (
		ema          float64
		open         bool
		aboveCount   int
		belowCount   int
		silentCount  int
		sinceClosure time.Duration
		nextClosure  = e.randDuration(e.cfg.MicroClosureMin, e.cfg.MicroClosureMax)
	)

	for i := 0; i < frameCount; i++ {
		level := clamp01((raw[i] - floor) * e.cfg.Gain)

		// Fast attack, slow release.
		if level > ema {
			ema += (level - ema) * e.cfg.Attack
		} else {
			ema += (level - ema) * e.cfg.Release
		}

		// Hysteresis gate: a transition needs the energy to hold past
		// the threshold for a minimum duration, so borderline frames
		// never cause flutter.
		if !open {
			if ema > e.cfg.OpenThreshold {
				aboveCount++
				if aboveCount >= openDwellFrames {
					open = true
					belowCount = 0
				}
			} else {
				aboveCount = 0
			}
		} else {
			if ema < e.cfg.CloseThreshold {
				belowCount++
				if belowCount >= closeDwellFrames {
					open = false
					aboveCount = 0
				}
			} else {
				belowCount = 0
			}
		}

		var v float64
		if open {
			v = clamp01(ema)
			if v > e.cfg.VariationLevel {
				v *= e.cfg.VariationMin + e.rng.Float64()*(e.cfg.VariationMax-e.cfg.VariationMin)
			}
			// Micro-closures fake consonant and syllable boundaries.
			sinceClosure += e.cfg.FrameInterval
			if v > e.cfg.MicroClosureLevel && sinceClosure >= nextClosure {
				v = math.Max(0, v-e.cfg.MicroClosureDepth)
				sinceClosure = 0
				nextClosure = e.randDuration(e.cfg.MicroClosureMin, e.cfg.MicroClosureMax)
			}
		}

		// Hard silence override beats the gate.
		if rms[i] < e.cfg.SilenceRMS {
			silentCount++
			if silentCount >= e.cfg.SilenceFrames {
				v = 0
				ema = 0
				open = false
				aboveCount = 0
				belowCount = 0
			}
		} else {
			silentCount = 0
		}

		frames = append(frames, LipSyncFrame{
			Mouth:  clamp01(v),
			Offset: time.Duration(i) * e.cfg.FrameInterval,
		})
	}

	return frames
}

func (e *Extractor) bandBinFreqs() []float64 {
	n := e.cfg.BandBins
	if n < 2 {
		n = 2
	}
	freqs := make([]float64, n)
	step := (e.cfg.BandHigh - e.cfg.BandLow) / float64(n-1)
	for i := range freqs {
		freqs[i] = e.cfg.BandLow + float64(i)*step
	}
	return freqs
}

func (e *Extractor) randDuration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(e.rng.Int63n(int64(hi-lo)))
}

func framesFor(d, interval time.Duration) int {
	n := int(math.Ceil(float64(d) / float64(interval)))
	if n < 1 {
		n = 1
	}
	return n
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func frameRMS(frame []float64) float64 {
	var sum float64
	for _, s := range frame {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// bandLevel estimates the RMS amplitude inside the speech band by
// evaluating the windowed DFT at a spread of in-band frequencies
// (Goertzel form, no full FFT needed for a handful of bins).
func bandLevel(frame, window, binFreqs []float64, sampleRate int) float64 {
	n := len(frame)
	var power float64
	for _, f := range binFreqs {
		if f >= float64(sampleRate)/2 {
			continue
		}
		omega := 2 * math.Pi * f / float64(sampleRate)
		coeff := 2 * math.Cos(omega)
		var s0, s1, s2 float64
		for i := 0; i < n; i++ {
			s0 = frame[i]*window[i] + coeff*s1 - s2
			s2 = s1
			s1 = s0
		}
		mag2 := s1*s1 + s2*s2 - coeff*s1*s2
		if mag2 < 0 {
			mag2 = 0
		}
		// Hann windowing halves the effective amplitude; 2/N recovers
		// the component amplitude from the Goertzel magnitude.
		amp := 2 * math.Sqrt(mag2) / (float64(n) * 0.5)
		power += amp * amp
	}
	return math.Sqrt(power / 2)
}
