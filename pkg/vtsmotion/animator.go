package vtsmotion

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// SmoothedAxis advances a value toward its target with an exponential
// approach, so large gaps close faster without a linear speed ceiling
// that stalls right before arrival.
type SmoothedAxis struct {
	Current     float64
	Target      float64
	Rate        float64 // approach constant, 1/s
	SnapEpsilon float64
	MaxStep     float64 // per-second slew cap, 0 disables
}

// Advance moves Current toward Target for a dt-second step.
func (a *SmoothedAxis) Advance(dt float64) {
	delta := a.Target - a.Current
	if math.Abs(delta) <= a.SnapEpsilon {
		a.Current = a.Target
		return
	}
	step := delta * (1 - math.Exp(-a.Rate*dt))
	if a.MaxStep > 0 {
		limit := a.MaxStep * dt
		if step > limit {
			step = limit
		} else if step < -limit {
			step = -limit
		}
	}
	a.Current += step
}

// AnimatorConfig tunes the procedural idle motion.
type AnimatorConfig struct {
	WaypointMin      time.Duration
	WaypointMax      time.Duration
	ThinkWaypointMin time.Duration
	ThinkWaypointMax time.Duration
	GazeMin          time.Duration
	GazeMax          time.Duration

	BlinkMin           time.Duration
	BlinkMax           time.Duration
	BlinkDurationMin   time.Duration
	BlinkDurationMax   time.Duration
	BlinkClusterChance float64
	BlinkClusterGapMin time.Duration
	BlinkClusterGapMax time.Duration

	YawRange   float64
	PitchRange float64
	RollRange  float64
	SwayRange  float64
	GazeRangeX float64
	GazeRangeY float64

	NoiseAmplitude float64
	NoiseSpeed     float64

	BreathRate      float64 // Hz
	BreathAmplitude float64

	SpeakingScale float64
}

func DefaultAnimatorConfig() AnimatorConfig {
	return AnimatorConfig{
		WaypointMin:      2500 * time.Millisecond,
		WaypointMax:      5 * time.Second,
		ThinkWaypointMin: 1500 * time.Millisecond,
		ThinkWaypointMax: 3 * time.Second,
		GazeMin:          800 * time.Millisecond,
		GazeMax:          2 * time.Second,

		BlinkMin:           1200 * time.Millisecond,
		BlinkMax:           3500 * time.Millisecond,
		BlinkDurationMin:   140 * time.Millisecond,
		BlinkDurationMax:   240 * time.Millisecond,
		BlinkClusterChance: 0.12,
		BlinkClusterGapMin: 200 * time.Millisecond,
		BlinkClusterGapMax: 400 * time.Millisecond,

		YawRange:   15,
		PitchRange: 8,
		RollRange:  10,
		SwayRange:  3,
		GazeRangeX: 0.8,
		GazeRangeY: 0.5,

		NoiseAmplitude: 1.5,
		NoiseSpeed:     0.35,

		BreathRate:      0.15,
		BreathAmplitude: 0.5,

		SpeakingScale: 0.5,
	}
}

// Animator owns one SmoothedAxis per logical axis and drives idle
// motion: random pose waypoints, independent gaze shifts, blinks,
// breathing and coherent drift. While speaking, the pose axes keep a
// reduced version of this variation, but the mouth axes are left alone
// for the lip-sync task so there is never more than one writer on
// them per tick.
type Animator struct {
	cfg     AnimatorConfig
	emotion emotionSource
	rng     *rand.Rand

	mu   sync.Mutex
	axes map[Axis]*SmoothedAxis
	mode AnimationMode

	start    time.Time
	lastTick time.Time

	nextWaypoint time.Time
	nextGaze     time.Time

	nextBlink     time.Time
	blinkActive   bool
	blinkStart    time.Time
	blinkDuration time.Duration
	pendingBlinks int

	yawBase, pitchBase, rollBase float64
	swayBase                     float64

	yawNoise, pitchNoise, rollNoise noiseField
}

func NewAnimator(cfg AnimatorConfig, emotion emotionSource) *Animator {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	a := &Animator{
		cfg:        cfg,
		emotion:    emotion,
		rng:        rng,
		axes:       make(map[Axis]*SmoothedAxis, len(AllAxes)),
		mode:       ModeIdle,
		yawNoise:   newNoiseField(rng.Float64() * 100),
		pitchNoise: newNoiseField(rng.Float64() * 100),
		rollNoise:  newNoiseField(rng.Float64() * 100),
	}

	for _, axis := range AllAxes {
		a.axes[axis] = &SmoothedAxis{Rate: 4, SnapEpsilon: 1e-4}
	}
	// Eyelids move fast so blinks stay crisp; the mouth follows the
	// lip-sync envelope nearly unfiltered.
	a.axes[AxisEyeOpenLeft].Rate = 35
	a.axes[AxisEyeOpenRight].Rate = 35
	a.axes[AxisEyeOpenLeft].Current = 1
	a.axes[AxisEyeOpenRight].Current = 1
	a.axes[AxisEyeOpenLeft].Target = 1
	a.axes[AxisEyeOpenRight].Target = 1
	a.axes[AxisMouthOpen].Rate = 25
	a.axes[AxisEyeLeftX].Rate = 6
	a.axes[AxisEyeLeftY].Rate = 6
	a.axes[AxisEyeRightX].Rate = 6
	a.axes[AxisEyeRightY].Rate = 6

	return a
}

// Mode returns the current animation mode.
func (a *Animator) Mode() AnimationMode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// SetMode switches the animation mode. Leaving ModeSpeaking zeroes the
// mouth so a cancelled utterance never leaves it half open.
func (a *Animator) SetMode(mode AnimationMode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == mode {
		return
	}
	if a.mode == ModeSpeaking {
		a.axes[AxisMouthOpen].Target = 0
	}
	a.mode = mode
	// Force a prompt waypoint so the pose visibly reacts to the change.
	a.nextWaypoint = time.Time{}
}

// SetAxisTarget lets an external producer (lip-sync task, emotion
// controller, mic monitor) drive one axis directly.
func (a *Animator) SetAxisTarget(axis Axis, value float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ax, ok := a.axes[axis]; ok {
		ax.Target = value
	}
}

// AxisCurrent returns the current smoothed value of one axis.
func (a *Animator) AxisCurrent(axis Axis) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ax, ok := a.axes[axis]; ok {
		return ax.Current
	}
	return 0
}

// Values returns a snapshot of every axis value for the scheduler.
func (a *Animator) Values() map[Axis]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[Axis]float64, len(a.axes))
	for axis, ax := range a.axes {
		out[axis] = ax.Current
	}
	return out
}

// Tick advances the whole rig by one animation frame.
func (a *Animator) Tick(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.start.IsZero() {
		a.start = now
		a.lastTick = now
	}
	dt := now.Sub(a.lastTick).Seconds()
	if dt <= 0 {
		dt = 1e-3
	}
	a.lastTick = now
	t := now.Sub(a.start).Seconds()

	intensity := 1.0
	baseSmile := 0.0
	if a.emotion != nil {
		es := a.emotion.Snapshot()
		intensity = es.Intensity
		baseSmile = es.BaseSmile
	}
	scale := intensity
	if a.mode == ModeSpeaking {
		scale *= a.cfg.SpeakingScale
	}

	a.updateWaypoints(now, scale)
	a.updateGaze(now, scale)
	a.updateBlink(now)

	// Coherent drift keeps the head alive between waypoints.
	nt := t * a.cfg.NoiseSpeed
	a.axes[AxisFaceAngleX].Target = a.yawBase + a.yawNoise.at(nt)*a.cfg.NoiseAmplitude*scale
	a.axes[AxisFaceAngleY].Target = a.pitchBase + a.pitchNoise.at(nt)*a.cfg.NoiseAmplitude*scale
	a.axes[AxisFaceAngleZ].Target = a.rollBase + a.rollNoise.at(nt)*a.cfg.NoiseAmplitude*0.6*scale
	a.axes[AxisFacePositionX].Target = a.swayBase

	// Breathing rides on vertical position regardless of mode.
	a.axes[AxisFacePositionY].Target = math.Sin(2*math.Pi*a.cfg.BreathRate*t) * a.cfg.BreathAmplitude

	if a.mode == ModeSpeaking {
		// Speech-synced head bob: louder mouth, faster and wider nod.
		amp := clamp01(a.axes[AxisMouthOpen].Current)
		a.axes[AxisFaceAngleX].Target += math.Sin(t*(2+2*amp)) * (1.5 + 2*amp)
	}

	a.axes[AxisSpeaking].Target = 0
	if a.mode == ModeSpeaking {
		a.axes[AxisSpeaking].Target = 1
	}
	a.axes[AxisEnergy].Target = clamp01(intensity / 1.5)

	// Mouth axes belong to the lip-sync task while speaking and to the
	// mic monitor while listening.
	if a.mode == ModeIdle || a.mode == ModeThinking {
		a.axes[AxisMouthOpen].Target = 0
	}
	if a.mode != ModeSpeaking {
		a.axes[AxisMouthSmile].Target = baseSmile
	}

	for _, ax := range a.axes {
		ax.Advance(dt)
	}
}

func (a *Animator) updateWaypoints(now time.Time, scale float64) {
	if now.Before(a.nextWaypoint) {
		return
	}
	a.yawBase = a.randRange(-a.cfg.YawRange, a.cfg.YawRange) * scale
	a.pitchBase = a.randRange(-a.cfg.PitchRange, a.cfg.PitchRange) * scale
	a.rollBase = a.randRange(-a.cfg.RollRange, a.cfg.RollRange) * scale
	a.swayBase = a.randRange(-a.cfg.SwayRange, a.cfg.SwayRange) * scale * 0.6

	lo, hi := a.cfg.WaypointMin, a.cfg.WaypointMax
	if a.mode == ModeThinking {
		lo, hi = a.cfg.ThinkWaypointMin, a.cfg.ThinkWaypointMax
	}
	a.nextWaypoint = now.Add(a.randDuration(lo, hi))
}

func (a *Animator) updateGaze(now time.Time, scale float64) {
	if now.Before(a.nextGaze) {
		return
	}
	gx := a.randRange(-a.cfg.GazeRangeX, a.cfg.GazeRangeX) * scale
	gy := a.randRange(-a.cfg.GazeRangeY, a.cfg.GazeRangeY) * scale
	a.axes[AxisEyeLeftX].Target = gx
	a.axes[AxisEyeRightX].Target = gx
	a.axes[AxisEyeLeftY].Target = gy
	a.axes[AxisEyeRightY].Target = gy
	a.nextGaze = now.Add(a.randDuration(a.cfg.GazeMin, a.cfg.GazeMax))
}

func (a *Animator) updateBlink(now time.Time) {
	if a.blinkActive {
		p := float64(now.Sub(a.blinkStart)) / float64(a.blinkDuration)
		if p >= 1 {
			a.blinkActive = false
			a.setEyelids(1)
			if a.pendingBlinks > 0 {
				a.pendingBlinks--
				a.nextBlink = now.Add(a.randDuration(a.cfg.BlinkClusterGapMin, a.cfg.BlinkClusterGapMax))
			} else {
				a.nextBlink = now.Add(a.randDuration(a.cfg.BlinkMin, a.cfg.BlinkMax))
			}
			return
		}
		// Parabolic profile: fully closed at the midpoint.
		openness := 1 - 4*p*(1-p)
		a.setEyelids(clamp01(openness))
		return
	}

	if a.nextBlink.IsZero() {
		a.nextBlink = now.Add(a.randDuration(a.cfg.BlinkMin, a.cfg.BlinkMax))
		return
	}
	if now.Before(a.nextBlink) {
		return
	}

	a.blinkActive = true
	a.blinkStart = now
	a.blinkDuration = a.randDuration(a.cfg.BlinkDurationMin, a.cfg.BlinkDurationMax)
	if a.pendingBlinks == 0 && a.rng.Float64() < a.cfg.BlinkClusterChance {
		a.pendingBlinks = 1 + a.rng.Intn(3)
	}
}

func (a *Animator) setEyelids(openness float64) {
	a.axes[AxisEyeOpenLeft].Target = openness
	a.axes[AxisEyeOpenRight].Target = openness
}

func (a *Animator) randRange(lo, hi float64) float64 {
	return lo + a.rng.Float64()*(hi-lo)
}

func (a *Animator) randDuration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(a.rng.Int63n(int64(hi-lo)))
}
