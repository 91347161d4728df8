package vtsmotion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmotion struct {
	state EmotionState
}

func (s *stubEmotion) Snapshot() EmotionState { return s.state }

func neutralStub() *stubEmotion {
	return &stubEmotion{state: EmotionState{Label: "neutral", Intensity: 1, BaseSmile: 0.3}}
}

func TestSmoothedAxisApproachesAndSnaps(t *testing.T) {
	axis := &SmoothedAxis{Target: 1, Rate: 4, SnapEpsilon: 0.001}

	prev := axis.Current
	for i := 0; i < 200; i++ {
		axis.Advance(0.04)
		assert.GreaterOrEqual(t, axis.Current, prev, "approach must be monotonic")
		assert.LessOrEqual(t, axis.Current, 1.0, "approach must not overshoot")
		prev = axis.Current
	}
	assert.Equal(t, 1.0, axis.Current, "axis should snap exactly onto target")
}

func TestSmoothedAxisLargerGapsCloseFaster(t *testing.T) {
	near := &SmoothedAxis{Current: 0.9, Target: 1, Rate: 4, SnapEpsilon: 1e-6}
	far := &SmoothedAxis{Current: 0, Target: 1, Rate: 4, SnapEpsilon: 1e-6}

	nearBefore := near.Current
	farBefore := far.Current
	near.Advance(0.04)
	far.Advance(0.04)

	assert.Greater(t, far.Current-farBefore, near.Current-nearBefore,
		"a bigger gap must close with a bigger step")
}

func TestSmoothedAxisSlewCap(t *testing.T) {
	axis := &SmoothedAxis{Target: 10, Rate: 100, SnapEpsilon: 1e-6, MaxStep: 1}

	axis.Advance(0.1)
	assert.InDelta(t, 0.1, axis.Current, 1e-9, "step must respect the slew cap")
}

func TestIdleGeneratorDoesNotTouchMouthWhileSpeaking(t *testing.T) {
	a := NewAnimator(DefaultAnimatorConfig(), neutralStub())
	a.SetMode(ModeSpeaking)
	a.SetAxisTarget(AxisMouthOpen, 0.7)

	now := time.Now()
	for i := 0; i < 50; i++ {
		now = now.Add(40 * time.Millisecond)
		a.Tick(now)
	}

	assert.InDelta(t, 0.7, a.AxisCurrent(AxisMouthOpen), 0.05,
		"mouth must follow the lip-sync target, not the idle generator")
}

func TestIdleModeZerosMouth(t *testing.T) {
	a := NewAnimator(DefaultAnimatorConfig(), neutralStub())
	a.SetAxisTarget(AxisMouthOpen, 0.9)

	now := time.Now()
	for i := 0; i < 100; i++ {
		now = now.Add(40 * time.Millisecond)
		a.Tick(now)
	}

	assert.Less(t, a.AxisCurrent(AxisMouthOpen), 0.01,
		"idle mode must pull the mouth closed")
}

func TestLeavingSpeakingReleasesMouthAtZero(t *testing.T) {
	a := NewAnimator(DefaultAnimatorConfig(), neutralStub())
	a.SetMode(ModeSpeaking)
	a.SetAxisTarget(AxisMouthOpen, 0.8)

	now := time.Now()
	for i := 0; i < 20; i++ {
		now = now.Add(40 * time.Millisecond)
		a.Tick(now)
	}
	require.Greater(t, a.AxisCurrent(AxisMouthOpen), 0.5)

	a.SetMode(ModeIdle)
	for i := 0; i < 100; i++ {
		now = now.Add(40 * time.Millisecond)
		a.Tick(now)
	}
	assert.Less(t, a.AxisCurrent(AxisMouthOpen), 0.01)
}

func TestEyelidsStayInRange(t *testing.T) {
	cfg := DefaultAnimatorConfig()
	cfg.BlinkMin = 100 * time.Millisecond // blink often for coverage
	cfg.BlinkMax = 300 * time.Millisecond
	a := NewAnimator(cfg, neutralStub())

	now := time.Now()
	sawClosed := false
	for i := 0; i < 1500; i++ { // one simulated minute
		now = now.Add(40 * time.Millisecond)
		a.Tick(now)
		left := a.AxisCurrent(AxisEyeOpenLeft)
		right := a.AxisCurrent(AxisEyeOpenRight)
		assert.GreaterOrEqual(t, left, -0.001)
		assert.LessOrEqual(t, left, 1.001)
		assert.Equal(t, left, right, "eyelids blink together")
		if left < 0.5 {
			sawClosed = true
		}
	}
	assert.True(t, sawClosed, "expected at least one blink in a minute")
}

func TestPoseStaysWithinConfiguredRanges(t *testing.T) {
	cfg := DefaultAnimatorConfig()
	a := NewAnimator(cfg, neutralStub())

	now := time.Now()
	for i := 0; i < 2000; i++ {
		now = now.Add(40 * time.Millisecond)
		a.Tick(now)
		maxYaw := cfg.YawRange + cfg.NoiseAmplitude + 0.001
		yaw := a.AxisCurrent(AxisFaceAngleX)
		assert.GreaterOrEqual(t, yaw, -maxYaw)
		assert.LessOrEqual(t, yaw, maxYaw)
	}
}

func TestPoseKeepsMovingWhileSpeaking(t *testing.T) {
	a := NewAnimator(DefaultAnimatorConfig(), neutralStub())
	a.SetMode(ModeSpeaking)

	now := time.Now()
	var values []float64
	for i := 0; i < 500; i++ { // 20 simulated seconds
		now = now.Add(40 * time.Millisecond)
		a.Tick(now)
		values = append(values, a.AxisCurrent(AxisFaceAngleX))
	}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	assert.Greater(t, max-min, 0.1, "head must not freeze while talking")
}
