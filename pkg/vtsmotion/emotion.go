package vtsmotion

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// emotionSource lets the animator read the current emotion without
// sharing mutable state across goroutines.
type emotionSource interface {
	Snapshot() EmotionState
}

// sender is the fire-and-forget slice of Transport the controller
// needs for hotkey triggers.
type sender interface {
	Send(messageType string, data interface{}) error
}

type moodPreset struct {
	intensityScale float64
	smile          float64
	triggerScale   float64
	hotkeys        []string
}

var moodPresets = map[string]moodPreset{
	"neutral":   {intensityScale: 1.0, smile: 0.3, triggerScale: 0.5},
	"happy":     {intensityScale: 1.2, smile: 0.9, triggerScale: 1.2, hotkeys: []string{"Smile"}},
	"sad":       {intensityScale: 0.8, smile: 0.0, triggerScale: 0.9, hotkeys: []string{"Sad"}},
	"angry":     {intensityScale: 1.3, smile: 0.0, triggerScale: 1.0, hotkeys: []string{"Angry"}},
	"surprised": {intensityScale: 1.4, smile: 0.5, triggerScale: 1.1, hotkeys: []string{"Surprised"}},
	"thinking":  {intensityScale: 0.9, smile: 0.2, triggerScale: 0.6},
	"confused":  {intensityScale: 0.85, smile: 0.2, triggerScale: 0.6},
}

var moodSynonyms = map[string]string{
	"joy":      "happy",
	"joyful":   "happy",
	"excited":  "happy",
	"cheerful": "happy",
	"upset":    "sad",
	"down":     "sad",
	"crying":   "sad",
	"mad":      "angry",
	"furious":  "angry",
	"annoyed":  "angry",
	"shocked":  "surprised",
	"amazed":   "surprised",
	"curious":  "thinking",
	"pondering": "thinking",
	"puzzled":  "confused",
	"calm":     "neutral",
}

// EmotionControllerConfig tunes mood mapping and expression triggers.
type EmotionControllerConfig struct {
	SmileFloor        float64
	BaseTriggerChance float64
	SubtleChance      float64
	SubtleSmileBoost  float64
	SubtleDurationMin time.Duration
	SubtleDurationMax time.Duration
	FallbackMood      string
}

func DefaultEmotionControllerConfig() EmotionControllerConfig {
	return EmotionControllerConfig{
		SmileFloor:        0.2,
		BaseTriggerChance: 0.3,
		SubtleChance:      0.25,
		SubtleSmileBoost:  0.15,
		SubtleDurationMin: 1500 * time.Millisecond,
		SubtleDurationMax: 3 * time.Second,
		FallbackMood:      "neutral",
	}
}

// EmotionController maps coarse mood labels onto pose intensity and a
// base smile level, and occasionally fires discrete host-side
// expression hotkeys so mood changes never feel strictly binary.
type EmotionController struct {
	cfg       EmotionControllerConfig
	transport sender
	logger    *MotionLogger
	rng       *rand.Rand

	mu           sync.Mutex
	state        EmotionState
	overlayBoost float64
	overlayUntil time.Time
}

func NewEmotionController(cfg EmotionControllerConfig, transport sender, logger *MotionLogger) *EmotionController {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	c := &EmotionController{
		cfg:       cfg,
		transport: transport,
		logger:    logger.WithComponent("emotion"),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	c.state = c.buildState(cfg.FallbackMood, 0.5)
	return c
}

// Snapshot returns the current emotion for the animator tick, with any
// active smile overlay layered in.
func (c *EmotionController) Snapshot() EmotionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.state
	if time.Now().Before(c.overlayUntil) {
		state.BaseSmile = clamp01(state.BaseSmile + c.overlayBoost)
	}
	return state
}

// SetMood maps a label and intensity to a new emotion state. Unknown
// labels fall back to the configured neutral-positive default.
func (c *EmotionController) SetMood(label string, intensity float64) EmotionState {
	state := c.buildState(label, intensity)

	c.mu.Lock()
	c.state = state
	c.overlayUntil = time.Time{} // a mood change supersedes transient overlays
	c.mu.Unlock()

	c.logger.Debugf("Mood set to %s (intensity %.2f, smile %.2f)", state.Label, state.Intensity, state.BaseSmile)
	return state
}

func (c *EmotionController) buildState(label string, intensity float64) EmotionState {
	canonical := canonicalMood(label)
	preset, ok := moodPresets[canonical]
	if !ok {
		canonical = c.cfg.FallbackMood
		preset = moodPresets[canonical]
	}

	intensity = clamp01(intensity)
	smile := preset.smile * (0.5 + 0.5*intensity)
	if smile < c.cfg.SmileFloor {
		smile = c.cfg.SmileFloor
	}

	return EmotionState{
		Label:     canonical,
		Intensity: clamp(intensity*preset.intensityScale, 0.1, 1.5),
		BaseSmile: smile,
	}
}

func canonicalMood(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if canonical, ok := moodSynonyms[label]; ok {
		return canonical
	}
	return label
}

// MaybeTriggerExpression rolls for a discrete host expression matching
// the mood. When the roll fails, a smaller roll bumps the smile
// partway instead so there is still a visible reaction sometimes.
func (c *EmotionController) MaybeTriggerExpression(label string) {
	canonical := canonicalMood(label)
	preset, ok := moodPresets[canonical]
	if !ok {
		preset = moodPresets[c.cfg.FallbackMood]
	}

	jitter := 0.8 + c.rng.Float64()*0.4
	chance := c.cfg.BaseTriggerChance * preset.triggerScale * jitter

	if c.rng.Float64() < chance && len(preset.hotkeys) > 0 && c.transport != nil {
		hotkey := preset.hotkeys[c.rng.Intn(len(preset.hotkeys))]
		if err := c.transport.Send(MsgHotkeyTrigger, HotkeyTriggerData{HotkeyID: hotkey}); err != nil {
			c.logger.WithError(err).Debug("Hotkey trigger failed")
			return
		}
		c.logger.Debugf("Triggered expression hotkey %s for mood %s", hotkey, canonical)
		return
	}

	if c.rng.Float64() < c.cfg.SubtleChance {
		span := c.cfg.SubtleDurationMin
		if c.cfg.SubtleDurationMax > span {
			span += time.Duration(c.rng.Int63n(int64(c.cfg.SubtleDurationMax - c.cfg.SubtleDurationMin)))
		}
		c.mu.Lock()
		c.overlayBoost = c.cfg.SubtleSmileBoost
		c.overlayUntil = time.Now().Add(span)
		c.mu.Unlock()
		c.logger.Debugf("Subtle expression for mood %s (%.0fms)", canonical, span.Seconds()*1000)
	}
}
