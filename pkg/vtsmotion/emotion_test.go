package vtsmotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	messages []string
	payloads []interface{}
}

func (f *fakeSender) Send(messageType string, data interface{}) error {
	f.messages = append(f.messages, messageType)
	f.payloads = append(f.payloads, data)
	return nil
}

func newTestEmotions(sender sender) *EmotionController {
	return NewEmotionController(DefaultEmotionControllerConfig(), sender, nil)
}

func TestNeutralMoodKeepsSmileFloor(t *testing.T) {
	c := newTestEmotions(nil)

	state := c.SetMood("neutral", 0.5)
	assert.GreaterOrEqual(t, state.BaseSmile, 0.2, "smile must never drop below the floor")
	assert.Equal(t, "neutral", state.Label)
}

func TestSadMoodStillSmilesALittle(t *testing.T) {
	c := newTestEmotions(nil)

	state := c.SetMood("sad", 1.0)
	assert.GreaterOrEqual(t, state.BaseSmile, 0.2)
	assert.Less(t, state.Intensity, 1.0, "sad damps motion")
}

func TestMoodSynonyms(t *testing.T) {
	c := newTestEmotions(nil)

	assert.Equal(t, "happy", c.SetMood("joyful", 0.8).Label)
	assert.Equal(t, "happy", c.SetMood("excited", 0.8).Label)
	assert.Equal(t, "angry", c.SetMood("furious", 0.8).Label)
	assert.Equal(t, "thinking", c.SetMood("curious", 0.8).Label)
	assert.Equal(t, "surprised", c.SetMood("Shocked", 0.8).Label)
}

func TestUnknownMoodFallsBack(t *testing.T) {
	c := newTestEmotions(nil)

	state := c.SetMood("flabbergasted", 0.8)
	assert.Equal(t, "neutral", state.Label)
	assert.GreaterOrEqual(t, state.BaseSmile, 0.2)
}

func TestHappyRaisesIntensityAndSmile(t *testing.T) {
	c := newTestEmotions(nil)

	neutral := c.SetMood("neutral", 0.8)
	happy := c.SetMood("happy", 0.8)
	assert.Greater(t, happy.Intensity, neutral.Intensity)
	assert.Greater(t, happy.BaseSmile, neutral.BaseSmile)
}

func TestIntensityIsClamped(t *testing.T) {
	c := newTestEmotions(nil)

	state := c.SetMood("happy", 25)
	assert.LessOrEqual(t, state.Intensity, 1.5)

	state = c.SetMood("sad", -3)
	assert.GreaterOrEqual(t, state.Intensity, 0.1)
}

func TestMaybeTriggerExpressionSendsOnlyHotkeys(t *testing.T) {
	sender := &fakeSender{}
	c := newTestEmotions(sender)
	c.SetMood("happy", 1.0)

	for i := 0; i < 200; i++ {
		c.MaybeTriggerExpression("happy")
	}

	require.NotEmpty(t, sender.messages, "with 200 rolls at ~30%% some triggers must fire")
	for i, mt := range sender.messages {
		assert.Equal(t, MsgHotkeyTrigger, mt)
		data, ok := sender.payloads[i].(HotkeyTriggerData)
		require.True(t, ok)
		assert.Equal(t, "Smile", data.HotkeyID)
	}
}

func TestMaybeTriggerExpressionSubtlePathBumpsSmile(t *testing.T) {
	// thinking has no hotkeys, so only the subtle path can react.
	c := newTestEmotions(nil)
	before := c.SetMood("thinking", 0.5).BaseSmile

	bumped := false
	for i := 0; i < 200 && !bumped; i++ {
		c.MaybeTriggerExpression("thinking")
		if c.Snapshot().BaseSmile > before {
			bumped = true
		}
	}
	assert.True(t, bumped, "subtle reaction should fire within 200 rolls")
}
