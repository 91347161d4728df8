package vtsmotion

import "time"

// ConnectionState enum
type ConnectionState string

const (
	Disconnected   ConnectionState = "disconnected"
	Connecting     ConnectionState = "connecting"
	Authenticating ConnectionState = "authenticating"
	Ready          ConnectionState = "ready"
	Reconnecting   ConnectionState = "reconnecting"
)

// AnimationMode enum
type AnimationMode string

const (
	ModeIdle      AnimationMode = "idle"
	ModeListening AnimationMode = "listening"
	ModeThinking  AnimationMode = "thinking"
	ModeSpeaking  AnimationMode = "speaking"
)

// Axis names a logical animatable quantity, independent of whatever
// parameter names the loaded avatar model actually exposes.
type Axis string

const (
	AxisFaceAngleX    Axis = "face_angle_x"
	AxisFaceAngleY    Axis = "face_angle_y"
	AxisFaceAngleZ    Axis = "face_angle_z"
	AxisFacePositionX Axis = "face_position_x"
	AxisFacePositionY Axis = "face_position_y"
	AxisEyeLeftX      Axis = "eye_left_x"
	AxisEyeLeftY      Axis = "eye_left_y"
	AxisEyeRightX     Axis = "eye_right_x"
	AxisEyeRightY     Axis = "eye_right_y"
	AxisEyeOpenLeft   Axis = "eye_open_left"
	AxisEyeOpenRight  Axis = "eye_open_right"
	AxisMouthOpen     Axis = "mouth_open"
	AxisMouthSmile    Axis = "mouth_smile"

	// Engine-owned custom parameters, created on the host when absent.
	AxisSpeaking Axis = "speaking"
	AxisEnergy   Axis = "energy"
)

// AllAxes lists every logical axis the engine animates.
var AllAxes = []Axis{
	AxisFaceAngleX, AxisFaceAngleY, AxisFaceAngleZ,
	AxisFacePositionX, AxisFacePositionY,
	AxisEyeLeftX, AxisEyeLeftY, AxisEyeRightX, AxisEyeRightY,
	AxisEyeOpenLeft, AxisEyeOpenRight,
	AxisMouthOpen, AxisMouthSmile,
	AxisSpeaking, AxisEnergy,
}

// ParameterDescriptor maps a logical axis to a host parameter with bounds.
type ParameterDescriptor struct {
	Logical  Axis
	HostName string
	Min      float64
	Max      float64
	Default  float64
	Fallback bool // host name assumed, not reported by the model
}

// LipSyncFrame is one sample of the mouth-openness envelope.
type LipSyncFrame struct {
	Mouth  float64
	Offset time.Duration
}

// EmotionState holds the current coarse mood and how strongly it
// scales randomized motion.
type EmotionState struct {
	Label     string
	Intensity float64
	BaseSmile float64
}

// MotionError struct
type MotionError struct {
	Message   string
	Code      string
	Timestamp float64
	Details   map[string]interface{}
}

func (e *MotionError) Error() string {
	return e.Message
}

func NewMotionError(message, code string) *MotionError {
	return &MotionError{
		Message:   message,
		Code:      code,
		Timestamp: float64(time.Now().UnixMilli()),
	}
}

// EngineStatus is a diagnostic snapshot for CLI surfaces.
type EngineStatus struct {
	State          ConnectionState
	Mode           AnimationMode
	ParameterCount int
	Mood           string
	LastSend       time.Time
	LastTick       time.Time

	SentUpdates    int64
	DroppedUpdates int64
	SpeechCount    int64
	MoodChanges    int64
	LoopRestarts   int64
}

// Handler types
type EventHandler func(*Envelope)
type ConnectionHandler func(ConnectionState)
type ErrorHandler func(*MotionError)
