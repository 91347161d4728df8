package vtsmotion

import (
	"math"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// MicConfig tunes the microphone level monitor.
type MicConfig struct {
	SampleRate int
	BufferSize int
	Gain       float64
	Smoothing  float64 // 0..1, higher follows the level faster
	DeviceID   *int
}

func NewMicConfig() *MicConfig {
	return &MicConfig{
		SampleRate: 16000,
		BufferSize: 512,
		Gain:       4.0,
		Smoothing:  0.4,
	}
}

// MicMonitor streams the default input device and reports a smoothed
// loudness level in [0, 1]. The engine uses it to make the avatar
// mouth react while listening to the user instead of playing back its
// own speech.
type MicMonitor struct {
	config *MicConfig
	logger *MotionLogger

	mu      sync.Mutex
	stream  *portaudio.Stream
	running bool
	level   float64
}

func NewMicMonitor(config *MicConfig, logger *MotionLogger) *MicMonitor {
	if config == nil {
		config = NewMicConfig()
	}
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return &MicMonitor{
		config: config,
		logger: logger.WithComponent("mic"),
	}
}

// Start opens the input stream. onLevel is called from the audio
// callback with the smoothed level and must not block.
func (m *MicMonitor) Start(onLevel func(float64)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return NewAudioDeviceError("mic monitor already running")
	}

	if err := portaudio.Initialize(); err != nil {
		return WrapError(err, ErrCodeAudioDevice)
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.config.SampleRate), m.config.BufferSize, func(in []float32) {
		var sum float64
		for _, v := range in {
			sum += float64(v) * float64(v)
		}
		rms := math.Sqrt(sum/float64(len(in))) * m.config.Gain

		m.mu.Lock()
		m.level += (clamp01(rms) - m.level) * m.config.Smoothing
		level := m.level
		m.mu.Unlock()

		if onLevel != nil {
			onLevel(level)
		}
	})
	if err != nil {
		portaudio.Terminate()
		return WrapError(err, ErrCodeAudioDevice)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return WrapError(err, ErrCodeAudioDevice)
	}

	m.stream = stream
	m.running = true
	m.logger.Infof("Mic monitor started at %d Hz", m.config.SampleRate)
	return nil
}

// Level returns the last smoothed loudness.
func (m *MicMonitor) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Stop closes the stream and releases the audio device.
func (m *MicMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	m.level = 0

	var firstErr error
	if m.stream != nil {
		if err := m.stream.Stop(); err != nil {
			firstErr = err
		}
		if err := m.stream.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.stream = nil
	}
	portaudio.Terminate()

	if firstErr != nil {
		return WrapError(firstErr, ErrCodeAudioDevice)
	}
	m.logger.Info("Mic monitor stopped")
	return nil
}
