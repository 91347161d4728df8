// Package vtsmotion is a real-time avatar motion and lip-sync engine
// for VTube Studio style host applications.
//
// # Overview
//
// The engine maintains a persistent authenticated WebSocket session
// with the avatar host and continuously streams parameter updates that
// drive pose, gaze, blinking, breathing, expression and mouth shape:
//   - Transport with token handshake, auto-reconnect and backoff
//   - Parameter catalog with fuzzy logical-to-host name mapping
//   - Procedural pose animator (waypoints, gaze, blinks, breathing,
//     coherent drift)
//   - Lip-sync envelope extraction from PCM speech audio
//   - Mood mapping with probabilistic expression hotkey triggers
//   - Rate-limited batched delivery with a freeze watchdog
//
// # Quick Start
//
//	config := vtsmotion.NewConfig()
//	engine := vtsmotion.NewEngine(config, nil)
//
//	if err := engine.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Stop()
//
//	engine.SetMood("happy", 0.8)
//
//	samples, rate, err := vtsmotion.LoadWAVFile("reply.wav")
//	if err == nil {
//		engine.StartSpeaking(samples, rate)
//	}
//
// # Configuration
//
// Configuration comes from defaults, a .env file and VTS_* environment
// variables:
//
//	config := vtsmotion.NewConfig()
//	config.WsEndpoint = "ws://127.0.0.1:8001"
//	config.TickRate = 25
//	issues := config.Validate()
//
// The auth token issued by the host on first connect is persisted to
// Config.TokenFile and reused on later sessions; it is never logged in
// the clear.
//
// # Structured Logging
//
//	logConfig := vtsmotion.DefaultLogConfig()
//	logConfig.Level = vtsmotion.DebugLevel
//	logger := vtsmotion.NewMotionLogger(logConfig)
//	engine := vtsmotion.NewEngine(config, logger)
//
// # Error Handling
//
// Host communication failures are part of normal operation. They are
// typed by code, caught at task boundaries and fed to the watchdog;
// a persistent connection failure leaves the avatar unanimated rather
// than crashing the process:
//
//	if vtsmotion.IsRetryableError(err) {
//		// the watchdog will reconnect with backoff
//	}
//
// # Dependencies
//
// The engine depends on:
//   - github.com/gorilla/websocket: host connection
//   - github.com/gordonklaus/portaudio: microphone level monitor
//   - github.com/rs/zerolog: structured logging
//   - github.com/spf13/cobra: CLI framework
//   - github.com/joho/godotenv: environment variables
package vtsmotion
