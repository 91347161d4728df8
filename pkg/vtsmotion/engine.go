package vtsmotion

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Engine wires transport, catalog, animator, lip-sync, emotion and
// scheduler into one facade. Collaborators hand it audio buffers and
// mood labels; it keeps the avatar moving and the host fed.
type Engine struct {
	config *Config
	logger *MotionLogger

	transport *Transport
	catalog   *Catalog
	emotions  *EmotionController
	animator  *Animator
	scheduler *Scheduler
	extractor *Extractor

	mu      sync.Mutex
	running bool

	speechCount  atomic.Int64
	moodChanges  atomic.Int64
	loopRestarts atomic.Int64

	// lastBeat marks the animation loop's last iteration, UnixNano. The
	// loop beats even when the transport is down, so the freeze detector
	// only reacts to the loop itself stalling, not to outages.
	lastBeat atomic.Int64

	speechReturn AnimationMode

	animCancel context.CancelFunc
	animDone   chan struct{}

	watchCancel context.CancelFunc
	watchDone   chan struct{}

	speechCancel context.CancelFunc
	speechDone   chan struct{}
}

func NewEngine(config *Config, logger *MotionLogger) *Engine {
	if config == nil {
		config = NewConfig()
	}
	if logger == nil {
		logger = GetGlobalLogger()
	}

	transport := NewTransport(config, logger)
	transport.AddConnectionHandler(CreateConnectionLogger(logger))
	transport.AddErrorHandler(CreateErrorLogger(logger))
	catalog := NewCatalog(transport, logger)
	emotions := NewEmotionController(DefaultEmotionControllerConfig(), transport, logger)
	animator := NewAnimator(DefaultAnimatorConfig(), emotions)
	scheduler := NewScheduler(SchedulerConfig{
		MinSendInterval: config.MinSendInterval,
		MinDelta:        config.MinSendDelta,
		Weight:          1,
	}, transport, catalog, logger)

	return &Engine{
		config:    config,
		logger:    logger.WithComponent("engine"),
		transport: transport,
		catalog:   catalog,
		emotions:  emotions,
		animator:  animator,
		scheduler: scheduler,
		extractor: NewExtractor(DefaultExtractorConfig()),
	}
}

// Start connects, authenticates, discovers the model's parameters and
// launches the animation and watchdog loops.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return NewMotionError("engine already running", ErrCodeUnknown)
	}
	e.mu.Unlock()

	if err := e.transport.Connect(); err != nil {
		return err
	}

	token, err := e.transport.Authenticate(e.config.LoadToken())
	if err != nil {
		e.transport.Close()
		return err
	}
	if err := e.config.SaveToken(token); err != nil {
		e.logger.WithError(err).Warn("Could not persist auth token")
	}

	if e.config.ModelName != "" {
		if err := e.catalog.LoadModelByName(ctx, e.config.ModelName); err != nil {
			e.logger.WithError(err).Warnf("Could not load model %q, staying with the current one", e.config.ModelName)
		}
	}
	if model, err := e.catalog.CurrentModel(ctx); err == nil {
		e.logger.Infof("Host model: %q (loaded=%t)", model.ModelName, model.ModelLoaded)
	}

	if err := e.catalog.Discover(ctx); err != nil {
		e.logger.WithError(err).Warn("Parameter discovery failed, watchdog will retry")
	}
	e.ensureCustomParameters(ctx)

	e.mu.Lock()
	e.running = true
	e.startAnimationLocked()
	e.startWatchdogLocked()
	e.mu.Unlock()

	e.logger.Infof("Engine started, %d axes mapped", e.catalog.Count())
	return nil
}

// ensureCustomParameters creates the mouth and engine-state inputs as
// custom parameters when the loaded model does not define them itself.
func (e *Engine) ensureCustomParameters(ctx context.Context) {
	for _, axis := range []Axis{AxisMouthOpen, AxisMouthSmile, AxisSpeaking, AxisEnergy} {
		d, ok := e.catalog.Resolve(axis)
		if !ok || !d.Fallback {
			continue
		}
		if err := e.catalog.EnsureParameter(ctx, d.HostName, d.Min, d.Max, d.Default); err != nil {
			e.logger.WithError(err).Warnf("Could not create parameter %s", d.HostName)
		}
	}
}

func (e *Engine) startAnimationLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.animCancel = cancel
	e.animDone = done
	go e.animationLoop(ctx, done)
}

func (e *Engine) startWatchdogLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.watchCancel = cancel
	e.watchDone = done
	go e.watchdogLoop(ctx, done)
}

func (e *Engine) animationLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := time.Second / time.Duration(e.config.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.lastBeat.Store(now.UnixNano())
			e.animator.Tick(now)
			if !e.transport.IsReady() {
				continue
			}
			if err := e.scheduler.Tick(e.animator.Values()); err != nil {
				// A failed tick is skipped, never fatal.
				e.logger.WithError(err).Debug("Send tick failed")
			}
		}
	}
}

func (e *Engine) watchdogLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.config.WatchdogInterval)
	defer ticker.Stop()

	wasReady := e.transport.IsReady()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if beat := e.lastBeat.Load(); beat != 0 {
				stall := time.Since(time.Unix(0, beat))
				if stall > e.config.FreezeTimeout {
					e.logger.Warnf("Animation loop frozen for %s, restarting it", stall.Round(time.Millisecond))
					e.restartAnimation()
				}
			}

			ready := e.transport.IsReady()
			if ready && !wasReady {
				// Fresh session, possibly a different model.
				if err := e.catalog.Discover(ctx); err != nil {
					e.logger.WithError(err).Warn("Rediscovery after reconnect failed")
				} else {
					e.ensureCustomParameters(ctx)
					e.scheduler.Reset()
				}
			}
			if !ready && e.transport.State() == Disconnected {
				go func() {
					if err := e.transport.Reconnect(); err != nil {
						e.logger.WithError(err).Warn("Watchdog reconnect failed")
					}
				}()
			}
			wasReady = ready
		}
	}
}

func (e *Engine) restartAnimation() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	if e.animCancel != nil {
		e.animCancel()
		<-e.animDone
	}
	e.startAnimationLocked()
	e.lastBeat.Store(time.Now().UnixNano())
	e.loopRestarts.Add(1)
}

// StartSpeaking extracts a mouth envelope from the buffer and plays it
// against the mouth axes. Any previous utterance is cancelled and
// awaited first, so the mouth only ever has one writer.
func (e *Engine) StartSpeaking(samples []float64, sampleRate int) error {
	frames := e.extractor.Extract(samples, sampleRate)
	if len(frames) == 0 {
		return NewAudioDecodeError("empty or undecodable speech buffer")
	}

	e.mu.Lock()
	if e.speechCancel != nil {
		e.speechCancel()
		prev := e.speechDone
		e.mu.Unlock()
		<-prev
		e.mu.Lock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.speechCancel = cancel
	e.speechDone = done
	// A replacement utterance keeps the return mode of the first one.
	if prior := e.animator.Mode(); prior != ModeSpeaking {
		e.speechReturn = prior
	}
	e.mu.Unlock()

	e.animator.SetMode(ModeSpeaking)
	e.speechCount.Add(1)
	go e.playEnvelope(ctx, done, frames)
	return nil
}

// StartSpeakingWAV decodes a WAV buffer and plays its mouth envelope.
func (e *Engine) StartSpeakingWAV(data []byte) error {
	samples, rate, err := DecodeWAV(data)
	if err != nil {
		return err
	}
	return e.StartSpeaking(samples, rate)
}

// StartSpeakingWAVFile plays the mouth envelope of a WAV file on disk.
func (e *Engine) StartSpeakingWAVFile(path string) error {
	samples, rate, err := LoadWAVFile(path)
	if err != nil {
		return err
	}
	return e.StartSpeaking(samples, rate)
}

func (e *Engine) playEnvelope(ctx context.Context, done chan struct{}, frames []LipSyncFrame) {
	defer func() {
		// The mouth always lands at zero, cancelled or not, and the
		// avatar goes back to whatever it was doing before the speech.
		e.animator.SetAxisTarget(AxisMouthOpen, 0)
		e.mu.Lock()
		ret := e.speechReturn
		e.mu.Unlock()
		if ret == "" || ret == ModeSpeaking {
			ret = ModeIdle
		}
		e.animator.SetMode(ret)
		close(done)
	}()

	ticker := time.NewTicker(e.extractor.FrameInterval())
	defer ticker.Stop()

	for _, frame := range frames {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.animator.SetAxisTarget(AxisMouthOpen, frame.Mouth)
			// Wide mouth flattens the smile a little.
			smile := e.emotions.Snapshot().BaseSmile * (1 - 0.3*frame.Mouth)
			e.animator.SetAxisTarget(AxisMouthSmile, smile)
		}
	}
}

// StopSpeaking cancels the active utterance, if any, and waits for the
// mouth to be released at zero.
func (e *Engine) StopSpeaking() {
	e.mu.Lock()
	cancel := e.speechCancel
	done := e.speechDone
	e.speechCancel = nil
	e.speechDone = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// SetMood updates the emotion state and occasionally fires a matching
// host expression.
func (e *Engine) SetMood(label string, intensity float64) {
	state := e.emotions.SetMood(label, intensity)
	e.moodChanges.Add(1)
	e.emotions.MaybeTriggerExpression(label)

	if e.animator.Mode() != ModeSpeaking {
		if state.Label == "thinking" {
			e.animator.SetMode(ModeThinking)
		} else {
			e.animator.SetMode(ModeIdle)
		}
	}
}

// SetMode switches the animation mode directly. Speaking mode is owned
// by StartSpeaking and cannot be entered here.
func (e *Engine) SetMode(mode AnimationMode) {
	if mode == ModeSpeaking {
		return
	}
	e.animator.SetMode(mode)
}

// SetListening toggles listening mode; while listening the mic monitor
// may drive the mouth axis.
func (e *Engine) SetListening(on bool) {
	if e.animator.Mode() == ModeSpeaking {
		return
	}
	if on {
		e.animator.SetMode(ModeListening)
	} else {
		e.animator.SetMode(ModeIdle)
	}
}

// Animator exposes the pose animator for collaborators such as the
// mic monitor.
func (e *Engine) Animator() *Animator {
	return e.animator
}

// Catalog exposes the parameter catalog for diagnostics.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Status returns a diagnostic snapshot.
func (e *Engine) Status() EngineStatus {
	sent, dropped := e.scheduler.Stats()
	return EngineStatus{
		State:          e.transport.State(),
		Mode:           e.animator.Mode(),
		ParameterCount: e.catalog.Count(),
		Mood:           e.emotions.Snapshot().Label,
		LastSend:       e.scheduler.LastSend(),
		LastTick:       e.scheduler.LastTick(),
		SentUpdates:    sent,
		DroppedUpdates: dropped,
		SpeechCount:    e.speechCount.Load(),
		MoodChanges:    e.moodChanges.Load(),
		LoopRestarts:   e.loopRestarts.Load(),
	}
}

// Stop shuts everything down: speech task, loops, socket.
func (e *Engine) Stop() {
	e.StopSpeaking()

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	animCancel, animDone := e.animCancel, e.animDone
	watchCancel, watchDone := e.watchCancel, e.watchDone
	e.mu.Unlock()

	if watchCancel != nil {
		watchCancel()
		<-watchDone
	}
	if animCancel != nil {
		animCancel()
		<-animDone
	}
	e.transport.Close()
	e.logger.Info("Engine stopped")
}
