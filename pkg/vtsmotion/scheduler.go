package vtsmotion

import (
	"sort"
	"sync"
	"time"
)

// injector is the fire-and-forget slice of Transport the scheduler
// uses for steady-state parameter writes.
type injector interface {
	Send(messageType string, data interface{}) error
}

// resolver is the slice of Catalog the scheduler needs for bounds and
// host names.
type resolver interface {
	Resolve(axis Axis) (ParameterDescriptor, bool)
}

// SchedulerConfig tunes outgoing batching.
type SchedulerConfig struct {
	MinSendInterval time.Duration
	MinDelta        float64
	Weight          float64
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MinSendInterval: 40 * time.Millisecond,
		MinDelta:        0.005,
		Weight:          1,
	}
}

// Scheduler coalesces per-axis values and delivers them as one inject
// message per interval at most. The interval cap is the main defense
// against host-side socket overload, which shows up as forced
// disconnects.
type Scheduler struct {
	cfg       SchedulerConfig
	transport injector
	catalog   resolver
	logger    *MotionLogger
	now       func() time.Time

	mu       sync.Mutex
	pending  map[Axis]float64
	lastSent map[Axis]float64
	hasSent  map[Axis]bool
	lastSend time.Time
	lastTick time.Time
	sent     int64
	dropped  int64
}

func NewScheduler(cfg SchedulerConfig, transport injector, catalog resolver, logger *MotionLogger) *Scheduler {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return &Scheduler{
		cfg:       cfg,
		transport: transport,
		catalog:   catalog,
		logger:    logger.WithComponent("scheduler"),
		now:       time.Now,
		pending:   make(map[Axis]float64),
		lastSent:  make(map[Axis]float64),
		hasSent:   make(map[Axis]bool),
	}
}

// Tick takes the current axis values, coalesces the ones that moved
// past the minimum delta and, when the rate limit allows, flushes them
// as a single inject message. Unmapped axes are dropped silently; the
// rest of the batch still goes out.
func (s *Scheduler) Tick(values map[Axis]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.lastTick = now

	for axis, v := range values {
		d, ok := s.catalog.Resolve(axis)
		if !ok {
			s.dropped++
			continue
		}
		clamped := clamp(v, d.Min, d.Max)
		if s.hasSent[axis] {
			delta := clamped - s.lastSent[axis]
			if delta < s.cfg.MinDelta && delta > -s.cfg.MinDelta {
				continue
			}
		}
		s.pending[axis] = clamped
	}

	if len(s.pending) == 0 {
		return nil
	}
	if !s.lastSend.IsZero() && now.Sub(s.lastSend) < s.cfg.MinSendInterval {
		return nil
	}

	batch := make([]ParameterValue, 0, len(s.pending))
	for axis, v := range s.pending {
		d, ok := s.catalog.Resolve(axis)
		if !ok {
			continue
		}
		batch = append(batch, ParameterValue{ID: d.HostName, Value: v, Weight: s.cfg.Weight})
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].ID < batch[j].ID })

	err := s.transport.Send(MsgInjectRequest, InjectRequestData{
		Mode:            "set",
		FaceFound:       false,
		ParameterValues: batch,
	})
	if err != nil {
		// Pending values stay coalesced for the next attempt.
		return WrapError(err, ErrCodeSendFailed)
	}

	for axis, v := range s.pending {
		s.lastSent[axis] = v
		s.hasSent[axis] = true
	}
	s.pending = make(map[Axis]float64)
	s.lastSend = now
	s.sent++
	return nil
}

// Reset forgets delta history, forcing the next tick to resend every
// axis. Called after reconnects when the host state is unknown.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[Axis]float64)
	s.lastSent = make(map[Axis]float64)
	s.hasSent = make(map[Axis]bool)
	s.lastSend = time.Time{}
}

// LastTick reports when Tick last ran, for the watchdog.
func (s *Scheduler) LastTick() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTick
}

// LastSend reports when a message last went out.
func (s *Scheduler) LastSend() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSend
}

// Stats returns sent message and dropped value counters.
func (s *Scheduler) Stats() (sent, dropped int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent, s.dropped
}
