package vtsmotion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInjector struct {
	sends []InjectRequestData
	times []time.Time
	fail  bool
	clock *time.Time
}

func (f *fakeInjector) Send(messageType string, data interface{}) error {
	if f.fail {
		return NewSendError("socket gone")
	}
	inject, ok := data.(InjectRequestData)
	if !ok {
		return NewSendError("unexpected payload")
	}
	f.sends = append(f.sends, inject)
	if f.clock != nil {
		f.times = append(f.times, *f.clock)
	}
	return nil
}

type fakeResolver struct {
	missing map[Axis]bool
}

func (f *fakeResolver) Resolve(axis Axis) (ParameterDescriptor, bool) {
	if f.missing[axis] {
		return ParameterDescriptor{}, false
	}
	r := defaultRangeFor(axis)
	return ParameterDescriptor{Logical: axis, HostName: string(axis), Min: r.min, Max: r.max}, true
}

func newTestScheduler(injector *fakeInjector, resolver *fakeResolver) (*Scheduler, *time.Time) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(DefaultSchedulerConfig(), injector, resolver, nil)
	s.now = func() time.Time { return clock }
	injector.clock = &clock
	return s, &clock
}

func TestSchedulerRateLimit(t *testing.T) {
	injector := &fakeInjector{}
	s, clock := newTestScheduler(injector, &fakeResolver{})

	// Tick every 10ms with moving values for 400ms.
	for i := 0; i < 40; i++ {
		values := map[Axis]float64{AxisMouthOpen: float64(i%10) / 10}
		require.NoError(t, s.Tick(values))
		*clock = clock.Add(10 * time.Millisecond)
	}

	require.NotEmpty(t, injector.times)
	for i := 1; i < len(injector.times); i++ {
		gap := injector.times[i].Sub(injector.times[i-1])
		assert.GreaterOrEqual(t, gap, 40*time.Millisecond, "messages %d and %d too close", i-1, i)
	}
}

func TestSchedulerClamping(t *testing.T) {
	injector := &fakeInjector{}
	s, _ := newTestScheduler(injector, &fakeResolver{})

	require.NoError(t, s.Tick(map[Axis]float64{
		AxisMouthOpen:  12.5,  // range 0..1
		AxisFaceAngleX: -1000, // range -30..30
	}))

	require.Len(t, injector.sends, 1)
	for _, pv := range injector.sends[0].ParameterValues {
		switch pv.ID {
		case string(AxisMouthOpen):
			assert.Equal(t, 1.0, pv.Value)
		case string(AxisFaceAngleX):
			assert.Equal(t, -30.0, pv.Value)
		}
	}
}

func TestSchedulerMinDelta(t *testing.T) {
	injector := &fakeInjector{}
	s, clock := newTestScheduler(injector, &fakeResolver{})

	require.NoError(t, s.Tick(map[Axis]float64{AxisMouthOpen: 0.5}))
	require.Len(t, injector.sends, 1)

	// A sub-delta wiggle is not worth a message.
	*clock = clock.Add(100 * time.Millisecond)
	require.NoError(t, s.Tick(map[Axis]float64{AxisMouthOpen: 0.502}))
	assert.Len(t, injector.sends, 1)

	// A real change is.
	*clock = clock.Add(100 * time.Millisecond)
	require.NoError(t, s.Tick(map[Axis]float64{AxisMouthOpen: 0.6}))
	assert.Len(t, injector.sends, 2)
}

func TestSchedulerUnmappedAxisDropped(t *testing.T) {
	injector := &fakeInjector{}
	resolver := &fakeResolver{missing: map[Axis]bool{AxisMouthSmile: true}}
	s, _ := newTestScheduler(injector, resolver)

	require.NoError(t, s.Tick(map[Axis]float64{
		AxisMouthOpen:  0.5,
		AxisMouthSmile: 0.9,
	}))

	require.Len(t, injector.sends, 1)
	require.Len(t, injector.sends[0].ParameterValues, 1)
	assert.Equal(t, string(AxisMouthOpen), injector.sends[0].ParameterValues[0].ID)

	_, dropped := s.Stats()
	assert.Equal(t, int64(1), dropped)
}

func TestSchedulerFailedSendKeepsPending(t *testing.T) {
	injector := &fakeInjector{fail: true}
	s, clock := newTestScheduler(injector, &fakeResolver{})

	err := s.Tick(map[Axis]float64{AxisMouthOpen: 0.5})
	require.Error(t, err)

	injector.fail = false
	*clock = clock.Add(50 * time.Millisecond)
	require.NoError(t, s.Tick(map[Axis]float64{}))
	require.Len(t, injector.sends, 1)
	assert.Equal(t, 0.5, injector.sends[0].ParameterValues[0].Value)
}

func TestSchedulerResetResendsEverything(t *testing.T) {
	injector := &fakeInjector{}
	s, clock := newTestScheduler(injector, &fakeResolver{})

	require.NoError(t, s.Tick(map[Axis]float64{AxisMouthOpen: 0.5}))
	require.Len(t, injector.sends, 1)

	s.Reset()
	*clock = clock.Add(100 * time.Millisecond)
	require.NoError(t, s.Tick(map[Axis]float64{AxisMouthOpen: 0.5}))
	assert.Len(t, injector.sends, 2)
}
