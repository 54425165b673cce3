package audio

import (
	"context"
	"sync"
)

// FakeEngine is an in-process Engine for tests and headless runs. Samples are
// pushed with Emit instead of coming from a device.
type FakeEngine struct {
	SampleRate uint32
	StartErr   error
	StopErr    error

	subs subscribers

	mu         sync.Mutex
	capturing  bool
	startCalls int
	stopCalls  int
}

// NewFakeEngine creates a fake engine reporting the given sample rate
func NewFakeEngine(sampleRate uint32) *FakeEngine {
	return &FakeEngine{SampleRate: sampleRate}
}

func (f *FakeEngine) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{Name: "fake", IsDefault: true}}, nil
}

func (f *FakeEngine) StartCapture(_ context.Context, _ string) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.StartErr != nil {
		return 0, f.StartErr
	}
	if f.capturing {
		return 0, ErrAlreadyCapturing
	}
	f.capturing = true
	return f.SampleRate, nil
}

func (f *FakeEngine) StopCapture(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	f.capturing = false
	return f.StopErr
}

func (f *FakeEngine) Subscribe(h ChunkHandler) func() {
	return f.subs.add(h)
}

// Emit delivers samples to every subscriber synchronously
func (f *FakeEngine) Emit(samples []float32) {
	f.subs.dispatch(samples)
}

// Capturing reports whether StartCapture succeeded without a later StopCapture
func (f *FakeEngine) Capturing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.capturing
}

// Subscribers returns the number of live subscriptions
func (f *FakeEngine) Subscribers() int {
	return f.subs.count()
}

// Calls returns how many times StartCapture and StopCapture were invoked
func (f *FakeEngine) Calls() (start, stop int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls, f.stopCalls
}
