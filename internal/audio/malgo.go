package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoEngine captures mono float32 audio from a local input device via miniaudio
type MalgoEngine struct {
	preferredRate uint32
	subs          subscribers

	mu       sync.Mutex
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	deviceID malgo.DeviceID
}

// NewMalgoEngine creates an engine. A zero sampleRate lets the device pick its native rate.
func NewMalgoEngine(sampleRate uint32) *MalgoEngine {
	return &MalgoEngine{preferredRate: sampleRate}
}

func (m *MalgoEngine) ensureContext() (*malgo.AllocatedContext, error) {
	if m.ctx != nil {
		return m.ctx, nil
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo init context: %w", err)
	}
	m.ctx = ctx
	return ctx, nil
}

func (m *MalgoEngine) Devices() ([]DeviceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, err := m.ensureContext()
	if err != nil {
		return nil, err
	}
	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	result := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		result = append(result, DeviceInfo{Name: d.Name(), IsDefault: d.IsDefault != 0})
	}
	return result, nil
}

func (m *MalgoEngine) StartCapture(_ context.Context, device string) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return 0, ErrAlreadyCapturing
	}
	ctx, err := m.ensureContext()
	if err != nil {
		return 0, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = Channels
	cfg.SampleRate = m.preferredRate

	if device != "" {
		devices, err := ctx.Devices(malgo.Capture)
		if err != nil {
			return 0, fmt.Errorf("malgo devices: %w", err)
		}
		found := false
		for _, d := range devices {
			if d.Name() == device {
				m.deviceID = d.ID
				cfg.Capture.DeviceID = m.deviceID.Pointer()
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("input device %q not found", device)
		}
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			m.subs.dispatch(decodeFloat32(input, frameCount))
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		return 0, fmt.Errorf("malgo init device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return 0, fmt.Errorf("malgo start device: %w", err)
	}

	m.device = dev
	return dev.SampleRate(), nil
}

func (m *MalgoEngine) StopCapture(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotCapturing
	}
	err := m.device.Stop()
	m.device.Uninit()
	m.device = nil
	if err != nil {
		return fmt.Errorf("malgo stop device: %w", err)
	}
	return nil
}

func (m *MalgoEngine) Subscribe(h ChunkHandler) func() {
	return m.subs.add(h)
}

// Close releases the miniaudio context
func (m *MalgoEngine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		m.ctx.Uninit()
		m.ctx.Free()
		m.ctx = nil
	}
}

// decodeFloat32 copies little-endian float32 frames out of the device buffer
func decodeFloat32(data []byte, frameCount uint32) []float32 {
	n := int(frameCount) * Channels
	if limit := len(data) / 4; n > limit {
		n = limit
	}
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}
