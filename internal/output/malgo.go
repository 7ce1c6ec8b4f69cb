// ABOUTME: Malgo-based output sink using the miniaudio device callback
// ABOUTME: Pulls rendered samples directly on the host audio callback
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"
)

// Malgo is the callback-driven output backend. The device's data callback
// pulls samples straight from the render function on the host audio clock.
type Malgo struct {
	mu       sync.Mutex
	format   Format
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	render   RenderFunc
	scratch  []float32
	started  bool
}

// NewMalgo probes the host audio system and returns a callback sink.
func NewMalgo(format Format) (*Malgo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	return &Malgo{
		format:   format,
		malgoCtx: ctx,
	}, nil
}

// Start opens the playback device and begins pulling from render.
func (m *Malgo) Start(render RenderFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("sink already started")
	}
	m.render = render

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(m.format.Channels)
	deviceConfig.SampleRate = uint32(m.format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			m.dataCallback(pOutput, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.started = true

	log.Printf("Audio output started: %dHz, %d channels (malgo)", m.format.SampleRate, m.format.Channels)
	return nil
}

// dataCallback renders one tick's worth of frames into the device buffer.
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	frames := int(frameCount)
	need := frames * m.format.Channels
	if cap(m.scratch) < need {
		m.scratch = make([]float32, need)
	}
	buf := m.scratch[:need]

	m.render(buf, frames)
	encodeS16LE(pOutput, buf)
}

// Pause stops the device without releasing it.
func (m *Malgo) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil || !m.started {
		return nil
	}
	if err := m.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	m.started = false
	return nil
}

// Resume restarts a paused device.
func (m *Malgo) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil || m.started {
		return nil
	}
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to restart device: %w", err)
	}
	m.started = true
	return nil
}

// Close releases the device and malgo context.
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
		m.started = false
	}

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}

	return nil
}

// Channels returns the output channel count.
func (m *Malgo) Channels() int {
	return m.format.Channels
}
