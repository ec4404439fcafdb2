package tts

import (
	"context"
	"sync"
	"sync/atomic"

	"redub/internal/services"
)

// RenderRequest is one synthesis call: render text as continuous speech in
// the given voice.
type RenderRequest struct {
	Text             string
	Language         string
	SpeakerID        string
	VoiceProfilePath string
	OutputPath       string
	Speed            float64
}

// RenderResult describes the produced audio file.
type RenderResult struct {
	AudioPath  string
	DurationMS int64
	SampleRate int
}

// Renderer performs the actual synthesis. Implementations wrap a native
// voice engine and are assumed NOT to be reentrant: the Engine wrapper
// provides the required serialization.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (RenderResult, error)
}

// Engine guards one non-reentrant synthesis engine instance. The native
// engine keeps cross-call state that corrupts under concurrent calls, so
// every render holds the instance lock for its full duration. Callers may
// submit concurrently; execution against this instance is strictly
// sequential.
type Engine struct {
	device   string
	renderer Renderer

	mu sync.Mutex

	holds    atomic.Int32
	maxHolds atomic.Int32
}

// NewEngine wraps a renderer bound to one device.
func NewEngine(device string, renderer Renderer) *Engine {
	return &Engine{device: device, renderer: renderer}
}

// Device names the hardware this instance is bound to.
func (e *Engine) Device() string { return e.device }

// Render serializes the call against this engine instance and tracks the
// peak number of concurrent holds, which must never exceed one.
func (e *Engine) Render(ctx context.Context, req RenderRequest) (RenderResult, error) {
	if err := ctx.Err(); err != nil {
		return RenderResult{}, services.Wrap(services.ErrTransient, "engine", "render", "canceled before render", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	held := e.holds.Add(1)
	defer e.holds.Add(-1)
	for {
		peak := e.maxHolds.Load()
		if held <= peak || e.maxHolds.CompareAndSwap(peak, held) {
			break
		}
	}
	return e.renderer.Render(ctx, req)
}

// MaxConcurrentHolds reports the peak number of overlapping native calls
// observed. With correct locking it is always 1.
func (e *Engine) MaxConcurrentHolds() int32 { return e.maxHolds.Load() }

// Pool maps device names to their engine instances. Each device keeps its
// own lock, so renders on different devices proceed in parallel.
type Pool struct {
	mu      sync.Mutex
	engines map[string]*Engine
	build   func(device string) *Engine
}

// NewPool creates a pool that lazily constructs one engine per device.
func NewPool(build func(device string) *Engine) *Pool {
	return &Pool{engines: make(map[string]*Engine), build: build}
}

// ForDevice returns the engine bound to device, creating it on first use.
func (p *Pool) ForDevice(device string) *Engine {
	p.mu.Lock()
	defer p.mu.Unlock()
	if engine, ok := p.engines[device]; ok {
		return engine
	}
	engine := p.build(device)
	p.engines[device] = engine
	return engine
}

// Devices lists the devices with live engine instances.
func (p *Pool) Devices() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.engines))
	for device := range p.engines {
		out = append(out, device)
	}
	return out
}
