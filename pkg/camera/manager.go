package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager guards the frame source and its settings. The vision tool and the
// live preview share one Manager.
type Manager struct {
	logger *slog.Logger

	mu     sync.RWMutex
	src    Source
	config Config

	// OnConfigChange runs after a new Config has been stored.
	OnConfigChange func(Config) error
}

func NewManager(src Source, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{src: src, config: cfg, logger: logger.With("component", "camera")}
}

// Capture returns one JPEG frame, or ErrNoFrame once closed.
func (m *Manager) Capture(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	src := m.src
	m.mu.RUnlock()

	if src == nil {
		return nil, ErrNoFrame
	}
	return src.Capture(ctx)
}

func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig stores cfg if it validates and the source, when it is a
// Reconfigurer, accepts it.
func (m *Manager) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("camera config: %w", err)
	}

	if err := m.swap(cfg); err != nil {
		return err
	}
	m.logger.Info("config applied", "device", cfg.Device, "size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height), "fps", cfg.FPS)

	if fn := m.OnConfigChange; fn != nil {
		if err := fn(cfg); err != nil {
			return fmt.Errorf("camera config hook: %w", err)
		}
	}
	return nil
}

func (m *Manager) swap(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.src.(Reconfigurer); ok {
		if err := r.Reconfigure(cfg); err != nil {
			return fmt.Errorf("reconfigure source: %w", err)
		}
	}
	m.config = cfg
	return nil
}

// UpdateConfig overlays the numeric fields found in params (as decoded from
// JSON) on the current config. Other keys are ignored.
func (m *Manager) UpdateConfig(params map[string]any) error {
	cfg := m.GetConfig()
	fields := map[string]*int{
		"device":  &cfg.Device,
		"width":   &cfg.Width,
		"height":  &cfg.Height,
		"fps":     &cfg.FPS,
		"quality": &cfg.Quality,
	}
	for key, raw := range params {
		dst, known := fields[key]
		if !known {
			continue
		}
		if n, ok := asInt(raw); ok {
			*dst = n
		}
	}
	return m.SetConfig(cfg)
}

// Close releases the source. Capture fails afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	src := m.src
	m.src = nil
	m.mu.Unlock()

	if src == nil {
		return nil
	}
	return src.Close()
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
