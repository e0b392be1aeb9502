package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tgifai/skillhunt/internal/consts"
)

// ErrConfigExists is returned by WriteDefault when the target already exists.
var ErrConfigExists = errors.New("config file already exists")

const fileHeader = `# skillhunt config. Unset fields fall back to built-in defaults.
# Platform credentials never live here: each platform's token_env names the
# environment variable the token is read from.
`

// Manager holds the config loaded for this process.
type Manager struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
	hash string
}

var defaultManager = &Manager{}

// Load reads path, or the default location when path is empty. A missing
// file yields the defaults.
func (m *Manager) Load(path string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = strings.TrimSpace(path)
	if path == "" {
		path = consts.DefaultConfigPath()
	}
	cfg, err := loadConfigFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	m.path, m.cfg, m.hash = path, cfg, cfg.Hash()
	return cfg.Clone()
}

// Get returns a copy of the loaded config.
func (m *Manager) Get() (*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg == nil {
		return nil, errors.New("config is not loaded")
	}
	return m.cfg.Clone()
}

// Hash identifies the loaded config; equal configs hash equal across a
// write and reload.
func (m *Manager) Hash() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg == nil {
		return "", errors.New("config is not loaded")
	}
	return m.hash, nil
}

// Path is the file the config was loaded from or written to.
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// BackupPath is where WriteDefault keeps the file it replaced.
func BackupPath(path string) string {
	return path + ".bak"
}

// WriteDefault renders the default config to path. An existing file is kept
// unless force is set; then it is moved to BackupPath first.
func (m *Manager) WriteDefault(path string, force bool) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = strings.TrimSpace(path)
	if path == "" {
		path = consts.DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		if !force {
			return nil, fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
		if err := os.Rename(path, BackupPath(path)); err != nil {
			return nil, fmt.Errorf("back up config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	cfg := Default()
	raw, err := marshalConfigYAML(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	if err := writeFileAtomic(path, append([]byte(fileHeader), raw...)); err != nil {
		return nil, err
	}

	m.path, m.cfg, m.hash = path, cfg, cfg.Hash()
	return cfg.Clone()
}

func loadConfigFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	for id, one := range cfg.Platforms {
		if strings.HasPrefix(one.TokenEnv, "$") {
			return nil, fmt.Errorf("platforms[%s]: token_env names a variable, drop the leading $", id)
		}
	}
	return &cfg, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}

func marshalConfigYAML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Load(path string) (*Config, error) {
	return defaultManager.Load(path)
}

func Get() (*Config, error) {
	return defaultManager.Get()
}

func Hash() (string, error) {
	return defaultManager.Hash()
}

func Path() string {
	return defaultManager.Path()
}

func WriteDefault(path string, force bool) (*Config, error) {
	return defaultManager.WriteDefault(path, force)
}
