package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/technosupport/ts-recorder/internal/recorder"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DBConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type NATSConfig struct {
	URL        string `yaml:"url"`
	Subject    string `yaml:"subject"`
	MaxRetries int    `yaml:"max_retries"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

// CaptureConfig holds the capture options the recorder consumes. These are
// hot-reloadable; everything else requires a restart.
type CaptureConfig struct {
	SaveJPEGs          int    `yaml:"save_jpegs"`
	JPEGQuality        int    `yaml:"jpeg_quality"`
	JPEGAlarmQuality   int    `yaml:"jpeg_alarm_quality"`
	TimestampOnCapture bool   `yaml:"timestamp_on_capture"`
	BulkFrameInterval  int    `yaml:"bulk_frame_interval"`
	CaptureFileFormat  string `yaml:"capture_file_format"`
	AnalyseFileFormat  string `yaml:"analyse_file_format"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	DB      DBConfig      `yaml:"db"`
	NATS    NATSConfig    `yaml:"nats"`
	Redis   RedisConfig   `yaml:"redis"`
	HTTP    HTTPConfig    `yaml:"http"`
	Capture CaptureConfig `yaml:"capture"`
}

func defaults() Config {
	var c Config
	c.DB.Host = "localhost"
	c.DB.Port = "5432"
	c.DB.SSLMode = "disable"
	c.NATS.Subject = "vms.recorder.events"
	c.NATS.MaxRetries = 3
	c.Redis.Addr = "localhost:6379"
	c.HTTP.Addr = ":9820"
	c.Capture.JPEGQuality = 70
	c.Capture.JPEGAlarmQuality = 90
	c.Capture.BulkFrameInterval = 100
	c.Capture.CaptureFileFormat = "%s/%05d-capture.jpg"
	c.Capture.AnalyseFileFormat = "%s/%05d-analyse.jpg"
	return c
}

// Load reads the YAML file (optional) and applies env overrides on top,
// matching the deployment convention for DB credentials.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"DB_HOST":     &cfg.DB.Host,
		"DB_PORT":     &cfg.DB.Port,
		"DB_USER":     &cfg.DB.User,
		"DB_PASSWORD": &cfg.DB.Password,
		"DB_NAME":     &cfg.DB.Name,
		"DB_SSLMODE":  &cfg.DB.SSLMode,
		"NATS_URL":    &cfg.NATS.URL,
		"REDIS_ADDR":  &cfg.Redis.Addr,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

// Manager hands out the current capture options and supports hot reload.
type Manager struct {
	path string

	mu  sync.RWMutex
	cfg Config
}

func NewManager(path string, cfg Config) *Manager {
	return &Manager{path: path, cfg: cfg}
}

func (m *Manager) Current() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// CaptureOptions converts the current capture section into the recorder's
// option set.
func (m *Manager) CaptureOptions() recorder.CaptureOptions {
	m.mu.RLock()
	c := m.cfg.Capture
	m.mu.RUnlock()

	return recorder.CaptureOptions{
		SaveJPEGs:          c.SaveJPEGs,
		JPEGQuality:        c.JPEGQuality,
		JPEGAlarmQuality:   c.JPEGAlarmQuality,
		TimestampOnCapture: c.TimestampOnCapture,
		BulkInterval:       c.BulkFrameInterval,
		CaptureFileFormat:  c.CaptureFileFormat,
		AnalyseFileFormat:  c.AnalyseFileFormat,
	}
}

// Reload re-reads the config file. Only the capture section takes effect
// live; connection settings keep their boot values.
func (m *Manager) Reload() error {
	fresh, err := Load(m.path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg.Capture = fresh.Capture
	m.mu.Unlock()
	return nil
}
