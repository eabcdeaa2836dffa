// Package settings loads the vland daemon configuration file.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/vland/pkg/auth"
	"github.com/newtron-network/vland/pkg/model"
	"github.com/newtron-network/vland/pkg/util"
)

// DefaultPath is where vland looks for its configuration.
const DefaultPath = "/etc/vland/vland.yaml"

// Store backends.
const (
	StoreRedis  = "redis"
	StoreOVSDB  = "ovsdb"
	StoreMemory = "memory"
)

// Sink kinds.
const (
	SinkAppDB   = "appdb"
	SinkNetlink = "netlink"
	SinkLog     = "log"
)

// Settings is the daemon configuration.
type Settings struct {
	// Device names the switch in audit events. Defaults to the hostname.
	Device string `yaml:"device,omitempty"`

	Store string       `yaml:"store"`
	Redis RedisConfig  `yaml:"redis"`
	OVSDB OVSDBConfig  `yaml:"ovsdb"`
	Sink  SinkConfig   `yaml:"sink"`
	Audit AuditConfig  `yaml:"audit"`
	Log   LogConfig    `yaml:"log"`
	Range *RangeConfig `yaml:"internal_range,omitempty"`

	// Auth limits which users vlanctl lets write. Empty allows everyone.
	Auth auth.Policy `yaml:"auth,omitempty"`

	// MetricsAddr serves /metrics when set, e.g. ":9101".
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// RedisConfig locates CONFIG_DB, STATE_DB and APPL_DB.
type RedisConfig struct {
	Addr string     `yaml:"addr"`
	SSH  *SSHConfig `yaml:"ssh,omitempty"`
}

// SSHConfig reaches Redis through an SSH tunnel to the switch.
type SSHConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port,omitempty"`
	User       string `yaml:"user"`
	Password   string `yaml:"password,omitempty"`
	KnownHosts string `yaml:"known_hosts,omitempty"`
}

// OVSDBConfig locates the OpenSwitch database.
type OVSDBConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// SinkConfig selects the hardware programming target.
type SinkConfig struct {
	Kind        string `yaml:"kind"`
	Bridge      string `yaml:"bridge,omitempty"`
	MaxAttempts int    `yaml:"max_attempts,omitempty"`
}

// AuditConfig configures the audit log.
type AuditConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int64  `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RangeConfig is an internal VLAN range applied at startup.
type RangeConfig struct {
	Start  int          `yaml:"start"`
	End    int          `yaml:"end"`
	Policy model.Policy `yaml:"policy,omitempty"`
}

// Default returns the settings used when no file exists.
func Default() *Settings {
	return &Settings{
		Store: StoreRedis,
		Redis: RedisConfig{Addr: "127.0.0.1:6379"},
		OVSDB: OVSDBConfig{Endpoint: "unix:/var/run/openvswitch/db.sock", Timeout: 10 * time.Second},
		Sink:  SinkConfig{Kind: SinkAppDB, Bridge: "br0", MaxAttempts: 5},
		Audit: AuditConfig{Path: "/var/log/vland/audit.log", MaxSizeMB: 10, MaxBackups: 5},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads settings from the default location.
func Load() (*Settings, error) {
	return LoadFrom(DefaultPath)
}

// LoadFrom reads settings from path over the defaults. A missing file
// yields the defaults.
func LoadFrom(path string) (*Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate checks enumerated fields.
func (s *Settings) Validate() error {
	switch s.Store {
	case StoreRedis, StoreOVSDB, StoreMemory:
	default:
		return fmt.Errorf("%w: unknown store %q", util.ErrInvalidConfig, s.Store)
	}
	switch s.Sink.Kind {
	case SinkAppDB, SinkNetlink, SinkLog:
	default:
		return fmt.Errorf("%w: unknown sink %q", util.ErrInvalidConfig, s.Sink.Kind)
	}
	if s.Sink.Kind == SinkAppDB && s.Store != StoreRedis {
		return fmt.Errorf("%w: sink %q requires store %q", util.ErrInvalidConfig, SinkAppDB, StoreRedis)
	}
	if s.Range != nil && s.Range.Policy == "" {
		s.Range.Policy = model.PolicyAscending
	}
	return nil
}

// InternalRange returns the configured startup range, if any.
func (s *Settings) InternalRange() (model.InternalRange, bool) {
	if s.Range == nil {
		return model.InternalRange{}, false
	}
	return model.InternalRange{Start: s.Range.Start, End: s.Range.End, Policy: s.Range.Policy}, true
}

// DeviceName returns Device, falling back to the hostname.
func (s *Settings) DeviceName() string {
	if s.Device != "" {
		return s.Device
	}
	host, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return host
}

// SaveTo writes settings to path.
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
