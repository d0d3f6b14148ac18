package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "POOL_ASSISTANT"
	FileName  = "pool-assistant"
)

type Device struct {
	Address            string
	Name               string
	ServiceUUID        string
	CharacteristicUUID string
}

type Link struct {
	ConnectTimeout    time.Duration
	Backoff           time.Duration
	CommandTimeout    time.Duration
	DisconnectTimeout time.Duration
}

type Clock struct {
	LeadIn time.Duration
	Tick   time.Duration
}

type Buzzer struct {
	Enabled   bool
	Pin       string
	ActiveLow bool
	Short     time.Duration
	Long      time.Duration
}

type Log struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Config struct {
	Device            Device
	Link              Link
	Clock             Clock
	Buzzer            Buzzer
	Log               Log
	TelemetryInterval time.Duration
	SessionDir        string
	PlanDir           string
	Simulate          bool
	SimulateHTTPAddr  string
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("device.address", "94:A9:90:7C:B1:CE")
	v.SetDefault("device.name", "ESP32CE_BLE")
	v.SetDefault("device.service_uuid", "000000ff-0000-1000-8000-00805f9b34fb")
	v.SetDefault("device.characteristic_uuid", "0000ff01-0000-1000-8000-00805f9b34fb")

	v.SetDefault("link.connect_timeout", 10*time.Second)
	v.SetDefault("link.backoff", 2*time.Second)
	v.SetDefault("link.command_timeout", 2*time.Second)
	v.SetDefault("link.disconnect_timeout", 3*time.Second)

	v.SetDefault("clock.lead_in", 15*time.Second)
	v.SetDefault("clock.tick", 50*time.Millisecond)

	v.SetDefault("telemetry.interval", time.Second)
	v.SetDefault("session.dir", "sessions")
	v.SetDefault("plan.dir", "tasks")

	v.SetDefault("buzzer.enabled", true)
	v.SetDefault("buzzer.pin", "GPIO17")
	v.SetDefault("buzzer.active_low", true)
	v.SetDefault("buzzer.short", 100*time.Millisecond)
	v.SetDefault("buzzer.long", time.Second)

	v.SetDefault("simulate.enabled", false)
	v.SetDefault("simulate.http_addr", ":9901")

	v.SetDefault("log.file", "pool-assistant.log")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", false)
}

// BindFlags defines the command-line flags on fs and binds them to their keys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String("address", "", "wearable BLE address")
	fs.String("name", "", "wearable BLE local name, used when no address matches")
	fs.String("plan", "", "directory of Task N.json files or a YAML plan file")
	fs.String("sessions", "", "directory for session logs")
	fs.Bool("simulate", false, "use the simulated wearable instead of Bluetooth")
	fs.String("simulate-http", "", "listen address of the simulated wearable's control panel")
	fs.Bool("buzzer", true, "drive the buzzer GPIO pin; with --buzzer=false cues are only logged")
	fs.String("log-file", "", "rotating log file")

	bindings := map[string]string{
		"device.address":     "address",
		"device.name":        "name",
		"plan.dir":           "plan",
		"session.dir":        "sessions",
		"simulate.enabled":   "simulate",
		"buzzer.enabled":     "buzzer",
		"simulate.http_addr": "simulate-http",
		"log.file":           "log-file",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	return nil
}

// ReadFile reads path, or searches the working directory and
// $HOME/.pool-assistant when path is empty. A missing file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".pool-assistant"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load reads the typed configuration out of v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Device: Device{
			Address:            v.GetString("device.address"),
			Name:               v.GetString("device.name"),
			ServiceUUID:        v.GetString("device.service_uuid"),
			CharacteristicUUID: v.GetString("device.characteristic_uuid"),
		},
		Link: Link{
			ConnectTimeout:    v.GetDuration("link.connect_timeout"),
			Backoff:           v.GetDuration("link.backoff"),
			CommandTimeout:    v.GetDuration("link.command_timeout"),
			DisconnectTimeout: v.GetDuration("link.disconnect_timeout"),
		},
		Clock: Clock{
			LeadIn: v.GetDuration("clock.lead_in"),
			Tick:   v.GetDuration("clock.tick"),
		},
		Buzzer: Buzzer{
			Enabled:   v.GetBool("buzzer.enabled"),
			Pin:       v.GetString("buzzer.pin"),
			ActiveLow: v.GetBool("buzzer.active_low"),
			Short:     v.GetDuration("buzzer.short"),
			Long:      v.GetDuration("buzzer.long"),
		},
		Log: Log{
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
			Compress:   v.GetBool("log.compress"),
		},
		TelemetryInterval: v.GetDuration("telemetry.interval"),
		SessionDir:        v.GetString("session.dir"),
		PlanDir:           v.GetString("plan.dir"),
		Simulate:          v.GetBool("simulate.enabled"),
		SimulateHTTPAddr:  v.GetString("simulate.http_addr"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	durations := map[string]time.Duration{
		"link.connect_timeout":    c.Link.ConnectTimeout,
		"link.backoff":            c.Link.Backoff,
		"link.command_timeout":    c.Link.CommandTimeout,
		"link.disconnect_timeout": c.Link.DisconnectTimeout,
		"clock.lead_in":           c.Clock.LeadIn,
		"clock.tick":              c.Clock.Tick,
		"telemetry.interval":      c.TelemetryInterval,
		"buzzer.short":            c.Buzzer.Short,
		"buzzer.long":             c.Buzzer.Long,
	}
	for key, d := range durations {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", key, d))
		}
	}
	if c.Device.ServiceUUID == "" {
		errs = append(errs, errors.New("device.service_uuid is required"))
	}
	if c.Device.CharacteristicUUID == "" {
		errs = append(errs, errors.New("device.characteristic_uuid is required"))
	}
	if c.Device.Address == "" && c.Device.Name == "" {
		errs = append(errs, errors.New("device.address or device.name is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
