package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/Agrid-Dev/heatzyswitch/internal/gizwits"
	"github.com/Agrid-Dev/heatzyswitch/internal/heatzy"
	"github.com/Agrid-Dev/heatzyswitch/internal/logger"
)

// EnvPrefix marks environment variables read as configuration overrides.
const EnvPrefix = "HEATZY_"

const redacted = "********"

type Config struct {
	LogLevel string `koanf:"log_level" json:"log_level" yaml:"log_level"`

	Device      DeviceConfig      `koanf:"device" json:"device" yaml:"device"`
	API         APIConfig         `koanf:"api" json:"api" yaml:"api"`
	Controllers ControllersConfig `koanf:"controllers" json:"controllers" yaml:"controllers"`
}

type DeviceConfig struct {
	DID      string `koanf:"did" json:"did" yaml:"did"`
	Name     string `koanf:"name" json:"name" yaml:"name"`
	Username string `koanf:"username" json:"username" yaml:"username"`
	Password string `koanf:"password" json:"password" yaml:"password"`
	Serial   string `koanf:"serial" json:"serial" yaml:"serial"`

	Interval int  `koanf:"interval" json:"interval" yaml:"interval"` // seconds
	Trace    bool `koanf:"trace" json:"trace" yaml:"trace"`

	SwitchOn  string `koanf:"switchOn" json:"switchOn" yaml:"switchOn"`
	SwitchOff string `koanf:"switchOff" json:"switchOff" yaml:"switchOff"`
}

type APIConfig struct {
	BaseURL       string        `koanf:"base_url" json:"base_url" yaml:"base_url"`
	ApplicationID string        `koanf:"application_id" json:"application_id" yaml:"application_id"`
	Lang          string        `koanf:"lang" json:"lang" yaml:"lang"`
	Timeout       time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`
}

type ControllersConfig struct {
	HTTP   HTTPConfig   `koanf:"http" json:"http" yaml:"http"`
	MQTT   MQTTConfig   `koanf:"mqtt" json:"mqtt" yaml:"mqtt"`
	Modbus ModbusConfig `koanf:"modbus" json:"modbus" yaml:"modbus"`
	NATS   NATSConfig   `koanf:"nats" json:"nats" yaml:"nats"`
}

type HTTPConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" json:"addr" yaml:"addr"`
}

type MQTTConfig struct {
	Enabled   bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	BrokerURL string `koanf:"broker_url" json:"broker_url" yaml:"broker_url"`
	ClientID  string `koanf:"client_id" json:"client_id" yaml:"client_id"`
	BaseTopic string `koanf:"base_topic" json:"base_topic" yaml:"base_topic"`
	QoS       byte   `koanf:"qos" json:"qos" yaml:"qos"`
	Username  string `koanf:"username" json:"username" yaml:"username"`
	Password  string `koanf:"password" json:"password" yaml:"password"`
}

type ModbusConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" json:"addr" yaml:"addr"`
	UnitID  byte   `koanf:"unit_id" json:"unit_id" yaml:"unit_id"`
}

type NATSConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	URL     string `koanf:"url" json:"url" yaml:"url"`
	Subject string `koanf:"subject" json:"subject" yaml:"subject"`
}

// Default returns the configuration used when neither file nor environment
// sets a key.
func Default() Config {
	return Config{
		LogLevel: logger.InfoLevel,
		Device: DeviceConfig{
			Interval:  int(heatzy.DefaultInterval / time.Second),
			SwitchOn:  heatzy.DefaultSwitchOn.String(),
			SwitchOff: heatzy.DefaultSwitchOff.String(),
		},
		API: APIConfig{
			BaseURL:       gizwits.DefaultBaseURL,
			ApplicationID: gizwits.DefaultApplicationID,
			Lang:          gizwits.DefaultLang,
			Timeout:       gizwits.DefaultTimeout,
		},
		Controllers: ControllersConfig{
			HTTP:   HTTPConfig{Enabled: true, Addr: ":8080"},
			MQTT:   MQTTConfig{BrokerURL: "tcp://localhost:1883"},
			Modbus: ModbusConfig{Addr: "127.0.0.1:1502", UnitID: 1},
			NATS:   NATSConfig{URL: "nats://127.0.0.1:4222"},
		},
	}
}

// LoadConfig layers defaults, the optional config file and HEATZY_*
// environment variables, in that order of precedence (last wins).
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := loadFile(k, path); err != nil {
			return Config{}, err
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKeyTransform(strings.TrimPrefix(key, EnvPrefix)), value
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			// Config file missing → use defaults
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		parser = kyaml.Parser()
	case ".json":
		parser = kjson.Parser()
	default:
		return fmt.Errorf("unsupported config extension %q", ext)
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// deviceKeys maps lowercased env spellings to the camelCase device keys.
var deviceKeys = map[string]string{
	"switch_on":  "switchOn",
	"switch_off": "switchOff",
	"switchon":   "switchOn",
	"switchoff":  "switchOff",
}

// envKeyTransform turns an env var name (prefix already stripped) into a
// koanf key path, e.g. CONTROLLERS_MQTT_BROKER_URL -> controllers.mqtt.broker_url.
func envKeyTransform(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	parts := strings.Split(s, "_")
	switch parts[0] {
	case "controllers":
		// controllers_<surface>_<field...>
		if len(parts) < 3 {
			return s
		}
		return "controllers." + parts[1] + "." + strings.Join(parts[2:], "_")

	case "device":
		if len(parts) < 2 {
			return s
		}
		field := strings.Join(parts[1:], "_")
		if alias, ok := deviceKeys[field]; ok {
			field = alias
		}
		return "device." + field

	case "api":
		if len(parts) < 2 {
			return s
		}
		return "api." + strings.Join(parts[1:], "_")
	}
	return s
}

func (c Config) Validate() error {
	var errs []error
	if c.Device.DID == "" {
		errs = append(errs, errors.New("device.did is required"))
	}
	if c.Device.Username == "" {
		errs = append(errs, errors.New("device.username is required"))
	}
	if c.Device.Password == "" {
		errs = append(errs, errors.New("device.password is required"))
	}
	if c.Controllers.Modbus.Enabled && (c.Controllers.Modbus.UnitID == 0 || c.Controllers.Modbus.UnitID > 247) {
		errs = append(errs, fmt.Errorf("controllers.modbus.unit_id %d out of range 1..247", c.Controllers.Modbus.UnitID))
	}
	if c.Controllers.MQTT.Enabled && c.Controllers.MQTT.QoS > 1 {
		errs = append(errs, errors.New("controllers.mqtt.qos must be 0 or 1"))
	}
	return errors.Join(errs...)
}

// Settings returns the host-level device settings; on/off identifiers are
// corrected later by heatzy.Settings.Resolve.
func (c Config) Settings() heatzy.Settings {
	return heatzy.Settings{
		DeviceID:        c.Device.DID,
		Name:            c.Device.Name,
		Username:        c.Device.Username,
		Password:        c.Device.Password,
		Serial:          c.Device.Serial,
		IntervalSeconds: c.Device.Interval,
		Trace:           c.Device.Trace,
		SwitchOn:        c.Device.SwitchOn,
		SwitchOff:       c.Device.SwitchOff,
	}
}

func (c Config) Gizwits() gizwits.Config {
	return gizwits.Config{
		BaseURL:       c.API.BaseURL,
		ApplicationID: c.API.ApplicationID,
		Lang:          c.API.Lang,
		Timeout:       c.API.Timeout,
	}
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Device.Password != "" {
		c.Device.Password = redacted
	}
	if c.Controllers.MQTT.Password != "" {
		c.Controllers.MQTT.Password = redacted
	}
	return c
}

// PrintYAML writes the effective configuration with secrets redacted.
func (c Config) PrintYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.Redacted()); err != nil {
		return err
	}
	return enc.Close()
}
