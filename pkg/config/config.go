package config

import (
	"os"
	"time"

	"github.com/aegisfleet/console/pkg/util"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type HubConfig struct {
	URL                  string `yaml:"url" validate:"required,url"`
	ReconnectMaxDelaySec int    `yaml:"reconnectMaxDelaySecs" validate:"gte=0"`
}

type SnapshotConfig struct {
	URL         string `yaml:"url" validate:"required,url"`
	PageSize    int    `yaml:"pageSize" validate:"gte=0"`
	MaxAttempts int    `yaml:"maxAttempts" validate:"gte=0"`
	TimeoutSec  int    `yaml:"timeoutSecs" validate:"gte=0"`
}

type AuthConfig struct {
	TokenEndpoint   string `yaml:"tokenEndpoint" validate:"omitempty,url"`
	Email           string `yaml:"email"`
	Password        string `yaml:"password"`
	StaticToken     string `yaml:"staticToken"`
	RefreshSkewSecs int    `yaml:"refreshSkewSecs" validate:"gte=0"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

type RenderConfig struct {
	FrameIntervalMS     int     `yaml:"frameIntervalMS" validate:"gte=0"`
	AnimationDurationMS int     `yaml:"animationDurationMS" validate:"gte=0"`
	StaleAfterSecs      int     `yaml:"staleAfterSecs" validate:"gte=0"`
	FallbackLatitude    float64 `yaml:"fallbackLatitude"`
	FallbackLongitude   float64 `yaml:"fallbackLongitude"`
}

type PushConfig struct {
	ServiceAccountKey string   `yaml:"serviceAccountKey"`
	OperatorTokens    []string `yaml:"operatorTokens"`
}

type ConsoleConfig struct {
	Hub      HubConfig      `yaml:"hub" validate:"required"`
	Snapshot SnapshotConfig `yaml:"snapshot" validate:"required"`
	Auth     AuthConfig     `yaml:"auth"`
	Server   ServerConfig   `yaml:"server"`
	Render   RenderConfig   `yaml:"render"`
	Push     PushConfig     `yaml:"push"`
}

func (c *ConsoleConfig) FrameInterval() time.Duration {
	return time.Duration(c.Render.FrameIntervalMS) * time.Millisecond
}

func (c *ConsoleConfig) AnimationDuration() time.Duration {
	return time.Duration(c.Render.AnimationDurationMS) * time.Millisecond
}

func (c *ConsoleConfig) StaleAfter() time.Duration {
	return time.Duration(c.Render.StaleAfterSecs) * time.Second
}

// Load reads the console configuration from path, overlays AEGIS_*
// environment variables and applies defaults. Validation failures are
// returned before any default is filled in so a broken file never half
// loads.
func Load(path string) (*ConsoleConfig, error) {
	var cfg ConsoleConfig

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	applyEnvironmentOverrides(&cfg)

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyEnvironmentOverrides(cfg *ConsoleConfig) {
	env := util.GetEnvironmentVariables()

	if env["AEGIS_HUB_URL"] != "" {
		cfg.Hub.URL = env["AEGIS_HUB_URL"]
	}
	if env["AEGIS_SNAPSHOT_URL"] != "" {
		cfg.Snapshot.URL = env["AEGIS_SNAPSHOT_URL"]
	}
	if env["AEGIS_AUTH_TOKEN"] != "" {
		cfg.Auth.StaticToken = env["AEGIS_AUTH_TOKEN"]
	}
	if env["AEGIS_AUTH_ENDPOINT"] != "" {
		cfg.Auth.TokenEndpoint = env["AEGIS_AUTH_ENDPOINT"]
	}
	if env["AEGIS_AUTH_EMAIL"] != "" {
		cfg.Auth.Email = env["AEGIS_AUTH_EMAIL"]
	}
	if env["AEGIS_AUTH_PASSWORD"] != "" {
		cfg.Auth.Password = env["AEGIS_AUTH_PASSWORD"]
	}
	if env["AEGIS_LISTEN"] != "" {
		cfg.Server.Listen = env["AEGIS_LISTEN"]
	}
	if env["AEGIS_FIREBASE_SERVICE_ACCOUNT"] != "" {
		cfg.Push.ServiceAccountKey = env["AEGIS_FIREBASE_SERVICE_ACCOUNT"]
	}
}

func applyDefaults(cfg *ConsoleConfig) {
	if cfg.Hub.ReconnectMaxDelaySec == 0 {
		cfg.Hub.ReconnectMaxDelaySec = 30
	}
	if cfg.Snapshot.PageSize == 0 {
		cfg.Snapshot.PageSize = 100
	}
	if cfg.Snapshot.MaxAttempts == 0 {
		cfg.Snapshot.MaxAttempts = 4
	}
	if cfg.Snapshot.TimeoutSec == 0 {
		cfg.Snapshot.TimeoutSec = 10
	}
	if cfg.Auth.RefreshSkewSecs == 0 {
		cfg.Auth.RefreshSkewSecs = 60
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Render.FrameIntervalMS == 0 {
		cfg.Render.FrameIntervalMS = 100
	}
	if cfg.Render.AnimationDurationMS == 0 {
		// Slightly above the expected telemetry cadence so markers are
		// still easing when the next position lands.
		cfg.Render.AnimationDurationMS = 2000
	}
	if cfg.Render.StaleAfterSecs == 0 {
		cfg.Render.StaleAfterSecs = 90
	}
	if cfg.Render.FallbackLatitude == 0 && cfg.Render.FallbackLongitude == 0 {
		cfg.Render.FallbackLatitude = 30.0444
		cfg.Render.FallbackLongitude = 31.2357
	}
}
