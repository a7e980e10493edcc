// Package config loads palmrest settings from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/palmrest/internal/detector"
	"github.com/ayusman/palmrest/internal/gesture"
)

// ErrInvalid is returned when a configuration fails validation.
var ErrInvalid = errors.New("invalid config")

// Config represents the complete palmrest configuration.
type Config struct {
	Addr     string         `yaml:"addr" validate:"required"`
	LogLevel string         `yaml:"log_level" validate:"oneof=debug info warn error"`
	Tray     bool           `yaml:"tray"`
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Gesture  GestureConfig  `yaml:"gesture"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Plugins  PluginsConfig  `yaml:"plugins"`
}

// CameraConfig contains capture and encoding settings.
type CameraConfig struct {
	DeviceID    int `yaml:"device_id" validate:"gte=0"`
	FPS         int `yaml:"fps" validate:"gte=1,lte=60"`
	JPEGQuality int `yaml:"jpeg_quality" validate:"gte=1,lte=100"`
}

// DetectorConfig contains landmark model settings.
type DetectorConfig struct {
	MinDetectionConfidence float64 `yaml:"min_detection_confidence" validate:"gte=0,lte=1"`
	MinTrackingConfidence  float64 `yaml:"min_tracking_confidence" validate:"gte=0,lte=1"`
	ScriptPath             string  `yaml:"script_path"`
}

// GestureConfig contains palming classifier thresholds.
type GestureConfig struct {
	MaxDist     float64       `yaml:"max_dist" validate:"gt=0,lt=1"`
	MinDist     float64       `yaml:"min_dist" validate:"gt=0,ltfield=MaxDist"`
	FrameMargin float64       `yaml:"frame_margin" validate:"gte=0,lt=0.5"`
	ReleaseBand float64       `yaml:"release_band" validate:"gte=0"`
	FaceMemory  time.Duration `yaml:"face_memory" validate:"gte=0"` // 0 keeps the last face forever
}

// MQTTConfig contains the optional event broker settings. An empty Broker disables publishing.
type MQTTConfig struct {
	Broker      string `yaml:"broker" validate:"omitempty,hostname_port"`
	TopicPrefix string `yaml:"topic_prefix" validate:"required_with=Broker"`
	ClientID    string `yaml:"client_id"`
	QoS         byte   `yaml:"qos" validate:"lte=2"`
}

// PluginsConfig locates rest hook plugins. An empty Dir disables them.
type PluginsConfig struct {
	Dir       string `yaml:"dir"`
	TimeoutMs int    `yaml:"timeout_ms" validate:"gte=100,lte=60000"`
}

// Default returns the built-in configuration.
func Default() Config {
	th := gesture.DefaultThresholds()
	dc := detector.DefaultConfig()

	return Config{
		Addr:     ":5000",
		LogLevel: "info",
		Camera: CameraConfig{
			DeviceID:    0,
			FPS:         15,
			JPEGQuality: 90,
		},
		Detector: DetectorConfig{
			MinDetectionConfidence: dc.MinConfidence,
			MinTrackingConfidence:  dc.MinTrackingConf,
		},
		Gesture: GestureConfig{
			MaxDist:     th.MaxDist,
			MinDist:     th.MinDist,
			FrameMargin: th.FrameMargin,
			ReleaseBand: th.ReleaseBand,
			FaceMemory:  th.FaceMemory,
		},
		MQTT: MQTTConfig{
			TopicPrefix: "palmrest",
		},
		Plugins: PluginsConfig{
			TimeoutMs: 5000,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field ranges.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Thresholds converts the gesture settings for the classifier.
func (g GestureConfig) Thresholds() gesture.Thresholds {
	return gesture.Thresholds{
		MaxDist:     g.MaxDist,
		MinDist:     g.MinDist,
		FrameMargin: g.FrameMargin,
		ReleaseBand: g.ReleaseBand,
		FaceMemory:  g.FaceMemory,
	}
}

// Options converts the detector settings for the landmark extractor.
func (d DetectorConfig) Options() detector.Config {
	return detector.Config{
		MinConfidence:   d.MinDetectionConfidence,
		MinTrackingConf: d.MinTrackingConfidence,
		ScriptPath:      d.ScriptPath,
	}
}
