package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"icapture/pkg/types"
	"icapture/pkg/utils"
	"icapture/pkg/video"
)

const DefaultFile = "./config.json"

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger()
}

// MaxFPS is the highest frame rate a config or a running handle accepts.
const MaxFPS = 1000

// Config describes the capture device and how captures are stored.
type Config struct {
	// DeviceID selects the device by enumeration index; ignored when DeviceName is set.
	DeviceID    int         `json:"deviceId"`
	DeviceName  string      `json:"deviceName,omitempty"`
	FPS         uint32      `json:"fps"`
	FrameWidth  uint32      `json:"frameWidth"`
	FrameHeight uint32      `json:"frameHeight"`
	DataDir     string      `json:"dataDir"`
	Codec       video.Codec `json:"codec"`

	PixelFormat types.PixelFormat `json:"pixelFormat,omitempty"`
	// Strict turns fps / frame size mismatches during negotiation into errors.
	Strict    bool           `json:"strict,omitempty"`
	Controls  types.Controls `json:"controls,omitempty"`
	NTPServer string         `json:"ntpServer,omitempty"`
}

func Default() Config {
	return Config{
		DeviceID:    0,
		FPS:         30,
		FrameWidth:  1920,
		FrameHeight: 1080,
		DataDir:     "./icapture_data",
		Codec:       video.H264,
		PixelFormat: types.PixelFormatMJPEG,
	}
}

// Load reads the config file at path. A missing or malformed file falls back
// to Default with a warning; an invalid one is an error.
func Load(path string) (Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		logger.Warnf("cannot read config file '%s': %s", path, err)
		cfg = Default()
		logger.Warnf("falling back to default config %+v", cfg)
		return cfg, nil
	}
	if err = cfg.Validate(); err != nil {
		return cfg, err
	}
	logger.Debugf("using config %+v", cfg)

	return cfg, nil
}

func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err = json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config err: %w", err)
	}

	return cfg, nil
}

func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c Config) Validate() error {
	var errs []error
	if c.DeviceName == "" && c.DeviceID < 0 {
		errs = append(errs, fmt.Errorf("deviceId must not be negative, got %d", c.DeviceID))
	}
	if c.FPS == 0 {
		errs = append(errs, errors.New("fps must be positive"))
	} else if c.FPS > MaxFPS {
		errs = append(errs, fmt.Errorf("fps must not exceed %d, got %d", MaxFPS, c.FPS))
	}
	if c.FrameWidth == 0 || c.FrameHeight == 0 {
		errs = append(errs, fmt.Errorf("frame size must be positive, got %dx%d", c.FrameWidth, c.FrameHeight))
	}
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("dataDir can not be empty"))
	}
	if !c.Codec.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", video.ErrUnsupportedCodec, c.Codec))
	}
	switch c.PixelFormat {
	case "", types.PixelFormatMJPEG, types.PixelFormatRGB24:
	default:
		errs = append(errs, fmt.Errorf("unsupported pixel format %q", c.PixelFormat))
	}

	return errors.Join(errs...)
}

// Device describes the configured device for log and error messages.
func (c Config) Device() string {
	if c.DeviceName != "" {
		return c.DeviceName
	}

	return fmt.Sprintf("#%d", c.DeviceID)
}
