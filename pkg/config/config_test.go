package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"icapture/pkg/video"
)

func TestLoadValidFile(t *testing.T) {
	want := Config{
		DeviceID:    7,
		FPS:         42,
		FrameWidth:  2560,
		FrameHeight: 1440,
		DataDir:     "test directory",
		Codec:       video.H264,
		PixelFormat: "MJPG",
		Controls:    map[uint32]int32{10094850: 3000},
	}
	path := filepath.Join(t.TempDir(), "config.json")
	if err := want.Save(path); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.DeviceID != want.DeviceID || got.FPS != want.FPS || got.FrameWidth != want.FrameWidth ||
		got.FrameHeight != want.FrameHeight || got.DataDir != want.DataDir || got.Codec != want.Codec {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.Controls[10094850] != 3000 {
		t.Fatalf("controls = %v", got.Controls)
	}
}

func TestLoadMissingFileDefaults(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatal(err)
	}
	if got.DataDir != Default().DataDir || got.Codec != Default().Codec || got.FPS != Default().FPS {
		t.Fatalf("got %+v, want default", got)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"deviceName":"TestCam","codec":"MJPG"}`), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.DeviceName != "TestCam" || got.Codec != video.MJPG || got.FPS != 30 {
		t.Fatalf("got %+v", got)
	}
	if got.Device() != "TestCam" {
		t.Fatalf("device = %q", got.Device())
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Config)
		err    error
	}{
		{"default", func(*Config) {}, nil},
		{"zero fps", func(c *Config) { c.FPS = 0 }, errors.New("")},
		{"fps too high", func(c *Config) { c.FPS = MaxFPS + 1 }, errors.New("")},
		{"fps overflowing interval", func(c *Config) { c.FPS = 1 << 31 }, errors.New("")},
		{"max fps", func(c *Config) { c.FPS = MaxFPS }, nil},
		{"zero width", func(c *Config) { c.FrameWidth = 0 }, errors.New("")},
		{"empty dir", func(c *Config) { c.DataDir = " " }, errors.New("")},
		{"bad codec", func(c *Config) { c.Codec = "VP9" }, video.ErrUnsupportedCodec},
		{"bad pixel format", func(c *Config) { c.PixelFormat = "YUYV" }, errors.New("")},
		{"negative index", func(c *Config) { c.DeviceID = -1 }, errors.New("")},
		{"negative index with name", func(c *Config) { c.DeviceID = -1; c.DeviceName = "cam" }, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := Default()
			c.modify(&cfg)
			err := cfg.Validate()
			if c.err == nil {
				if err != nil {
					t.Fatal(err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(c.err, video.ErrUnsupportedCodec) && !errors.Is(err, video.ErrUnsupportedCodec) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c Config) { changes <- c })
	}()
	// give the watcher time to register
	time.Sleep(200 * time.Millisecond)

	cfg.FPS = 15
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	select {
	case c := <-changes:
		if c.FPS != 15 {
			t.Fatalf("fps = %d, want 15", c.FPS)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no config change observed")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("watch did not return after cancel")
	}
}
