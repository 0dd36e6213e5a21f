package camera

import (
	"fmt"
	"os"
	"testing"

	"icapture/pkg/capture"
	"icapture/pkg/device"
	"icapture/pkg/types"
	"icapture/pkg/utils/image"
)

func TestCamera(t *testing.T) {
	if _, err := os.Stat(DefaultDevice); err != nil {
		t.Skipf("no camera at %s", DefaultDevice)
	}

	b := NewBackend()
	infos, err := b.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) == 0 {
		t.Skip("no capture-capable device")
	}

	dev, err := b.Open(infos[0], capture.Format{Width: 640, Height: 480, FPS: 15, PixelFormat: types.PixelFormatMJPEG})
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	sizes := []Size{
		{Width: 640, Height: 480},
		{Width: 1280, Height: 720},
	}
	for _, size := range sizes {
		if err = dev.SetFrameSize(uint32(size.Width), uint32(size.Height)); err != nil {
			t.Fatal(err)
		}
		f, err := dev.Read()
		if err != nil {
			t.Fatal(err)
		}
		if _, err = image.Decode(f); err != nil {
			t.Fatalf("%s: %s", size, err)
		}
	}
}

func TestBackendList(t *testing.T) {
	if _, err := os.Stat(DefaultDevice); err != nil {
		t.Skipf("no camera at %s", DefaultDevice)
	}
	infos, err := NewBackend().List()
	if err != nil {
		t.Fatal(err)
	}
	for i, info := range infos {
		if info.Index != i {
			t.Fatalf("index %d at position %d", info.Index, i)
		}
	}
	if _, err = device.Names(NewBackend()); err != nil {
		t.Fatal(err)
	}
}

type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}
