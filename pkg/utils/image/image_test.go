package image

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"icapture/pkg/types"
)

const (
	width  = 8
	height = 4
)

func rgbFrame() types.Frame {
	data := make([]byte, width*height*3)
	for i := 0; i < len(data); i += 3 {
		data[i] = 200
		data[i+1] = 100
		data[i+2] = 50
	}

	return types.Frame{Data: data, Format: types.PixelFormatRGB24, Width: width, Height: height}
}

func TestRGB(t *testing.T) {
	img, err := Decode(rgbFrame())
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, a := img.At(3, 2).RGBA()
	if r>>8 != 200 || g>>8 != 100 || b>>8 != 50 || a>>8 != 0xff {
		t.Fatalf("unexpected pixel %d %d %d %d", r>>8, g>>8, b>>8, a>>8)
	}
}

func TestToJPEG(t *testing.T) {
	data, err := ToJPEG(rgbFrame())
	if err != nil {
		t.Fatal(err)
	}
	img, err := Decode(types.Frame{Data: data, Format: types.PixelFormatMJPEG, Width: width, Height: height})
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != width || img.Bounds().Dy() != height {
		t.Fatalf("bounds = %v", img.Bounds())
	}

	passthrough, err := ToJPEG(types.Frame{Data: data, Format: types.PixelFormatMJPEG, Width: width, Height: height})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(passthrough, data) {
		t.Fatal("mjpeg frames should pass through")
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name  string
		frame types.Frame
	}{
		{"empty", types.Frame{Format: types.PixelFormatMJPEG, Width: 1, Height: 1}},
		{"short rgb", types.Frame{Data: []byte{1, 2, 3}, Format: types.PixelFormatRGB24, Width: 2, Height: 2}},
		{"unknown format", types.Frame{Data: []byte{1}, Format: "YUYV", Width: 1, Height: 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Decode(c.frame); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestEncodePNGFile(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	img.Set(1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	file := filepath.Join(t.TempDir(), "still.png")
	if err := EncodePNGFile(img, file); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(file)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := decoded.At(1, 1).RGBA()
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 {
		t.Fatal("png should be lossless")
	}
}
