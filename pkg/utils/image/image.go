package image

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"icapture/pkg/storage/consts"
	"icapture/pkg/types"
)

const DefaultJPEGQuality = 90

func RGBToRGBA(in, out []byte, width, height int) {
	outStride := width * 4
	inStride := len(in) / height

	for i := 0; i < height; i++ {
		oIndex := i * outStride
		iIndex := i * inStride
		for j := 0; j < width; j++ {
			out[oIndex] = in[iIndex]
			out[oIndex+1] = in[iIndex+1]
			out[oIndex+2] = in[iIndex+2]
			out[oIndex+3] = 0xff

			oIndex += 4
			iIndex += 3
		}
	}
}

func DecodeRGB(data []byte, width, height int) image.Image {
	i := image.NewRGBA(image.Rect(0, 0, width, height))
	RGBToRGBA(data, i.Pix, width, height)

	return i
}

// Decode turns a raw device frame into an image.
func Decode(frame types.Frame) (image.Image, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	switch frame.Format {
	case types.PixelFormatMJPEG:
		return jpeg.Decode(bytes.NewReader(frame.Data))
	case types.PixelFormatRGB24:
		if len(frame.Data) < frame.Width*frame.Height*3 {
			return nil, fmt.Errorf("short rgb24 frame: %d bytes for %dx%d", len(frame.Data), frame.Width, frame.Height)
		}
		return DecodeRGB(frame.Data, frame.Width, frame.Height), nil
	default:
		return nil, fmt.Errorf("unsupported pixel format %q", frame.Format)
	}
}

func EncodeJPEG(img image.Image, dst io.Writer, quality int) error {
	return jpeg.Encode(dst, img, &jpeg.Options{Quality: quality})
}

// ToJPEG returns the frame as JPEG bytes, passing MJPEG frames through untouched.
func ToJPEG(frame types.Frame) ([]byte, error) {
	if frame.Format == types.PixelFormatMJPEG {
		return frame.Data, nil
	}
	img, err := Decode(frame)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err = EncodeJPEG(img, &buf, DefaultJPEGQuality); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// EncodePNGFile writes img to file as an uncompressed (lossless) PNG.
func EncodePNGFile(img image.Image, file string) error {
	f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, consts.DefaultFilePerm)
	if err != nil {
		return err
	}
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err = enc.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
