package video

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

var ErrUnsupportedCodec = errors.New("unsupported codec")

// Codec selects the compression used for recordings.
type Codec string

const (
	H264 Codec = "H264"
	MJPG Codec = "MJPG"
	WMV3 Codec = "WMV3"
	X264 Codec = "X264"
	AVC1 Codec = "AVC1"
	DIVX Codec = "DIVX"
)

type codecInfo struct {
	ext string
	// ffmpeg encoder and container; empty for codecs written natively
	encoder string
	format  string
	tag     string
}

var codecs = map[Codec]codecInfo{
	H264: {ext: "mp4", encoder: "libx264", format: "mp4"},
	X264: {ext: "mp4", encoder: "libx264", format: "mp4"},
	AVC1: {ext: "mp4", encoder: "libx264", format: "mp4", tag: "avc1"},
	MJPG: {ext: "avi"},
	// ffmpeg has no WMV3 encoder; wmv2 is the closest it can write into an asf container.
	WMV3: {ext: "wmv", encoder: "wmv2", format: "asf"},
	DIVX: {ext: "avi", encoder: "mpeg4", format: "avi", tag: "DIVX"},
}

func ParseCodec(s string) (Codec, error) {
	c := Codec(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCodec, s)
	}

	return c, nil
}

func (c Codec) Valid() bool {
	_, ok := codecs[c]
	return ok
}

// Extension is the container file extension without the dot.
func (c Codec) Extension() string {
	return codecs[c].ext
}

func (c Codec) String() string {
	return string(c)
}

func (c *Codec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	codec, err := ParseCodec(s)
	if err != nil {
		return err
	}
	*c = codec

	return nil
}

func IsVideoExt(ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return false
	}
	for _, info := range codecs {
		if info.ext == ext {
			return true
		}
	}

	return false
}

// Factory opens a Writer bound to path.
type Factory func(path string, width, height, fps int) (Writer, error)

// Lookup resolves the writer factory for c.
func Lookup(c Codec) (Factory, error) {
	info, ok := codecs[c]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, c)
	}
	if info.encoder == "" {
		return func(path string, width, height, fps int) (Writer, error) {
			return NewBuilder(path, width, height, fps)
		}, nil
	}

	return func(path string, width, height, fps int) (Writer, error) {
		return NewFFmpegWriter(FFmpegOptions{
			Path:    path,
			Width:   width,
			Height:  height,
			FPS:     fps,
			Encoder: info.encoder,
			Format:  info.format,
			Tag:     info.tag,
		})
	}, nil
}
