package video

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"icapture/pkg/types"
	"icapture/pkg/utils/image"
)

var FFmpegBinary = "ffmpeg"

type FFmpegOptions struct {
	Path    string
	Width   int
	Height  int
	FPS     int
	Encoder string
	Format  string
	Tag     string
}

// FFmpegWriter pipes JPEG frames into an ffmpeg process which encodes them
// with a codec Go has no native writer for.
type FFmpegWriter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	cnt    int
	closed bool
}

func (o FFmpegOptions) args() []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "image2pipe", "-c:v", "mjpeg",
		"-framerate", strconv.Itoa(o.FPS),
		"-i", "-",
		"-c:v", o.Encoder,
		"-s", fmt.Sprintf("%dx%d", o.Width, o.Height),
		"-r", strconv.Itoa(o.FPS),
	}
	if o.Encoder == "libx264" {
		args = append(args, "-pix_fmt", "yuv420p")
	}
	if o.Tag != "" {
		args = append(args, "-tag:v", o.Tag)
	}

	return append(args, "-f", o.Format, o.Path)
}

func NewFFmpegWriter(o FFmpegOptions) (*FFmpegWriter, error) {
	bin, err := exec.LookPath(FFmpegBinary)
	if err != nil {
		return nil, fmt.Errorf("%s codec needs ffmpeg: %w", o.Encoder, err)
	}
	w := &FFmpegWriter{cmd: exec.Command(bin, o.args()...)}
	w.cmd.Stderr = &w.stderr
	w.stdin, err = w.cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err = w.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return w, nil
}

func (w *FFmpegWriter) Add(frame types.Frame) error {
	data, err := image.ToJPEG(frame)
	if err != nil {
		return err
	}
	if _, err = w.stdin.Write(data); err != nil {
		return fmt.Errorf("write frame to ffmpeg: %w", err)
	}
	w.cnt++

	return nil
}

// Close flushes the pipe and waits for ffmpeg to finalize the container.
func (w *FFmpegWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.stdin.Close()
	if waitErr := w.cmd.Wait(); waitErr != nil {
		err = errors.Join(err, fmt.Errorf("ffmpeg: %w: %s", waitErr, bytes.TrimSpace(w.stderr.Bytes())))
	}

	return err
}

func (w *FFmpegWriter) GetCnt() int {
	return w.cnt
}
