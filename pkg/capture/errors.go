package capture

import (
	"errors"
	"fmt"

	"icapture/pkg/video"
)

var (
	ErrCreateFileDirectory = errors.New("cannot create file or directory")
	ErrDeviceNotFound      = errors.New("cannot find capture device")
	ErrDeviceOpen          = errors.New("cannot open capture device")
	ErrGrabFrame           = errors.New("cannot grab a frame")
	ErrResourceBusy        = errors.New("resource is busy")
	ErrUnsupportedCodec    = video.ErrUnsupportedCodec
	ErrPropertyMismatch    = errors.New("property mismatch")
	ErrNotRecording        = errors.New("not recording")
	ErrStopTimeout         = errors.New("timed out waiting for recording to stop")
	ErrClosed              = errors.New("capture closed")
	// ErrDisplayClosed is returned by a Display when the user closed it; it ends a preview normally.
	ErrDisplayClosed = errors.New("display closed")
)

// Error reports a failure tied to a path or a device.
type Error struct {
	Kind    error
	Subject string
	Err     error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s '%s'", e.Kind, e.Subject)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}

	return s
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}
