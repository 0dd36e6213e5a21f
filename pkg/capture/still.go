package capture

import (
	"errors"
	"fmt"

	"icapture/pkg/storage/consts"
	"icapture/pkg/utils/image"
)

// GrabFrameTo reads exactly one frame and stores it at path as a lossless PNG.
func (c *Capture) GrabFrameTo(path string) (bool, error) {
	logger.Debugf("grab frame to file '%s'", path)
	release, ok := c.guard.TryAcquire()
	if !ok {
		logger.Error(ErrResourceBusy)
		return false, ErrResourceBusy
	}
	defer release()

	frame, err := c.read()
	if errors.Is(err, ErrClosed) {
		return false, err
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrGrabFrame, err)
		logger.Error(err)
		return false, err
	}
	if frame.Empty() {
		logger.Error(ErrGrabFrame)
		return false, ErrGrabFrame
	}

	img, err := image.Decode(frame)
	if err != nil {
		return false, fmt.Errorf("decode frame: %w", err)
	}
	if err = image.EncodePNGFile(img, path); err != nil {
		return false, &Error{Kind: ErrCreateFileDirectory, Subject: path, Err: err}
	}

	return true, nil
}

// GrabFrame stores one frame as <data dir>/<timestamp>.png and returns the path.
func (c *Capture) GrabFrame() (string, error) {
	path := c.newFilePath(consts.DefaultImageExt)
	if _, err := c.GrabFrameTo(path); err != nil {
		return "", err
	}

	return path, nil
}
