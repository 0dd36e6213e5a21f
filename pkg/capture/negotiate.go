package capture

import (
	"fmt"
)

func negotiateFPS(dev Device, fps uint32) (bool, error) {
	if err := dev.SetFPS(fps); err != nil {
		return false, fmt.Errorf("set fps %d: %w", fps, err)
	}
	logger.Debugf("set fps: %d", fps)

	return verifyFPS(dev, fps)
}

func verifyFPS(dev Device, expected uint32) (bool, error) {
	actual, err := dev.FPS()
	if err != nil {
		return false, fmt.Errorf("get fps: %w", err)
	}
	logger.Debugf("get fps: %d", actual)
	if actual != expected {
		logger.Warnf("fps mismatch: expected %d, actual %d", expected, actual)
		return false, nil
	}

	return true, nil
}

func negotiateFrameSize(dev Device, width, height uint32) (bool, error) {
	if err := dev.SetFrameSize(width, height); err != nil {
		return false, fmt.Errorf("set frame size %dx%d: %w", width, height, err)
	}
	logger.Debugf("set frame size: %dx%d", width, height)

	return verifyFrameSize(dev, width, height)
}

func verifyFrameSize(dev Device, width, height uint32) (bool, error) {
	w, h, err := dev.FrameSize()
	if err != nil {
		return false, fmt.Errorf("get frame size: %w", err)
	}
	logger.Debugf("get frame size: %dx%d", w, h)
	if w != width || h != height {
		logger.Warnf("frame size mismatch: expected %dx%d, actual %dx%d", width, height, w, h)
		return false, nil
	}

	return true, nil
}

func mismatch(property string, expected, actual any) error {
	return fmt.Errorf("%w: %s expected %v, actual %v", ErrPropertyMismatch, property, expected, actual)
}
