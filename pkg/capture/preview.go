package capture

import (
	"context"
	"errors"
	"fmt"

	"icapture/pkg/types"
)

// Display presents preview frames. Show returns ErrDisplayClosed once the user
// has closed it.
type Display interface {
	Show(frame types.Frame) error
}

// Preview streams frames to d until ctx is cancelled or d is closed. A read or
// display failure ends the preview with an error; the guard is released in
// every case.
func (c *Capture) Preview(ctx context.Context, d Display) error {
	logger.Debug("preview streaming")
	release, ok := c.guard.TryAcquire()
	if !ok {
		logger.Error(ErrResourceBusy)
		return ErrResourceBusy
	}
	defer release()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := c.read()
		if err != nil {
			return fmt.Errorf("preview: %w", err)
		}
		if frame.Empty() {
			continue
		}
		if err = d.Show(frame); err != nil {
			if errors.Is(err, ErrDisplayClosed) {
				logger.Debug("preview display closed")
				return nil
			}
			return fmt.Errorf("preview display: %w", err)
		}
	}
}
