package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"icapture/pkg/camera"
	"icapture/pkg/capture"
	"icapture/pkg/config"
	"icapture/pkg/types"
)

// counter is a Display that closes itself after n frames.
type counter struct {
	n     int
	shown int
	onNth func()
}

func (c *counter) Show(frame types.Frame) error {
	c.shown++
	fmt.Printf("preview frame %d, %d bytes\n", c.shown, len(frame.Data))
	if c.shown == c.n/2 && c.onNth != nil {
		c.onNth()
	}
	if c.shown >= c.n {
		return capture.ErrDisplayClosed
	}
	return nil
}

// Exercises the exclusivity rules against real hardware, round after round:
//  1. grab before preview
//  2. preview n frames, trying to grab half way (must be busy)
//  3. record a short clip
//  4. grab after recording
func main() {
	configPath := flag.String("c", config.DefaultFile, "config file")
	n := flag.Int("n", 10, "preview frames per round")
	clip := flag.Duration("clip", 2*time.Second, "recording length per round")
	rounds := flag.Int("rounds", 0, "rounds to run, 0 runs until interrupted")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}
	cp, err := capture.Open(cfg, camera.NewBackend())
	if err != nil {
		fail(err)
	}
	defer cp.Close()

	for iter := 1; *rounds == 0 || iter <= *rounds; iter++ {
		fmt.Printf("\n===== round %d =====\n", iter)

		fmt.Println("[1/4] grab before preview")
		path, err := cp.GrabFrame()
		if err != nil {
			fail(err)
		}
		fmt.Println("saved", path)

		fmt.Printf("[2/4] preview %d frames\n", *n)
		d := &counter{n: *n, onNth: func() {
			if _, err := cp.GrabFrame(); !errors.Is(err, capture.ErrResourceBusy) {
				fail(fmt.Errorf("grab during preview should be busy, got %v", err))
			}
			fmt.Println("grab during preview rejected as busy")
		}}
		if err = cp.Preview(context.Background(), d); err != nil {
			fail(err)
		}

		fmt.Printf("[3/4] record %s\n", *clip)
		if _, err = cp.StartRecording(); err != nil {
			fail(err)
		}
		time.Sleep(*clip)
		res, err := cp.StopRecording()
		if err != nil {
			fail(err)
		}
		fmt.Printf("saved %s, %d frames, %d dropped\n", res.Path, res.Written, res.Dropped)

		fmt.Println("[4/4] grab after recording")
		if path, err = cp.GrabFrame(); err != nil {
			fail(err)
		}
		fmt.Println("saved", path)

		time.Sleep(500 * time.Millisecond)
	}
}

func fail(err error) {
	fmt.Println(err)
	os.Exit(1)
}
