package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/goccy/go-json"

	"icapture/pkg/camera"
	"icapture/pkg/capture"
	"icapture/pkg/types"
)

// Dumps the controls a device exposes, as JSON or one line per control. The
// ids can be copied into the "controls" section of a config file.
func main() {
	devName := camera.DefaultDevice
	text := false
	flag.StringVar(&devName, "d", devName, "device name (path)")
	flag.BoolVar(&text, "text", text, "print one line per control instead of json")
	flag.Parse()

	cam := camera.New(devName, capture.Format{Width: 640, Height: 480, FPS: 15, PixelFormat: types.PixelFormatMJPEG})
	if err := cam.Start(); err != nil {
		log.Fatalf("failed to open device: %s", err)
	}
	defer cam.Close()

	ctrls, err := cam.Controls()
	if err != nil {
		log.Fatal(err)
	}
	if text {
		for _, ctrl := range ctrls {
			fmt.Print(camera.CtrlToString(ctrl))
		}
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	if err := enc.Encode(ctrls); err != nil {
		log.Fatal(err)
	}
}
