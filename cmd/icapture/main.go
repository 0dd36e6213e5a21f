package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"icapture/pkg/camera"
	"icapture/pkg/capture"
	"icapture/pkg/config"
	"icapture/pkg/device"
	"icapture/pkg/utils"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger()
}

func main() {
	configPath := flag.String("c", config.DefaultFile, "config file")
	duration := flag.Duration("d", 10*time.Second, "recording duration")
	grab := flag.Bool("grab", false, "grab one frame instead of recording")
	list := flag.Bool("list", false, "list capture devices and exit")
	flag.Parse()
	defer logger.Sync()

	backend := camera.NewBackend()
	if *list {
		infos, err := backend.List()
		if err != nil {
			logger.Fatal(err)
		}
		for _, info := range infos {
			fmt.Printf("%d\t%s\t%s\n", info.Index, info.Path, info.Name)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal(err)
	}
	if err = run(cfg, backend, *grab, *duration); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func run(cfg config.Config, backend capture.Backend, grab bool, d time.Duration) (err error) {
	cp, err := capture.Open(cfg, backend)
	if errors.Is(err, capture.ErrDeviceNotFound) {
		names, _ := device.Names(backend)
		return fmt.Errorf("%w, available: %q", err, names)
	}
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, cp.Close())
	}()

	if grab {
		path, err := cp.GrabFrame()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	}

	session, err := cp.StartRecording()
	if err != nil {
		return err
	}
	logger.Infof("recording to %s for %s", session.Path, d)

	stop := make(chan os.Signal, 1)
	go func() {
		stop <- utils.WatchSignal()
	}()
	select {
	case <-time.After(d):
	case sig := <-stop:
		logger.Infof("received signal %s", sig)
	case <-session.Done():
	}

	res, err := cp.StopRecording()
	if err != nil {
		return err
	}
	fi, statErr := os.Stat(res.Path)
	size := "?"
	if statErr == nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}
	fmt.Printf("%s\t%d frames\t%d dropped\t%s\n", res.Path, res.Written, res.Dropped, size)

	return nil
}
