package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"icapture/pkg/api"
	"icapture/pkg/camera"
	"icapture/pkg/capture"
	"icapture/pkg/config"
	"icapture/pkg/utils"
)

var (
	webdavPort = flag.Int("webdav-port", 9998, "webdav port")
	port       = flag.Int("port", 9999, "api port")
	configPath = flag.String("c", config.DefaultFile, "config file used by init requests without a path")
	staticsDir = flag.String("statics", "./statics", "web ui directory, skipped when missing")
	autoInit   = flag.Bool("init", false, "open the configured device at startup")

	logger *zap.SugaredLogger
)

func init() {
	logger = utils.GetLogger()
	flag.Parse()
}

func main() {
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := api.New(ctx, camera.NewBackend(), api.Options{
		ConfigPath: *configPath,
		WebdavPort: *webdavPort,
		// every handle of this process competes for one device
		CaptureOptions: []capture.Option{capture.WithGuard(capture.DefaultGuard)},
	})
	defer func() {
		if err := s.Close(); err != nil {
			logger.Errorf("close capture err: %s", err)
		}
	}()
	if *autoInit {
		if _, err := s.Init(*configPath); err != nil {
			logger.Fatal(err)
		}
	}

	r := s.Router()
	if err := registerStaticsDir(r, *staticsDir, "/"); err != nil {
		logger.Warn(err)
	}

	utils.ListenAndServe(r, *port)
}

func registerStaticsDir(group gin.IRoutes, dir, relativeGroup string) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("the specified directory %s does not exist", dir)
	}
	dir = filepath.ToSlash(filepath.Clean(dir))
	group.StaticFile(relativeGroup, filepath.Join(dir, "index.html"))
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			relativePath := path.Join(relativeGroup, strings.Replace(filepath.ToSlash(p), dir, "", 1))
			if relativePath == relativeGroup {
				return nil
			}
			group.StaticFile(relativePath, p)
		}
		return nil
	})
}
