package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"icapture/pkg/capture"
	"icapture/pkg/capture/capturetest"
	"icapture/pkg/config"
	"icapture/pkg/video"
)

type response struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newTestServer(t *testing.T) (*Server, *gin.Engine, string) {
	s, dataDir := newServer(t, capturetest.NewBackend("TestCam"))

	return s, s.Router(), dataDir
}

func newServer(t *testing.T, backend capture.Backend) (*Server, string) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DeviceName = "TestCam"
	cfg.FPS = 20
	cfg.FrameWidth = 320
	cfg.FrameHeight = 240
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Codec = video.MJPG
	path := filepath.Join(dir, "config.json")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx, backend, Options{
		ConfigPath:     path,
		CaptureOptions: []capture.Option{capture.WithGuard(capture.NewGuard())},
	})
	t.Cleanup(func() {
		_ = s.Close()
		cancel()
	})

	return s, cfg.DataDir
}

func do(t *testing.T, r http.Handler, method, url, body string) (int, response) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var res response
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("%s %s: decode %q: %s", method, url, rec.Body.String(), err)
		}
	}

	return rec.Code, res
}

func TestNotInitialized(t *testing.T) {
	_, r, _ := newTestServer(t)
	code, res := do(t, r, http.MethodPost, "/api/capture/frame", "")
	if code != http.StatusBadRequest || res.Status == "success" {
		t.Fatalf("expected 400, got %d %+v", code, res)
	}
	code, _ = do(t, r, http.MethodGet, "/api/capture/status", "")
	if code != http.StatusOK {
		t.Fatalf("status should work before init, got %d", code)
	}
}

func TestCaptureLifecycle(t *testing.T) {
	_, r, dataDir := newTestServer(t)

	if code, res := do(t, r, http.MethodPost, "/api/capture/init", ""); code != http.StatusOK {
		t.Fatalf("init: %d %+v", code, res)
	}

	code, res := do(t, r, http.MethodPost, "/api/capture/frame", "")
	if code != http.StatusOK {
		t.Fatalf("frame: %d %+v", code, res)
	}
	var path string
	if err := json.Unmarshal(res.Data, &path); err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(path) != dataDir || !strings.HasSuffix(path, ".png") {
		t.Fatalf("unexpected frame path %s", path)
	}

	if code, res = do(t, r, http.MethodPost, "/api/capture/start", ""); code != http.StatusOK {
		t.Fatalf("start: %d %+v", code, res)
	}
	if code, _ = do(t, r, http.MethodPost, "/api/capture/start", ""); code != http.StatusConflict {
		t.Fatalf("second start: expected 409, got %d", code)
	}
	if code, _ = do(t, r, http.MethodPost, "/api/capture/frame", ""); code != http.StatusConflict {
		t.Fatalf("frame while recording: expected 409, got %d", code)
	}
	if code, res = do(t, r, http.MethodPost, "/api/capture/stop", ""); code != http.StatusOK {
		t.Fatalf("stop: %d %+v", code, res)
	}
	if code, _ = do(t, r, http.MethodPost, "/api/capture/stop", ""); code != http.StatusBadRequest {
		t.Fatalf("second stop: expected 400, got %d", code)
	}

	code, res = do(t, r, http.MethodGet, "/api/files", "")
	if code != http.StatusOK {
		t.Fatalf("files: %d %+v", code, res)
	}
	var files []struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(res.Data, &files); err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected an image and a video, got %+v", files)
	}
	for _, f := range files {
		if code, _ = do(t, r, http.MethodDelete, "/api/files/"+f.Name, ""); code != http.StatusOK {
			t.Fatalf("delete %s: %d", f.Name, code)
		}
	}
	if code, _ = do(t, r, http.MethodDelete, "/api/files/missing.png", ""); code != http.StatusNotFound {
		t.Fatalf("delete missing: expected 404, got %d", code)
	}

	if code, _ = do(t, r, http.MethodPost, "/api/capture/deinit", ""); code != http.StatusOK {
		t.Fatalf("deinit: %d", code)
	}
	if code, _ = do(t, r, http.MethodPost, "/api/capture/deinit", ""); code != http.StatusBadRequest {
		t.Fatalf("second deinit: expected 400, got %d", code)
	}
}

func TestProperties(t *testing.T) {
	_, r, _ := newTestServer(t)
	if code, res := do(t, r, http.MethodPost, "/api/capture/init", ""); code != http.StatusOK {
		t.Fatalf("init: %d %+v", code, res)
	}

	code, res := do(t, r, http.MethodPut, "/api/capture/fps", `{"fps":10}`)
	if code != http.StatusOK {
		t.Fatalf("set fps: %d %+v", code, res)
	}
	var prop struct {
		Match bool   `json:"match"`
		FPS   uint32 `json:"fps"`
	}
	if err := json.Unmarshal(res.Data, &prop); err != nil {
		t.Fatal(err)
	}
	if !prop.Match || prop.FPS != 10 {
		t.Fatalf("unexpected fps response %+v", prop)
	}

	if code, _ = do(t, r, http.MethodPut, "/api/capture/size", `{"width":640,"height":480}`); code != http.StatusOK {
		t.Fatalf("set size: %d", code)
	}
	if code, _ = do(t, r, http.MethodPut, "/api/capture/fps", `{}`); code != http.StatusBadRequest {
		t.Fatalf("missing fps: expected 400, got %d", code)
	}
}

func TestInitDeviceNotFound(t *testing.T) {
	_, r, _ := newTestServer(t)
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DeviceName = "Missing"
	cfg.DataDir = dir
	cfg.Codec = video.MJPG
	path := filepath.Join(dir, "missing.json")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	code, _ := do(t, r, http.MethodPost, "/api/capture/init", `{"path":"`+path+`"}`)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestDevices(t *testing.T) {
	_, r, _ := newTestServer(t)
	code, res := do(t, r, http.MethodGet, "/api/devices", "")
	if code != http.StatusOK {
		t.Fatalf("devices: %d", code)
	}
	if !strings.Contains(string(res.Data), "TestCam") {
		t.Fatalf("unexpected devices %s", res.Data)
	}
}

func TestStatusOf(t *testing.T) {
	if statusOf(capture.ErrResourceBusy) != http.StatusConflict {
		t.Fatal("busy should map to 409")
	}
	if statusOf(&capture.Error{Kind: capture.ErrDeviceNotFound, Subject: "x"}) != http.StatusNotFound {
		t.Fatal("device not found should map to 404")
	}
	if statusOf(os.ErrPermission) != http.StatusInternalServerError {
		t.Fatal("unknown errors should map to 500")
	}
}

func TestConcurrentInit(t *testing.T) {
	b := capturetest.NewBackend("TestCam")
	b.OpenDelay = 20 * time.Millisecond
	s, _ := newServer(t, b)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Init(""); err != nil {
				t.Errorf("init: %s", err)
			}
		}()
	}
	wg.Wait()

	devices := b.Opened()
	open := 0
	for _, d := range devices {
		if !d.Closed() {
			open++
		}
	}
	if open != 1 {
		t.Fatalf("expected exactly one open device after %d inits, got %d", len(devices), open)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	for i, d := range b.Opened() {
		if !d.Closed() {
			t.Fatalf("device %d still open after close", i)
		}
	}
}
