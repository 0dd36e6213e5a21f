package webdav

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestHandler(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.png"), []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(Handler(dir))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/a.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "png" {
		t.Fatalf("unexpected body %q", data)
	}

	req, _ := http.NewRequest("PROPFIND", srv.URL+"/", nil)
	req.Header.Set("Depth", "1")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusMultiStatus {
		t.Fatalf("unexpected PROPFIND status %d", resp2.StatusCode)
	}
}

func TestStartStop(t *testing.T) {
	w := New(context.Background(), 0, t.TempDir())
	if w.Running() {
		t.Fatal("should not run before start")
	}
	w.Start()
	if !w.Running() {
		t.Fatal("should run after start")
	}
	w.Stop()
	if w.Running() {
		t.Fatal("should stop")
	}
}
