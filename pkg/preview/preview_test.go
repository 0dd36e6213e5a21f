package preview

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"icapture/pkg/capture"
	"icapture/pkg/types"
)

func testFrame(t *testing.T) types.Frame {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatal(err)
	}

	return types.Frame{Data: buf.Bytes(), Format: types.PixelFormatMJPEG, Width: 8, Height: 8}
}

func TestMJPEGStream(t *testing.T) {
	rec := httptest.NewRecorder()
	s := NewMJPEGStream(rec)
	frame := testFrame(t)
	for i := 0; i < 3; i++ {
		if err := s.Show(frame); err != nil {
			t.Fatal(err)
		}
	}

	mediaType, params, err := mime.ParseMediaType(rec.Header().Get("Content-Type"))
	if err != nil {
		t.Fatal(err)
	}
	if mediaType != "multipart/x-mixed-replace" {
		t.Fatalf("unexpected media type %s", mediaType)
	}
	r := multipart.NewReader(rec.Body, params["boundary"])
	parts := 0
	for {
		p, err := r.NextPart()
		if err != nil {
			break
		}
		if p.Header.Get("Content-Type") != "image/jpeg" {
			t.Fatalf("unexpected part type %s", p.Header.Get("Content-Type"))
		}
		parts++
	}
	if parts != 3 {
		t.Fatalf("expected 3 parts, got %d", parts)
	}
}

type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header { return w.header }
func (w *brokenWriter) WriteHeader(int) {}
func (w *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestMJPEGStreamClientGone(t *testing.T) {
	s := NewMJPEGStream(&brokenWriter{header: http.Header{}})
	if err := s.Show(testFrame(t)); !errors.Is(err, capture.ErrDisplayClosed) {
		t.Fatalf("expected ErrDisplayClosed, got %v", err)
	}
}

func TestWebSocket(t *testing.T) {
	frame := testFrame(t)
	result := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := Upgrade(w, r)
		if err != nil {
			result <- err
			return
		}
		defer ws.Close()
		for {
			if err = ws.Show(frame); err != nil {
				result <- err
				return
			}
		}
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	typ, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if typ != websocket.BinaryMessage || !bytes.Equal(data, frame.Data) {
		t.Fatal("unexpected websocket message")
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	if err = <-result; !errors.Is(err, capture.ErrDisplayClosed) {
		t.Fatalf("expected ErrDisplayClosed, got %v", err)
	}
}
