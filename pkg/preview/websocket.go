package preview

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"icapture/pkg/capture"
	"icapture/pkg/types"
	"icapture/pkg/utils"
	"icapture/pkg/utils/image"
)

const writeWait = 2 * time.Second

var (
	logger *zap.SugaredLogger

	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
)

func init() {
	logger = utils.GetLogger()
}

// WebSocket sends every frame as one binary JPEG message.
type WebSocket struct {
	conn   *websocket.Conn
	closed chan struct{}
}

// Upgrade switches the request to a websocket. The client closing its end
// ends the preview.
func Upgrade(w http.ResponseWriter, r *http.Request) (*WebSocket, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	ws := &WebSocket{conn: conn, closed: make(chan struct{})}
	go ws.readLoop()

	return ws, nil
}

// readLoop drains control frames so close messages are noticed.
func (ws *WebSocket) readLoop() {
	defer close(ws.closed)
	for {
		if _, _, err := ws.conn.ReadMessage(); err != nil {
			logger.Debugf("websocket preview closed: %s", err)
			return
		}
	}
}

func (ws *WebSocket) Show(frame types.Frame) error {
	select {
	case <-ws.closed:
		return capture.ErrDisplayClosed
	default:
	}
	data, err := image.ToJPEG(frame)
	if err != nil {
		return err
	}
	_ = ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err = ws.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		logger.Debugf("error writing message to websocket: %v", err)
		return capture.ErrDisplayClosed
	}

	return nil
}

func (ws *WebSocket) Close() error {
	return ws.conn.Close()
}
