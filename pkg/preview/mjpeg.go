// Package preview implements capture.Display for browsers: a multipart MJPEG
// stream and a websocket carrying one binary JPEG message per frame.
package preview

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"icapture/pkg/capture"
	"icapture/pkg/types"
	"icapture/pkg/utils/image"
)

// MJPEGStream writes frames as a multipart/x-mixed-replace response.
type MJPEGStream struct {
	w          http.ResponseWriter
	mimeWriter *multipart.Writer
	partHeader textproto.MIMEHeader
}

func NewMJPEGStream(w http.ResponseWriter) *MJPEGStream {
	mimeWriter := multipart.NewWriter(w)
	w.Header().Set("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", mimeWriter.Boundary()))
	partHeader := make(textproto.MIMEHeader)
	partHeader.Add("Content-Type", "image/jpeg")

	return &MJPEGStream{w: w, mimeWriter: mimeWriter, partHeader: partHeader}
}

// Show fails with capture.ErrDisplayClosed once the client went away.
func (s *MJPEGStream) Show(frame types.Frame) error {
	data, err := image.ToJPEG(frame)
	if err != nil {
		return err
	}
	partWriter, err := s.mimeWriter.CreatePart(s.partHeader)
	if err != nil {
		logger.Debugf("failed to create multi-part writer: %s", err)
		return capture.ErrDisplayClosed
	}
	if _, err = partWriter.Write(data); err != nil {
		logger.Debugf("failed to write image: %s", err)
		return capture.ErrDisplayClosed
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}

	return nil
}
