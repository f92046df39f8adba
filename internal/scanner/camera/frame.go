package camera

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"
)

// snapshotWait bounds how long a snapshot waits for a live frame.
const snapshotWait = 2 * time.Second

// ErrNoFrame is returned when the source produced an empty frame.
var ErrNoFrame = errors.New("no frame available")

// Encoder turns raw frames into transport-ready JPEG payloads. It owns a
// reusable buffer; one encoder per capture pipeline.
type Encoder struct {
	buf     bytes.Buffer
	quality int
}

func NewEncoder() *Encoder {
	return &Encoder{quality: 85}
}

// Snapshot grabs the next frame from the source and encodes it as base64
// JPEG with no data-URL prefix, the shape the processing endpoint expects.
func (e *Encoder) Snapshot(src FrameSource) (string, error) {
	frame, err := src.NextFrame(snapshotWait)
	if err != nil {
		return "", err
	}
	data, err := e.EncodeJPEG(frame)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// EncodeJPEG converts a raw frame to JPEG bytes. MJPEG frames pass through
// untouched.
func (e *Encoder) EncodeJPEG(frame Frame) ([]byte, error) {
	if len(frame.Data) == 0 {
		return nil, ErrNoFrame
	}
	if frame.Format == FormatMJPEG {
		out := make([]byte, len(frame.Data))
		copy(out, frame.Data)
		return out, nil
	}
	img, err := ToImage(frame)
	if err != nil {
		return nil, err
	}
	e.buf.Reset()
	if err := jpeg.Encode(&e.buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	out := make([]byte, e.buf.Len())
	copy(out, e.buf.Bytes())
	return out, nil
}

// ToImage decodes a raw frame into an image for in-process barcode reading.
func ToImage(frame Frame) (image.Image, error) {
	switch frame.Format {
	case FormatMJPEG:
		img, err := jpeg.Decode(bytes.NewReader(frame.Data))
		if err != nil {
			return nil, fmt.Errorf("decode mjpeg frame: %w", err)
		}
		return img, nil
	case FormatYUYV:
		return yuyvToImage(frame)
	default:
		return nil, fmt.Errorf("unsupported frame format %d", frame.Format)
	}
}

// yuyvToImage unpacks a packed 4:2:2 YUYV buffer into a YCbCr image.
func yuyvToImage(frame Frame) (image.Image, error) {
	expected := frame.Width * frame.Height * 2
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Data) < expected {
		return nil, fmt.Errorf("short yuyv frame: got %d bytes for %dx%d", len(frame.Data), frame.Width, frame.Height)
	}
	img := image.NewYCbCr(image.Rect(0, 0, frame.Width, frame.Height), image.YCbCrSubsampleRatio422)
	for row := 0; row < frame.Height; row++ {
		src := row * frame.Width * 2
		for col := 0; col < frame.Width; col += 2 {
			base := src + col*2
			img.Y[row*img.YStride+col] = frame.Data[base]
			img.Y[row*img.YStride+col+1] = frame.Data[base+2]
			img.Cb[row*img.CStride+col/2] = frame.Data[base+1]
			img.Cr[row*img.CStride+col/2] = frame.Data[base+3]
		}
	}
	return img, nil
}
