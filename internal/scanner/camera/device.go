// Package camera owns camera acquisition for the scanner agent: opening a
// video device, probing for a native detection capability, and snapshotting
// frames into transport-ready JPEG payloads.
package camera

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/blackjack/webcam"
)

// PixelFormat identifies the packing of a raw frame.
type PixelFormat int

const (
	FormatYUYV PixelFormat = iota
	FormatMJPEG
)

// Frame is one captured video frame.
type Frame struct {
	Data   []byte
	Width  int
	Height int
	Format PixelFormat
}

// FrameSource delivers live frames. Implemented by Device and by fakes in
// tests.
type FrameSource interface {
	NextFrame(timeout time.Duration) (Frame, error)
}

// Device is an open camera stream.
type Device interface {
	FrameSource
	Close() error
}

// Opener acquires a device at the requested resolution. Injected so the
// session and the library scanner can be tested without hardware.
type Opener func(path string, width, height int) (Device, error)

// ErrFrameTimeout is returned when no frame arrived within the wait window.
var ErrFrameTimeout = errors.New("frame wait timed out")

// V4L2 fourcc codes for the formats the scanner understands.
const (
	fourccYUYV = webcam.PixelFormat(0x56595559)
	fourccMJPG = webcam.PixelFormat(0x47504A4D)
)

type v4l2Device struct {
	cam    *webcam.Webcam
	width  int
	height int
	format PixelFormat
}

// OpenV4L2 opens a V4L2 device preferring MJPEG, then YUYV, at the size
// closest to the requested one.
func OpenV4L2(path string, width, height int) (Device, error) {
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open camera %s: %w", path, err)
	}

	format, pixel, err := pickFormat(cam)
	if err != nil {
		_ = cam.Close()
		return nil, err
	}
	size := pickSize(cam, format, width, height)
	_, w, h, err := cam.SetImageFormat(format, uint32(size.MaxWidth), uint32(size.MaxHeight))
	if err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("set camera format: %w", err)
	}
	if err := cam.StartStreaming(); err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("start streaming: %w", err)
	}
	return &v4l2Device{cam: cam, width: int(w), height: int(h), format: pixel}, nil
}

func pickFormat(cam *webcam.Webcam) (webcam.PixelFormat, PixelFormat, error) {
	supported := cam.GetSupportedFormats()
	if _, ok := supported[fourccMJPG]; ok {
		return fourccMJPG, FormatMJPEG, nil
	}
	if _, ok := supported[fourccYUYV]; ok {
		return fourccYUYV, FormatYUYV, nil
	}
	return 0, 0, errors.New("camera supports neither MJPEG nor YUYV")
}

func pickSize(cam *webcam.Webcam, format webcam.PixelFormat, width, height int) webcam.FrameSize {
	sizes := cam.GetSupportedFrameSizes(format)
	if len(sizes) == 0 {
		return webcam.FrameSize{MaxWidth: uint32(width), MaxHeight: uint32(height)}
	}
	target := width * height
	sort.Slice(sizes, func(i, j int) bool {
		di := absInt(int(sizes[i].MaxWidth*sizes[i].MaxHeight) - target)
		dj := absInt(int(sizes[j].MaxWidth*sizes[j].MaxHeight) - target)
		return di < dj
	})
	return sizes[0]
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (d *v4l2Device) NextFrame(timeout time.Duration) (Frame, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Frame{}, ErrFrameTimeout
		}
		waitSec := uint32(remaining / time.Second)
		if waitSec == 0 {
			waitSec = 1
		}
		err := d.cam.WaitForFrame(waitSec)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			return Frame{}, fmt.Errorf("frame wait failed: %w", err)
		}

		data, err := d.cam.ReadFrame()
		if err != nil {
			return Frame{}, fmt.Errorf("read frame failed: %w", err)
		}
		if len(data) == 0 {
			continue
		}
		return Frame{Data: data, Width: d.width, Height: d.height, Format: d.format}, nil
	}
}

func (d *v4l2Device) Close() error {
	return d.cam.Close()
}
