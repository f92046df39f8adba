package barcode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

// LocalDecoder decodes frames in-process with the gozxing reader set.
// Retail UPC/EAN formats are tried first since they dominate pantry scans.
type LocalDecoder struct {
	readers []gozxing.Reader
	logger  *slog.Logger
}

func NewLocalDecoder(logger *slog.Logger) *LocalDecoder {
	return &LocalDecoder{
		readers: []gozxing.Reader{
			oned.NewUPCAReader(),
			oned.NewEAN13Reader(),
			oned.NewEAN8Reader(),
			oned.NewUPCEReader(),
			oned.NewCode128Reader(),
			oned.NewCode39Reader(),
			oned.NewITFReader(),
		},
		logger: logger,
	}
}

func (d *LocalDecoder) Decode(ctx context.Context, jpegFrame []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	img, _, err := image.Decode(bytes.NewReader(jpegFrame))
	if err != nil {
		return Result{}, fmt.Errorf("decode frame image: %w", err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return Result{}, fmt.Errorf("binarize frame: %w", err)
	}
	for _, reader := range d.readers {
		result, err := reader.Decode(bmp, nil)
		if err == nil && result != nil {
			return Result{Detected: true, Code: result.GetText()}, nil
		}
	}
	d.logger.Debug("no barcode found in frame")
	return Result{Detected: false}, nil
}

// DecodeImage runs the reader set against an already-decoded image. Used by
// the scanner agent's library strategy, which works on raw camera frames.
func (d *LocalDecoder) DecodeImage(img image.Image) (Result, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return Result{}, fmt.Errorf("binarize frame: %w", err)
	}
	for _, reader := range d.readers {
		result, err := reader.Decode(bmp, nil)
		if err == nil && result != nil {
			return Result{Detected: true, Code: result.GetText()}, nil
		}
	}
	return Result{Detected: false}, nil
}
