package barcode

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// unableSentinel is the answer the model is instructed to give when no
// barcode can be read from the frame.
const unableSentinel = "UNABLE_TO_READ"

const extractPrompt = `Please analyze this barcode image and extract the numerical code shown in the barcode.
Return ONLY the numerical code of the barcode, nothing else.
If there is no barcode or the code cannot be extracted, respond with "UNABLE_TO_READ".`

// GeminiDecoder sends frames to the Gemini API for barcode extraction.
type GeminiDecoder struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func NewGeminiDecoder(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiDecoder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiDecoder{client: client, model: model, logger: logger}, nil
}

func (d *GeminiDecoder) Decode(ctx context.Context, jpegFrame []byte) (Result, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{Text: extractPrompt},
			{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: jpegFrame}},
		},
	}}
	resp, err := d.client.Models.GenerateContent(ctx, d.model, contents, nil)
	if err != nil {
		return Result{}, fmt.Errorf("gemini decode: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" || text == unableSentinel {
		d.logger.Debug("gemini reported no readable barcode")
		return Result{Detected: false}, nil
	}
	return Result{Detected: true, Code: text}, nil
}
