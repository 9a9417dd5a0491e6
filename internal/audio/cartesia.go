package audio

import (
	"bytes"
	"context"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/gleehq/interviewd/internal/fault"
)

const defaultCartesiaURL = "https://api.cartesia.ai"

// CartesiaTranscriber is the speech-to-text client. Cartesia exposes an
// OpenAI-compatible transcription endpoint.
type CartesiaTranscriber struct {
	client *resty.Client
	model  string
}

func NewCartesiaTranscriber(baseURL, apiKey, model string) *CartesiaTranscriber {
	if baseURL == "" {
		baseURL = defaultCartesiaURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(60 * time.Second)
	return &CartesiaTranscriber{client: client, model: model}
}

// Close releases the underlying HTTP client.
func (c *CartesiaTranscriber) Close() error {
	return c.client.Close()
}

type transcription struct {
	Text string `json:"text"`
}

func (c *CartesiaTranscriber) Transcribe(ctx context.Context, media []byte, contentType string) (string, error) {
	if len(media) == 0 {
		return "", fault.New(fault.KindInvalidInput, "empty audio payload")
	}

	var out transcription
	res, err := c.client.R().
		SetContext(ctx).
		SetFileReader("file", filenameFor(contentType), bytes.NewReader(media)).
		SetFormData(map[string]string{
			"model":    c.model,
			"language": "en",
		}).
		SetResult(&out).
		Post("/audio/transcriptions")
	if err != nil {
		return "", fault.Wrap(fault.KindUpstream, err, "cartesia transcription")
	}
	if !res.IsSuccess() {
		return "", fault.Newf(fault.KindUpstream, "cartesia transcription: status %d", res.StatusCode())
	}
	return strings.TrimSpace(out.Text), nil
}

func filenameFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "webm"):
		return "audio.webm"
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"):
		return "audio.mp3"
	case strings.Contains(contentType, "ogg"):
		return "audio.ogg"
	default:
		return "audio.wav"
	}
}
