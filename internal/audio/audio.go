// Package audio holds the speech collaborators: text-to-speech for
// interviewer turns and speech-to-text for candidate replies.
package audio

import "context"

// Synthesizer renders an interviewer message to speech. The result is
// base64-encoded MP3; an empty result with a nil error means synthesis is
// disabled.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Transcriber converts candidate audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, media []byte, contentType string) (string, error)
}

// Disabled is the Synthesizer used when audio output is turned off: turns
// are delivered as text only.
type Disabled struct{}

func (Disabled) Synthesize(context.Context, string) (string, error) {
	return "", nil
}
