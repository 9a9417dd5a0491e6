package audio

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/gleehq/interviewd/internal/fault"
)

// Polly character ceilings per engine.
const (
	neuralMaxChars   = 6000
	standardMaxChars = 3000
)

type pollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollySynthesizer renders interviewer turns with AWS Polly, wrapping the
// text in SSML to slow the speech rate down to a conversational pace.
type PollySynthesizer struct {
	client pollyAPI
	logger *slog.Logger
	voice  string
	engine string
	rate   string
}

func NewPollySynthesizer(ctx context.Context, region, voice, engine, rate string, logger *slog.Logger) (*PollySynthesizer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fault.Wrap(fault.KindUpstream, err, "load aws config")
	}
	return &PollySynthesizer{
		client: polly.NewFromConfig(cfg),
		logger: logger,
		voice:  voice,
		engine: engine,
		rate:   rate,
	}, nil
}

func (p *PollySynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	out, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         aws.String(p.ssml(text)),
		TextType:     pollytypes.TextTypeSsml,
		OutputFormat: pollytypes.OutputFormatMp3,
		VoiceId:      pollytypes.VoiceId(p.voice),
		Engine:       pollytypes.Engine(p.engine),
	})
	if err != nil {
		return "", fault.Wrap(fault.KindUpstream, err, "polly synthesis")
	}
	defer out.AudioStream.Close()

	media, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return "", fault.Wrap(fault.KindUpstream, err, "read polly stream")
	}
	p.logger.Debug("speech synthesized", "voice", p.voice, "bytes", len(media))
	return base64.StdEncoding.EncodeToString(media), nil
}

// ssml wraps the text for synthesis. The limit counts pre-escape characters;
// entity escaping can still push the request past Polly's ceiling, in which
// case Polly rejects it and the error surfaces as an upstream failure.
func (p *PollySynthesizer) ssml(text string) string {
	max := standardMaxChars
	if p.engine == "neural" {
		max = neuralMaxChars
	}
	if runes := []rune(text); len(runes) > max {
		text = string(runes[:max-3]) + "..."
	}
	return fmt.Sprintf(`<speak><prosody rate="%s">%s</prosody></speak>`, p.rate, html.EscapeString(text))
}
