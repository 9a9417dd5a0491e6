package audio

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/stretchr/testify/require"

	"github.com/gleehq/interviewd/internal/fault"
)

type stubPolly struct {
	input *polly.SynthesizeSpeechInput
	media []byte
	err   error
}

func (s *stubPolly) SynthesizeSpeech(_ context.Context, params *polly.SynthesizeSpeechInput, _ ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	s.input = params
	if s.err != nil {
		return nil, s.err
	}
	return &polly.SynthesizeSpeechOutput{
		AudioStream: io.NopCloser(strings.NewReader(string(s.media))),
	}, nil
}

func newPolly(stub *stubPolly) *PollySynthesizer {
	return &PollySynthesizer{
		client: stub,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		voice:  "Joanna",
		engine: "neural",
		rate:   "92%",
	}
}

func TestPollySynthesizeWrapsSSML(t *testing.T) {
	t.Parallel()

	stub := &stubPolly{media: []byte("mp3-bytes")}
	p := newPolly(stub)

	audio, err := p.Synthesize(context.Background(), `Let's talk about maps & slices`)
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("mp3-bytes")), audio)

	require.Equal(t, `<speak><prosody rate="92%">Let&#39;s talk about maps &amp; slices</prosody></speak>`, *stub.input.Text)
	require.Equal(t, "Joanna", string(stub.input.VoiceId))
	require.Equal(t, "neural", string(stub.input.Engine))
}

func TestPollyTruncatesLongText(t *testing.T) {
	t.Parallel()

	stub := &stubPolly{media: []byte("x")}
	p := newPolly(stub)

	_, err := p.Synthesize(context.Background(), strings.Repeat("a", neuralMaxChars+100))
	require.NoError(t, err)
	require.Contains(t, *stub.input.Text, "...")
	require.LessOrEqual(t, len(*stub.input.Text), neuralMaxChars+len(`<speak><prosody rate="92%"></prosody></speak>`))
}

func TestPollyTruncationKeepsRunesIntact(t *testing.T) {
	t.Parallel()

	stub := &stubPolly{media: []byte("x")}
	p := newPolly(stub)

	_, err := p.Synthesize(context.Background(), strings.Repeat("é", neuralMaxChars+100))
	require.NoError(t, err)
	require.True(t, utf8.ValidString(*stub.input.Text))
	require.Contains(t, *stub.input.Text, "é...")
	envelope := len(`<speak><prosody rate="92%"></prosody></speak>`)
	require.Equal(t, neuralMaxChars+envelope, utf8.RuneCountInString(*stub.input.Text))
}

func TestPollyFailureIsUpstream(t *testing.T) {
	t.Parallel()

	stub := &stubPolly{err: io.ErrUnexpectedEOF}
	p := newPolly(stub)

	_, err := p.Synthesize(context.Background(), "hello")
	require.Error(t, err)
	require.Equal(t, fault.KindUpstream, fault.KindOf(err))
}

func TestPollyEmptyTextIsSkipped(t *testing.T) {
	t.Parallel()

	stub := &stubPolly{}
	p := newPolly(stub)

	audio, err := p.Synthesize(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, audio)
	require.Nil(t, stub.input)
}

func TestCartesiaTranscribe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "ink-whisper", r.FormValue("model"))
		require.Equal(t, "en", r.FormValue("language"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "audio.webm", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(transcription{Text: "  I used Go at my last job.  "})
	}))
	defer srv.Close()

	tr := NewCartesiaTranscriber(srv.URL, "secret", "ink-whisper")
	defer tr.Close()

	text, err := tr.Transcribe(context.Background(), []byte("fake-webm"), "audio/webm")
	require.NoError(t, err)
	require.Equal(t, "I used Go at my last job.", text)
}

func TestCartesiaErrorStatusIsUpstream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no capacity", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewCartesiaTranscriber(srv.URL, "secret", "ink-whisper")
	defer tr.Close()

	_, err := tr.Transcribe(context.Background(), []byte("fake"), "audio/wav")
	require.Error(t, err)
	require.Equal(t, fault.KindUpstream, fault.KindOf(err))
}

func TestCartesiaRejectsEmptyPayload(t *testing.T) {
	t.Parallel()

	tr := NewCartesiaTranscriber("http://localhost:0", "secret", "ink-whisper")
	defer tr.Close()

	_, err := tr.Transcribe(context.Background(), nil, "audio/wav")
	require.Error(t, err)
	require.Equal(t, fault.KindInvalidInput, fault.KindOf(err))
}

func TestDisabledSynthesizer(t *testing.T) {
	t.Parallel()

	audio, err := Disabled{}.Synthesize(context.Background(), "anything")
	require.NoError(t, err)
	require.Empty(t, audio)
}
