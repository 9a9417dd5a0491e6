package audio

import "context"

// FakeSynthesizer and FakeTranscriber stand in for the speech services in
// tests.
type FakeSynthesizer struct {
	Audio string
	Err   error
	Calls []string
}

func (f *FakeSynthesizer) Synthesize(_ context.Context, text string) (string, error) {
	f.Calls = append(f.Calls, text)
	if f.Err != nil {
		return "", f.Err
	}
	return f.Audio, nil
}

type FakeTranscriber struct {
	Text  string
	Err   error
	Calls int
}

func (f *FakeTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	f.Calls++
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}
