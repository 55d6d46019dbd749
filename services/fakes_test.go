package services

import (
	"context"
	"sync"

	"github/itish2003/autorag/models"
)

const testDim = 8

// fakeEmbedder returns a fixed vector per text, or a letter histogram.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	empty   bool
	err     error
	calls   []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return nil, nil
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return histogram(text), nil
}

func histogram(text string) []float32 {
	v := make([]float32, testDim)
	for _, r := range text {
		v[int(r)%testDim]++
	}
	return v
}

// fakeLLM replays canned responses in order and records prompts.
type fakeLLM struct {
	mu        sync.Mutex
	available bool
	responses []string
	err       error
	prompts   []string
}

func newFakeLLM(responses ...string) *fakeLLM {
	return &fakeLLM{available: true, responses: responses}
}

func (f *fakeLLM) Available() bool { return f.available }

func (f *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	out := f.responses[0]
	f.responses = f.responses[1:]
	return out, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// fakeReader stands in for model-based file reading.
type fakeReader struct {
	available bool
	text      string
	err       error
	mimeTypes []string
}

func (f *fakeReader) Available() bool { return f.available }

func (f *fakeReader) ReadFile(_ context.Context, _ []byte, mimeType string) (string, error) {
	f.mimeTypes = append(f.mimeTypes, mimeType)
	return f.text, f.err
}

// fakeExtractor returns the file body as text, or errors on a named file.
type fakeExtractor struct {
	failOn string
	err    error
}

func (f *fakeExtractor) Extract(_ context.Context, file models.UploadedFile) (string, error) {
	if f.failOn != "" && file.Filename == f.failOn {
		return "", f.err
	}
	return string(file.Data), nil
}

// fakeReviewer records calls and returns a fixed result.
type fakeReviewer struct {
	configured bool
	result     models.ReviewResult
	calls      int
}

func (f *fakeReviewer) Configured() bool { return f.configured }

func (f *fakeReviewer) Review(context.Context, string, *models.AnswerResult) models.ReviewResult {
	f.calls++
	return f.result
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
