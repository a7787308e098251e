package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/qrengage/docpipe/internal/pkg/errors"
)

type fakeProvider struct {
	name  string
	pages []Page
	errs  []error
	calls int
}

func (f *fakeProvider) Name() string {
	return f.name
}

func (f *fakeProvider) Extract(ctx context.Context, data []byte, filename string) ([]Page, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	return f.pages, nil
}

func newTestExtractor(p IExtractProvider) *Extractor {
	return NewExtractor(p, ExtractorConfig{
		MaxSizeBytes: 1024,
		MaxRetries:   3,
		BaseDelay:    time.Millisecond,
	})
}

func TestExtractorCheckSize(t *testing.T) {
	e := newTestExtractor(&fakeProvider{name: "fake"})
	require.NoError(t, e.CheckSize(1024))
	require.ErrorIs(t, e.CheckSize(1025), appErr.ErrFileTooLarge)
}

func TestExtractorReturnsProviderPages(t *testing.T) {
	p := &fakeProvider{name: "fake", pages: []Page{{PageNumber: 1, Text: "hello"}}}
	pages, err := newTestExtractor(p).Extract(context.Background(), []byte("data"), "a.txt")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, "hello", pages[0].Text)
	require.Equal(t, 1, p.calls)
}

func TestExtractorRetriesTransientErrors(t *testing.T) {
	p := &fakeProvider{
		name:  "fake",
		pages: []Page{{PageNumber: 1, Text: "eventually"}},
		errs:  []error{errors.New("transient"), errors.New("transient")},
	}
	pages, err := newTestExtractor(p).Extract(context.Background(), []byte("data"), "a.txt")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, 3, p.calls)
}

func TestExtractorFailsAfterRetriesExhausted(t *testing.T) {
	wantErr := errors.New("still broken")
	p := &fakeProvider{name: "fake", errs: []error{wantErr, wantErr, wantErr}}
	_, err := newTestExtractor(p).Extract(context.Background(), []byte("data"), "a.txt")
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 3, p.calls)
}

func TestExtractorUnavailableYieldsSyntheticPage(t *testing.T) {
	p := &fakeProvider{name: "fake", errs: []error{ErrUnavailable}}
	pages, err := newTestExtractor(p).Extract(context.Background(), []byte("data"), "a.txt")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, 1, pages[0].PageNumber)
	require.Contains(t, pages[0].Text, "No text could be extracted")
	// Unavailable is not retried; there is nothing transient about it.
	require.Equal(t, 1, p.calls)
}

func TestExtractorEmptyPagesYieldSyntheticPage(t *testing.T) {
	p := &fakeProvider{name: "fake", pages: []Page{{PageNumber: 1, Text: "   "}}}
	pages, err := newTestExtractor(p).Extract(context.Background(), []byte("data"), "a.txt")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Contains(t, pages[0].Text, "No text could be extracted")
}

func TestExtractorRejectsOversizeInput(t *testing.T) {
	p := &fakeProvider{name: "fake"}
	_, err := newTestExtractor(p).Extract(context.Background(), make([]byte, 2048), "big.txt")
	require.ErrorIs(t, err, appErr.ErrFileTooLarge)
	require.Equal(t, 0, p.calls)
}
