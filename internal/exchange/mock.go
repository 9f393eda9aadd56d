package exchange

import (
	"context"
	"sync"

	"github.com/quantgate/ohlcv-pipeline/internal/models"
)

// MockPage is one scripted FetchWindow response.
type MockPage struct {
	Bars []models.Bar
	Err  error
}

// MockFetcher is a scripted WindowFetcher for tests and offline runs.
// Each FetchWindow call consumes the next page; HasMore is derived from the
// window limit the same way the HTTP client derives it, so pagination loops
// behave identically against the mock.
type MockFetcher struct {
	mu    sync.Mutex
	pages []MockPage
	calls []Window
}

// NewMockFetcher builds a fetcher that replays the given pages in order.
func NewMockFetcher(pages ...MockPage) *MockFetcher {
	return &MockFetcher{pages: pages}
}

// FetchWindow implements WindowFetcher.
func (m *MockFetcher) FetchWindow(ctx context.Context, w Window) (*WindowResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, w)

	if len(m.pages) == 0 {
		return &WindowResult{}, nil
	}

	page := m.pages[0]
	m.pages = m.pages[1:]

	if page.Err != nil {
		return nil, page.Err
	}

	result := &WindowResult{Bars: page.Bars}
	if len(page.Bars) >= w.Limit && len(page.Bars) > 0 {
		last := page.Bars[len(page.Bars)-1]
		if d, err := models.ParseInterval(w.Interval); err == nil {
			result.HasMore = true
			result.NextSince = last.Timestamp.Add(d)
		}
	}
	return result, nil
}

// Calls returns the windows requested so far, in order.
func (m *MockFetcher) Calls() []Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Window, len(m.calls))
	copy(out, m.calls)
	return out
}
