package scraper

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type mockGetter struct {
	mock.Mock
}

func (m *mockGetter) Get(ctx context.Context, req FetchRequest) (Page, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(Page), args.Error(1)
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]Page
	errs  map[string]error
	calls []string
}

func (f *stubFetcher) Fetch(_ context.Context, req FetchRequest) (Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Site)
	f.mu.Unlock()
	if err, ok := f.errs[req.Site]; ok {
		return Page{}, err
	}
	return f.pages[req.Site], nil
}

func okPage(body string) Page {
	return Page{StatusCode: 200, Body: []byte(body), Attempts: 1}
}
