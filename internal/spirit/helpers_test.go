package spirit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chrisrobison/ouija/internal/inference"
	"github.com/chrisrobison/ouija/internal/store"
)

// fakeClient answers generation requests with numbered profiles and ask
// requests from a queue of replies.
type fakeClient struct {
	mu       sync.Mutex
	replies  []string
	profiles []string
	askErr   error
	genErr   error
	requests []*inference.Request
	summoned int
}

func (f *fakeClient) Chat(_ context.Context, req *inference.Request) (*inference.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if req.Purpose == "generate" {
		if f.genErr != nil {
			return nil, f.genErr
		}
		f.summoned++
		if len(f.profiles) > 0 {
			p := f.profiles[0]
			f.profiles = f.profiles[1:]
			return &inference.Response{Content: p}, nil
		}
		return &inference.Response{Content: fmt.Sprintf(
			`{"name":"Spirit %d","gender":"female","birthplace":"Lyon","birth_year":%d,"death_year":%d,"death_cause":"fever","occupation":"lacemaker","children":2,"note":"left a letter unsent"}`,
			f.summoned, 1800+f.summoned, 1850+f.summoned,
		)}, nil
	}

	if f.askErr != nil {
		return nil, f.askErr
	}
	if len(f.replies) > 0 {
		r := f.replies[0]
		f.replies = f.replies[1:]
		return &inference.Response{Content: r}, nil
	}
	return &inference.Response{Content: "Yes."}, nil
}

func (f *fakeClient) Health() error { return nil }

func (f *fakeClient) asks() []*inference.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*inference.Request
	for _, r := range f.requests {
		if r.Purpose == "ask" {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeClient) generations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summoned
}

// flakyBackend fails selected operations of an in-memory backend.
type flakyBackend struct {
	*store.MemoryBackend
	failWrite   bool
	failRead    bool
	failPointer bool
}

var errDisk = errors.New("disk on fire")

func (b *flakyBackend) Write(ctx context.Context, key string, data []byte) error {
	if b.failWrite {
		return errDisk
	}
	return b.MemoryBackend.Write(ctx, key, data)
}

func (b *flakyBackend) Read(ctx context.Context, key string) ([]byte, error) {
	if b.failRead {
		return nil, errDisk
	}
	return b.MemoryBackend.Read(ctx, key)
}

func (b *flakyBackend) WritePointer(ctx context.Context, id string) error {
	if b.failPointer {
		return errDisk
	}
	return b.MemoryBackend.WritePointer(ctx, id)
}

func fixedClock(t *testing.T, ts time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = prev })
}

func newTestService(t *testing.T, depth int) (*Service, *fakeClient, *store.MemoryBackend) {
	t.Helper()
	backend := store.NewMemoryBackend()
	client := &fakeClient{}
	svc := NewService(NewStore(backend), client, Options{Model: "test-model", Temperature: 0.2, MaxTokens: 64, MemoryDepth: depth})
	return svc, client, backend
}

func seed(t *testing.T, st *Store, names ...string) []*Record {
	t.Helper()
	var out []*Record
	for i, name := range names {
		rec := NewRecord(Profile{Name: name, BirthYear: 1850 + i})
		require.NoError(t, st.Put(context.Background(), rec))
		out = append(out, rec)
	}
	return out
}

func lastUser(msgs []inference.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == inference.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

func countRole(turns []Turn, role string) int {
	n := 0
	for _, t := range turns {
		if strings.EqualFold(t.Role, role) {
			n++
		}
	}
	return n
}
