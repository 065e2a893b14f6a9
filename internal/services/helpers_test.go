package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"otplink/internal/email"
	"otplink/internal/models"
	"otplink/internal/persistence"
	"otplink/internal/secret"
	"otplink/internal/store"
)

func newTestStore(t *testing.T) *persistence.BoltStore {
	t.Helper()
	s, err := persistence.OpenBolt(filepath.Join(t.TempDir(), "otplink.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestBox(t *testing.T) *secret.Box {
	t.Helper()
	box, err := secret.Load("test-settings-key", "")
	require.NoError(t, err)
	return box
}

type fakeMailer struct {
	mu    sync.Mutex
	err   error
	sent  []email.Message
	delay time.Duration
}

func (f *fakeMailer) Send(ctx context.Context, settings models.EmailSettings, msg email.Message) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// hookServer counts POSTs and answers with status.
type hookServer struct {
	*httptest.Server
	hits   int32
	status int32
}

func newHookServer(t *testing.T, status int) *hookServer {
	h := &hookServer{status: int32(status)}
	h.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&h.hits, 1)
		w.WriteHeader(int(atomic.LoadInt32(&h.status)))
	}))
	t.Cleanup(h.Close)
	return h
}

func (h *hookServer) count() int {
	return int(atomic.LoadInt32(&h.hits))
}

// brokenStore fails every call.
type brokenStore struct{ store.RecordStore }

var errDiskGone = errors.New("disk gone")

func (brokenStore) LoadConfiguration(context.Context) (*models.Configuration, error) {
	return nil, errDiskGone
}
func (brokenStore) GetOTPRecord(context.Context, string) (*models.OTPRecord, error) {
	return nil, errDiskGone
}
func (brokenStore) SaveOTPRecord(context.Context, *models.OTPRecord) error { return errDiskGone }

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBroadcaster) Broadcast(event string, payload interface{}) {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
}

func (b *recordingBroadcaster) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}
