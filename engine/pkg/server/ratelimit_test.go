package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/qrnglabs/qrng/engine/pkg/ledger"
	"github.com/qrnglabs/qrng/engine/pkg/program"
	qrngtesting "github.com/qrnglabs/qrng/utils/pkg/testing"
)

func TestQRNG_Server_RateLimiter_AllowWithRetry(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(rate.Every(time.Hour), 2)
	defer limiter.Stop()

	ip := "192.168.1.1"

	// Burst of 2 per IP, no refill within the test window.
	allowed, _ := limiter.AllowWithRetry(ip)
	require.True(t, allowed)
	allowed, _ = limiter.AllowWithRetry(ip)
	require.True(t, allowed)

	allowed, retryAfter := limiter.AllowWithRetry(ip)
	require.False(t, allowed)
	require.Greater(t, retryAfter, time.Duration(0))

	// A different IP has its own bucket.
	allowed, _ = limiter.AllowWithRetry("192.168.1.2")
	require.True(t, allowed)
}

func TestQRNG_Server_RateLimiter_Stop(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(rate.Every(time.Hour), 1)
	limiter.Stop()
	limiter.Stop() // idempotent

	// The limiter itself keeps working after Stop; only cleanup ends.
	allowed, _ := limiter.AllowWithRetry("192.168.1.1")
	require.True(t, allowed)
}

func TestQRNG_Server_RateLimitMiddleware(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(rate.Every(time.Hour), 1)
	defer limiter.Stop()

	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.50:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	var errResp RateLimitError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	require.Equal(t, "rate_limit_exceeded", errResp.Error)
	require.NotEmpty(t, errResp.Message)
	require.Greater(t, errResp.RetryAfter, 0)
}

func TestQRNG_Server_SubmitInstruction_RateLimited(t *testing.T) {
	t.Parallel()

	store, err := ledger.NewMemoryStore(ledger.MemoryStoreConfig{Logger: qrngtesting.NewLogger()})
	require.NoError(t, err)

	dispatcher, err := program.NewDispatcher(program.DispatcherConfig{
		Logger:    qrngtesting.NewLogger(),
		Clock:     clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0)),
		ProgramID: testPK(90),
		Store:     store,
		InitConfig: ledger.Config{
			TreasuryTokenAccount: testPK(3),
			TokenMint:            testPK(50),
			PricePerRequest:      program.DefaultPricePerRequest,
		},
	})
	require.NoError(t, err)

	srv, err := New(Config{
		Logger:      qrngtesting.NewLogger(),
		ListenAddr:  "127.0.0.1:0",
		Dispatcher:  dispatcher,
		Store:       store,
		SubmitRate:  rate.Every(time.Hour),
		SubmitBurst: 2,
	})
	require.NoError(t, err)

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/instructions",
			bytes.NewBufferString(`{"tag":99}`))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	// The burst admits two submissions; the limiter rejects the third
	// before the handler runs.
	for i := 0; i < 2; i++ {
		rec := post()
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	}

	rec := post()
	require.Equal(t, http.StatusTooManyRequests, rec.Code, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	var errResp RateLimitError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	require.Equal(t, "rate_limit_exceeded", errResp.Error)
}
