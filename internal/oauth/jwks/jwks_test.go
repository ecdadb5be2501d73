package jwks

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveKeys(t *testing.T, hits *int32, keys ...map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": keys})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestKey_FetchesAndCaches(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var hits int32
	srv := serveKeys(t, &hits, EncodeRSA("k1", &priv.PublicKey))
	c := New(srv.URL, time.Hour, srv.Client())

	got, err := c.Key(context.Background(), "k1")
	require.NoError(t, err)
	require.Equal(t, 0, got.N.Cmp(priv.PublicKey.N))
	require.Equal(t, priv.PublicKey.E, got.E)

	_, err = c.Key(context.Background(), "k1")
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestKey_UnknownKid(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var hits int32
	srv := serveKeys(t, &hits, EncodeRSA("k1", &priv.PublicKey))
	c := New(srv.URL, time.Hour, srv.Client())

	_, err = c.Key(context.Background(), "nope")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKey_ConcurrentColdStart(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var hits int32
	srv := serveKeys(t, &hits, EncodeRSA("k1", &priv.PublicKey))
	c := New(srv.URL, time.Hour, srv.Client())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Key(context.Background(), "k1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, atomic.LoadInt32(&hits), int32(16))
	require.GreaterOrEqual(t, atomic.LoadInt32(&hits), int32(1))
}

func TestKey_UnknownKidRefetchIsThrottled(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var hits int32
	srv := serveKeys(t, &hits, EncodeRSA("k1", &priv.PublicKey))
	c := New(srv.URL, time.Hour, srv.Client())

	for i := 0; i < 5; i++ {
		_, err = c.Key(context.Background(), "rotated")
		require.ErrorIs(t, err, ErrKeyNotFound)
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))

	_, err = c.Key(context.Background(), "k1")
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))

	later := time.Now().Add(time.Minute)
	c.now = func() time.Time { return later }
	_, err = c.Key(context.Background(), "rotated")
	require.ErrorIs(t, err, ErrKeyNotFound)
	require.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestKey_CancelledCallerDoesNotAbortSharedFetch(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var hits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{EncodeRSA("k1", &priv.PublicKey)}})
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, time.Hour, srv.Client())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Key(ctx, "k1")
		done <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		_, err := c.Key(context.Background(), "k1")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}
