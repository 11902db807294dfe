package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliver_SignsBody(t *testing.T) {
	var gotSig, gotType string
	var gotEvent Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		gotType = r.Header.Get("Content-Type")
		_ = json.Unmarshal(body, &gotEvent)
		assert.Equal(t, Sign("s3cret", body), gotSig)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewSender("s3cret")
	ev := NewEvent(EventScrapeCompleted, "job-1", map[string]int{"results": 2})
	require.NoError(t, s.Deliver(context.Background(), srv.URL, ev))

	assert.Equal(t, "application/json", gotType)
	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, gotSig)
	assert.Equal(t, EventScrapeCompleted, gotEvent.Type)
	assert.Equal(t, "job-1", gotEvent.JobID)
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
	}))
	defer srv.Close()

	require.NoError(t, NewSender("").Deliver(context.Background(), srv.URL, NewEvent(EventScrapeCompleted, "j", nil)))
}

func TestDeliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewSender("").Deliver(context.Background(), srv.URL, NewEvent(EventScrapeCompleted, "j", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestDeliverAsync_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	s := NewSender("")
	s.delays = []time.Duration{0, time.Millisecond, time.Millisecond, time.Millisecond}

	select {
	case <-s.DeliverAsync(srv.URL, NewEvent(EventScrapeCompleted, "j", nil)):
	case <-time.After(5 * time.Second):
		t.Fatal("delivery did not finish")
	}
	assert.EqualValues(t, 3, calls.Load())
}

func TestSign(t *testing.T) {
	assert.Equal(t, "sha256=a777724d943eb48dc69bca8a4a6d57a04db3f9ec7e1de4e581e860265bdf3032", Sign("key", []byte("{}")))
	assert.NotEqual(t, Sign("key", []byte("{}")), Sign("other", []byte("{}")))
}
