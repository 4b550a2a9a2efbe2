package fetcher

import (
	"context"
	"errors"
	"fmt"
	"matrusp-crawler/internal/components/telemetry"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClientFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("user-agent") != "MatrUSPbot/test" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("content-type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<p>Créditos Aula</p>")
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/html; charset=iso-8859-1")
		// "Início" encoded in ISO-8859-1
		w.Write([]byte("In\xedcio"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(Options{UserAgent: "MatrUSPbot/test"}, &telemetry.Recorder{})
	ctx := context.Background()

	body, err := client.Fetch(ctx, server.URL+"/ok", time.Second)
	require.NoError(t, err)
	require.Equal(t, "<p>Créditos Aula</p>", body)

	body, err = client.Fetch(ctx, server.URL+"/latin1", time.Second)
	require.NoError(t, err)
	require.Equal(t, "Início", body)

	_, err = client.Fetch(ctx, server.URL+"/missing", time.Second)
	var badStatus *BadStatusError
	require.ErrorAs(t, err, &badStatus)
	require.Equal(t, http.StatusNotFound, badStatus.Code)
	require.False(t, Retryable(err))

	_, err = client.Fetch(ctx, server.URL+"/slow", 50*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	require.True(t, Retryable(err))
}

func TestClientFetchConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(Options{}, &telemetry.Recorder{})
	_, err := client.Fetch(context.Background(), url, time.Second)
	require.Error(t, err)
	require.True(t, Retryable(err))
}

type stubFetcher struct {
	mutex    sync.Mutex
	timeouts []time.Duration
	results  []error
	body     string
}

func (s *stubFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	attempt := len(s.timeouts)
	s.timeouts = append(s.timeouts, timeout)
	if attempt < len(s.results) && s.results[attempt] != nil {
		return "", s.results[attempt]
	}
	return s.body, nil
}

func TestRetrying(t *testing.T) {
	timeoutErr := fmt.Errorf("%w: deadline", ErrTimeout)
	clientErr := fmt.Errorf("%w: connection reset", ErrClient)
	badStatus := &BadStatusError{Url: "x", Code: 500}

	table := []struct {
		name             string
		results          []error
		expectedTimeouts []time.Duration
		expectedErr      error
	}{
		{
			name:             "success on first attempt",
			results:          nil,
			expectedTimeouts: []time.Duration{time.Second},
		},
		{
			name:             "timeout then success",
			results:          []error{timeoutErr},
			expectedTimeouts: []time.Duration{time.Second, 2 * time.Second},
		},
		{
			name:             "two timeouts",
			results:          []error{timeoutErr, timeoutErr},
			expectedTimeouts: []time.Duration{time.Second, 2 * time.Second},
			expectedErr:      ErrTimeout,
		},
		{
			name:             "client error then timeout",
			results:          []error{clientErr, timeoutErr},
			expectedTimeouts: []time.Duration{time.Second, 2 * time.Second},
			expectedErr:      ErrTimeout,
		},
		{
			name:             "bad status is not retried",
			results:          []error{badStatus},
			expectedTimeouts: []time.Duration{time.Second},
			expectedErr:      badStatus,
		},
	}

	for _, row := range table {
		t.Run(row.name, func(t *testing.T) {
			stub := &stubFetcher{results: row.results, body: "ok"}
			retrying := NewRetrying(stub, &telemetry.Recorder{})

			body, err := retrying.Fetch(context.Background(), "http://upstream/doc", time.Second)
			require.Equal(t, row.expectedTimeouts, stub.timeouts)
			if row.expectedErr == nil {
				require.NoError(t, err)
				require.Equal(t, "ok", body)
				return
			}
			require.Error(t, err)
			require.Empty(t, body)
			require.True(t, errors.Is(err, row.expectedErr))
		})
	}
}

func TestRetryingStopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubFetcher{results: []error{fmt.Errorf("%w: %w", ErrClient, context.Canceled)}}
	retrying := NewRetrying(stub, &telemetry.Recorder{})

	_, err := retrying.Fetch(ctx, "http://upstream/doc", time.Second)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []time.Duration{time.Second}, stub.timeouts)
}

func TestClientCanceledIsNotRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	rec := &telemetry.Recorder{}
	retrying := NewRetrying(NewClient(Options{}, rec), rec)

	time.AfterFunc(50*time.Millisecond, cancel)
	start := time.Now()
	_, err := retrying.Fetch(ctx, server.URL, 5*time.Second)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Empty(t, rec.Find(telemetry.SEVERITY_DEBUG, report_retrying_fetch))
}
