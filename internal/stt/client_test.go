package stt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/murmur/internal/audio"
	"github.com/rbright/murmur/internal/fault"
)

func TestRecognizeSendsRequestAndJoinsTopAlternatives(t *testing.T) {
	var received recognizeRequest
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotKey = r.URL.Query().Get("key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"results":[
			{"alternatives":[{"transcript":"hello"},{"transcript":"yellow"}]},
			{"alternatives":[]},
			{"alternatives":[{"transcript":" there "}]}
		]}`))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, APIKey: "secret", Timeout: time.Second})
	text, err := client.Recognize(context.Background(), audio.NewPayload([]byte{1, 2, 3}, audio.EncodingLinear16, 16000), "en-US")
	require.NoError(t, err)
	require.Equal(t, "hello there", text)

	require.Equal(t, "secret", gotKey)
	require.Equal(t, "LINEAR16", received.Config.Encoding)
	require.Equal(t, 16000, received.Config.SampleRateHertz)
	require.Equal(t, "en-US", received.Config.LanguageCode)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), received.Audio.Content)
}

func TestRecognizeNoResultsIsEmptyTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL})
	text, err := client.Recognize(context.Background(), audio.NewPayload([]byte{1}, audio.EncodingLinear16, 16000), "en-US")
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestRecognizeFailuresAreServiceFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "http error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			},
			wantErr: "quota exceeded",
		},
		{
			name: "bad body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"results":`))
			},
			wantErr: "decode",
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
			},
			wantErr: "recognize request",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			client := NewClient(Config{Endpoint: server.URL, Timeout: 50 * time.Millisecond})
			_, err := client.Recognize(context.Background(), audio.NewPayload([]byte{1}, audio.EncodingLinear16, 16000), "en-US")
			require.ErrorIs(t, err, fault.ErrServiceFailure)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestRecognizeCancelledContextIsNotServiceFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Config{Endpoint: server.URL})
	_, err := client.Recognize(ctx, audio.NewPayload([]byte{1}, audio.EncodingLinear16, 16000), "en-US")
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, fault.ErrServiceFailure)
	require.Equal(t, int32(0), calls.Load())
}

func TestRecognizeEmptyPayloadSkipsRequest(t *testing.T) {
	client := NewClient(Config{Endpoint: "http://127.0.0.1:1"})
	_, err := client.Recognize(context.Background(), audio.Payload{}, "en-US")
	require.ErrorIs(t, err, fault.ErrNoSpeech)
}
