package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractReplyPrecedence(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
		want string
	}{
		{
			name: "reply wins over message",
			doc:  map[string]any{"reply": "A", "message": "B"},
			want: "A",
		},
		{
			name: "message when no reply",
			doc:  map[string]any{"message": "B"},
			want: "B",
		},
		{
			name: "text as last named candidate",
			doc:  map[string]any{"text": "C", "other": "D"},
			want: "C",
		},
		{
			name: "empty reply falls through to message",
			doc:  map[string]any{"reply": "", "message": "B"},
			want: "B",
		},
		{
			name: "non-string reply falls through",
			doc:  map[string]any{"reply": 42, "text": "C"},
			want: "C",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractReply(tt.doc))
		})
	}
}

func TestExtractReplyFallbackSerializes(t *testing.T) {
	got := ExtractReply(map[string]any{"other": float64(1)})

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &doc))
	assert.Equal(t, map[string]any{"other": float64(1)}, doc)
}

func TestInvokeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "hello", payload["content"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"reply":"hi"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	doc, err := client.Invoke(context.Background(), map[string]any{"content": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hi", doc["reply"])
}

func TestInvokePlainTextBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("plain answer"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	doc, err := client.Invoke(context.Background(), map[string]any{"content": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "plain answer", doc["reply"])
}

func TestInvokeNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Invoke(context.Background(), map[string]any{"content": "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestInvokeMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Invoke(context.Background(), map[string]any{"content": "hello"})
	assert.Error(t, err)
}

func TestInvokeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 20*time.Millisecond)
	_, err := client.Invoke(context.Background(), map[string]any{"content": "hello"})
	assert.Error(t, err)
}

func TestInvokeUnconfigured(t *testing.T) {
	client := NewClient("", 5*time.Second)
	_, err := client.Invoke(context.Background(), map[string]any{"content": "hello"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
