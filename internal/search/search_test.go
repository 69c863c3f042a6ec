package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerpAPI_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "The Earth is flat.", r.URL.Query().Get("q"))
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"organic_results":[
			{"position":1,"title":"A","link":"https://a.example","snippet":"a"},
			{"position":2,"title":"B","link":"https://b.example"},
			{"position":3,"title":"no link"}
		]}`))
	}))
	defer srv.Close()

	c := NewSerpAPIWithEndpoint(srv.URL, "secret", 5*time.Second)
	results, err := c.Search(context.Background(), "The Earth is flat.")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "https://a.example", results[0].URL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, URLs(results))
}

func TestSerpAPI_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusUnauthorized, `{"error":"Invalid API key"}`},
		{"in-band error", http.StatusOK, `{"error":"Google hasn't returned any results for this query."}`},
		{"bad json", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewSerpAPIWithEndpoint(srv.URL, "k", time.Second).Search(context.Background(), "q")
			assert.Error(t, err)
		})
	}
}

func TestSearXNG_SortsByScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Write([]byte(`{"query":"q","results":[
			{"title":"low","url":"https://low.example","score":0.2},
			{"title":"high","url":"https://high.example","score":3.5}
		]}`))
	}))
	defer srv.Close()

	results, err := NewSearXNG(srv.URL+"/", time.Second).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://high.example", "https://low.example"}, URLs(results))
}

func TestSearXNG_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewSearXNG(srv.URL, time.Second).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
