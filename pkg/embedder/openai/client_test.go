package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-recall/pkg/embedder/openai"
)

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

func newServer(t *testing.T, handle func(req embeddingRequest) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req embeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		status, body := handle(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedBatchRestoresInputOrder(t *testing.T) {
	var got embeddingRequest
	srv := newServer(t, func(req embeddingRequest) (int, any) {
		got = req
		return http.StatusOK, map[string]any{
			"object": "list",
			"model":  req.Model,
			"data": []map[string]any{
				{"object": "embedding", "index": 1, "embedding": []float32{0, 1}},
				{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
			},
		}
	})

	c, err := openai.NewClient(&openai.Config{APIKey: "test", BaseURL: srv.URL, Dimensions: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Dimensions())

	vecs, err := c.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vecs)

	assert.Equal(t, []string{"first", "second"}, got.Input)
	assert.Equal(t, "text-embedding-3-small", got.Model)
	assert.Equal(t, 2, got.Dimensions)
}

func TestEmbedDefaultsDimensions(t *testing.T) {
	srv := newServer(t, func(req embeddingRequest) (int, any) {
		assert.Zero(t, req.Dimensions)
		return http.StatusOK, map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float32{0.5}}},
		}
	})

	c, err := openai.NewClient(&openai.Config{APIKey: "test", BaseURL: srv.URL, Model: "nomic-embed-text"})
	require.NoError(t, err)
	assert.Equal(t, 1536, c.Dimensions())

	vec, err := c.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, vec)
}

func TestEmbedErrors(t *testing.T) {
	t.Run("empty data", func(t *testing.T) {
		srv := newServer(t, func(embeddingRequest) (int, any) {
			return http.StatusOK, map[string]any{"data": []any{}}
		})
		c, err := openai.NewClient(&openai.Config{APIKey: "test", BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = c.Embed(context.Background(), "q")
		assert.ErrorIs(t, err, openai.ErrEmptyResponse)
	})

	t.Run("api error", func(t *testing.T) {
		srv := newServer(t, func(embeddingRequest) (int, any) {
			return http.StatusInternalServerError, map[string]any{
				"error": map[string]any{"message": "overloaded", "type": "server_error"},
			}
		})
		c, err := openai.NewClient(&openai.Config{APIKey: "test", BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = c.Embed(context.Background(), "q")
		assert.ErrorContains(t, err, "openai embeddings")
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := openai.NewClient(nil)
		assert.Error(t, err)
	})
}
