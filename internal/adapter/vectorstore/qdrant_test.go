package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
)

func testPredicate() *domain.AccessPredicate {
	return &domain.AccessPredicate{
		TenantID:         "t1",
		AllowedRoles:     []domain.UserRole{domain.UserRoleCustomer},
		PublicVisibility: domain.VisibilityPublic,
	}
}

func newTestQdrant(t *testing.T, handler http.HandlerFunc) *Qdrant {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s, err := NewQdrant(QdrantConfig{URL: srv.URL, APIKey: "secret", Collection: "kb"}, logger.Nop())
	require.NoError(t, err)
	return s
}

func TestQdrantSearchSendsAccessFilter(t *testing.T) {
	var got map[string]any
	s := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/collections/kb/points/search", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"ok","time":0.001,"result":[
			{"id":"a","score":0.52,"payload":{"chunk_id":"doc.txt#0","content":"low","tenant_id":"t1","access_roles":["customer"],"document_visibility":"Private","chunk_index":0}},
			{"id":"b","score":0.91,"payload":{"chunk_id":"doc.txt#1","content":"high","tenant_id":"t1","access_roles":["associate"],"document_visibility":"Public","chunk_index":1}},
			{"id":"c","score":0.99,"payload":{"chunk_id":"other.txt#0","content":"leak","tenant_id":"t2","access_roles":["customer"],"document_visibility":"Public","chunk_index":0}}
		]}`))
	})

	docs, err := s.Search(context.Background(), []float32{0.1, 0.2}, testPredicate(), 0)
	require.NoError(t, err)

	assert.EqualValues(t, DefaultK, got["limit"])
	filter := got["filter"].(map[string]any)
	must := filter["must"].([]any)
	require.Len(t, must, 1)
	assert.Equal(t, "tenant_id", must[0].(map[string]any)["key"])
	assert.Len(t, filter["should"], 2)

	require.Len(t, docs, 2, "documents of another tenant are dropped even if the server returns them")
	assert.Equal(t, "doc.txt#1", docs[0].ID)
	assert.Equal(t, "high", docs[0].Content)
	assert.InDelta(t, 0.91, docs[0].Similarity, 1e-9)
	assert.Equal(t, 1, docs[0].Metadata.ChunkIndex)
	assert.Equal(t, "doc.txt#0", docs[1].ID)
}

func TestQdrantSearchRequiresPredicate(t *testing.T) {
	s := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := s.Search(context.Background(), []float32{1}, nil, 4)
	assert.ErrorIs(t, err, ErrMissingPredicate)
}

func TestQdrantErrorStatus(t *testing.T) {
	s := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status":{"error":"boom"}}`))
	})
	_, err := s.Search(context.Background(), []float32{1}, testPredicate(), 4)
	var oe *OperationError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, OperationErrorQueryFailed, oe.Code)
	assert.Equal(t, http.StatusInternalServerError, oe.StatusCode)
}

func TestQdrantEnvelopeStatusError(t *testing.T) {
	s := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":{"error":"wrong vector size"},"result":null}`))
	})
	_, err := s.Search(context.Background(), []float32{1}, testPredicate(), 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong vector size")
}

func TestQdrantUpsert(t *testing.T) {
	var got struct {
		Points []struct {
			ID      string         `json:"id"`
			Vector  []float32      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	s := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/kb/points", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"ok","result":{"status":"completed"}}`))
	})

	chunk := domain.DocumentChunk{
		ID:      "doc.txt#0",
		Content: "hello",
		Vector:  []float32{1, 0},
		Metadata: domain.DocumentMetadata{
			TenantID:    "t1",
			AccessRoles: []domain.UserRole{domain.UserRoleCustomer},
			Visibility:  domain.VisibilityPrivate,
		},
	}
	require.NoError(t, s.Upsert(context.Background(), []domain.DocumentChunk{chunk}))
	require.Len(t, got.Points, 1)
	assert.Equal(t, pointID("doc.txt#0"), got.Points[0].ID)
	assert.Equal(t, "t1", got.Points[0].Payload["tenant_id"])
	assert.Equal(t, "hello", got.Points[0].Payload["content"])
	assert.Equal(t, "doc.txt#0", got.Points[0].Payload["chunk_id"])
}

func TestQdrantUpsertRejectsUntaggedChunk(t *testing.T) {
	s := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	err := s.Upsert(context.Background(), []domain.DocumentChunk{{ID: "x", Vector: []float32{1}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant_id")
}

func TestQdrantEnsureCollectionCreatesWhenMissing(t *testing.T) {
	var created map[string]any
	s := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":{"error":"Not found"}}`))
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.Write([]byte(`{"status":"ok","result":true}`))
		}
	})
	require.NoError(t, s.EnsureCollection(context.Background(), 64))
	vectors := created["vectors"].(map[string]any)
	assert.EqualValues(t, 64, vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestNewQdrantValidatesConfig(t *testing.T) {
	_, err := NewQdrant(QdrantConfig{Collection: "kb"}, nil)
	var ce *domain.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}
