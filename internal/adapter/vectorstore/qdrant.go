package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/namanjain27/EchoPilot/internal/access"
	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
)

const maxErrorBodyBytes = 1024

var pointIDNamespace = uuid.MustParse("6d1f4c0e-8a0b-4b7e-9c52-3f8e2d7a41b9")

// QdrantConfig points the store at a collection.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Qdrant is a Store backed by the Qdrant REST API. The access predicate is
// translated into a Qdrant filter so documents outside the caller's scope
// never leave the server.
type Qdrant struct {
	cfg     QdrantConfig
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type searchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload json.RawMessage `json:"payload"`
}

// pointPayload is what each point carries besides its vector. Metadata
// fields sit at the top level so the access filter can match on them.
type pointPayload struct {
	ChunkID string `json:"chunk_id"`
	Content string `json:"content"`
	domain.DocumentMetadata
}

// NewQdrant creates a Qdrant store.
func NewQdrant(cfg QdrantConfig, log *logger.Logger) (*Qdrant, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, &domain.ConfigurationError{Field: "qdrant.url", Message: "is required"}
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, &domain.ConfigurationError{Field: "qdrant.collection", Message: "is required"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Qdrant{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.With("component", "qdrant", "collection", cfg.Collection),
	}, nil
}

// EnsureCollection creates the collection with cosine distance when it does
// not exist yet.
func (s *Qdrant) EnsureCollection(ctx context.Context, dim int) error {
	const op = "ensure_collection"
	if dim <= 0 {
		return opErr(op, OperationErrorValidation, "vector dimension must be positive", nil)
	}
	err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, nil)
	if err == nil {
		return nil
	}
	var oe *OperationError
	if !errors.As(err, &oe) || oe.StatusCode != http.StatusNotFound {
		return err
	}
	req := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), req, nil); err != nil {
		return err
	}
	s.log.Info("qdrant collection created", "vector_dim", dim)
	return nil
}

// Upsert writes chunks as points. Point ids are derived from the chunk id so
// re-ingesting a document replaces its previous points.
func (s *Qdrant) Upsert(ctx context.Context, chunks []domain.DocumentChunk) error {
	const op = "upsert"
	if len(chunks) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return opErr(op, OperationErrorValidation, "chunk id is required", nil)
		}
		if len(c.Vector) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("chunk %q has no vector", id), nil)
		}
		if strings.TrimSpace(c.Metadata.TenantID) == "" {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("chunk %q has no tenant_id", id), nil)
		}
		points = append(points, map[string]any{
			"id":     pointID(id),
			"vector": c.Vector,
			"payload": pointPayload{
				ChunkID:          id,
				Content:          c.Content,
				DocumentMetadata: c.Metadata,
			},
		})
	}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
}

// Search returns the k nearest documents admitted by the predicate.
func (s *Qdrant) Search(ctx context.Context, vector []float32, predicate *domain.AccessPredicate, k int) ([]domain.RetrievedDocument, error) {
	const op = "search"
	if predicate == nil {
		return nil, ErrMissingPredicate
	}
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if k <= 0 {
		k = DefaultK
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"with_vector":  false,
		"filter":       access.QdrantFilter(*predicate),
	}
	var items []searchResultItem
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &items); err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedDocument, 0, len(items))
	for _, item := range items {
		var p pointPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			s.log.Warn("skipping point with unreadable payload", "point_id", string(item.ID), "error", err)
			continue
		}
		id := p.ChunkID
		if id == "" {
			id = decodePointID(item.ID)
		}
		out = append(out, domain.RetrievedDocument{
			ID:         id,
			Content:    p.Content,
			Similarity: item.Score,
			Metadata:   p.DocumentMetadata,
		})
	}
	// The server already filtered; this keeps the guarantee local as well.
	out = access.Filter(*predicate, out)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity == out[j].Similarity {
			return out[i].ID < out[j].ID
		}
		return out[i].Similarity > out[j].Similarity
	})
	return out, nil
}

func (s *Qdrant) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func (s *Qdrant) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

func classifyHTTPCallError(op, message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func pointID(chunkID string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(chunkID)).String()
}

func decodePointID(raw json.RawMessage) string {
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return strings.TrimSpace(idString)
	}
	var idNumber int64
	if err := json.Unmarshal(raw, &idNumber); err == nil {
		return fmt.Sprintf("%d", idNumber)
	}
	return strings.TrimSpace(string(raw))
}
