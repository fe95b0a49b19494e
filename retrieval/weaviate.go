package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// WeaviateConfig configures the Weaviate-backed VectorStore.
type WeaviateConfig struct {
	// URL is the Weaviate endpoint as host[:port], optionally
	// prefixed with http:// or https://. Scheme defaults to http.
	URL string

	// ClassName is the class holding document chunks. Defaults to
	// "DocumentChunk". The class is expected to carry content,
	// source, position and page properties.
	ClassName string
}

// Weaviate is a VectorStore over a Weaviate instance, querying with
// GraphQL nearVector and reading relevance from the certainty field,
// which is always in [0, 1] regardless of the configured distance
// metric.
type Weaviate struct {
	config WeaviateConfig
	client *weaviate.Client
}

var _ VectorStore = (*Weaviate)(nil)

// NewWeaviate creates a Weaviate vector store. It validates the
// configuration and constructs the client but does not contact the
// server; the first Search does.
func NewWeaviate(config WeaviateConfig) (*Weaviate, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("retrieval: weaviate URL is required")
	}
	if config.ClassName == "" {
		config.ClassName = "DocumentChunk"
	}

	scheme, host := splitURL(config.URL)
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   host,
		Scheme: scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: create weaviate client: %w", err)
	}

	return &Weaviate{config: config, client: client}, nil
}

// splitURL separates an optional scheme prefix from the host,
// defaulting to http.
func splitURL(url string) (scheme, host string) {
	switch {
	case strings.HasPrefix(url, "https://"):
		return "https", strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "http", strings.TrimPrefix(url, "http://")
	default:
		return "http", url
	}
}

// Search queries the configured class for the k chunks nearest to the
// vector, ordered by descending certainty.
func (w *Weaviate) Search(ctx context.Context, vector []float32, k int) ([]Chunk, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("retrieval: empty query vector")
	}
	if k <= 0 {
		return nil, nil
	}

	nearVector := w.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "position"},
		{Name: "page"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	resp, err := w.client.GraphQL().Get().
		WithClassName(w.config.ClassName).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieval: weaviate search: %w", err)
	}

	return decodeSearch(resp, w.config.ClassName)
}

// weaviateHit mirrors one object in the GraphQL Get response.
type weaviateHit struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	Position   int    `json:"position"`
	Page       int    `json:"page"`
	Additional struct {
		Certainty float64 `json:"certainty"`
	} `json:"_additional"`
}

// decodeSearch converts a GraphQL response into chunks. Weaviate
// returns Data as a dynamic map keyed by class name, so the response
// is round-tripped through JSON into a typed shape.
func decodeSearch(resp *models.GraphQLResponse, className string) ([]Chunk, error) {
	if resp == nil {
		return nil, fmt.Errorf("retrieval: nil weaviate response")
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("retrieval: weaviate query: %s", resp.Errors[0].Message)
	}

	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("retrieval: marshal weaviate response: %w", err)
	}
	var parsed struct {
		Get map[string][]weaviateHit `json:"Get"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("retrieval: decode weaviate response: %w", err)
	}

	hits := parsed.Get[className]
	chunks := make([]Chunk, 0, len(hits))
	for _, h := range hits {
		chunks = append(chunks, Chunk{
			Text:     h.Content,
			Source:   h.Source,
			Position: h.Position,
			Score:    h.Additional.Certainty,
			Page:     h.Page,
		})
	}
	return chunks, nil
}
