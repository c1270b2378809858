package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/coragem/retrieval/vectorstore"
	"github.com/qdrant/go-client/qdrant"
)

// Payload field names used in the Qdrant collection.
const (
	fieldContent    = "content"
	fieldDocumentID = "document_id"
	fieldTitle      = "title"
	fieldDepartment = "department"
	fieldDocType    = "doc_type"
	fieldChunkIndex = "chunk_index"
	fieldVersion    = "version"
	fieldIsActive   = "is_active"
)

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant server address (e.g., "https://example.qdrant.io:6334").
	URL string

	// CollectionName is the name of the collection to use.
	CollectionName string

	// APIKey is optional API key for authentication.
	APIKey string

	// VectorSize is the embedding dimension, used when the collection has
	// to be created.
	VectorSize int
}

// Client implements vectorstore.Index for Qdrant.
type Client struct {
	client         *qdrant.Client
	collectionName string
	vectorSize     int
}

// New creates a new Qdrant client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}

	// Parse the URL to extract host, port, and scheme
	parsedURL := cfg.URL
	if !strings.HasPrefix(parsedURL, "http://") && !strings.HasPrefix(parsedURL, "https://") {
		parsedURL = "https://" + parsedURL
	}

	u, err := url.Parse(parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	// Extract host and port
	host := u.Hostname()
	port := 6334 // default port
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid port: %w", err)
		}
		port = p
	}

	useTLS := u.Scheme == "https"

	// Create Qdrant client
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Client{
		client:         qdrantClient,
		collectionName: cfg.CollectionName,
		vectorSize:     cfg.VectorSize,
	}, nil
}

// EnsureCollection creates the collection if it does not exist yet.
func (c *Client) EnsureCollection(ctx context.Context) error {
	exists, err := c.client.CollectionExists(ctx, c.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(c.vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", c.collectionName, err)
	}
	return nil
}

// Upsert implements vectorstore.Index.
func (c *Client) Upsert(ctx context.Context, entries []vectorstore.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	wait := true
	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(e.ChunkID),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				fieldContent:    e.Payload.Content,
				fieldDocumentID: e.Payload.DocumentID,
				fieldTitle:      e.Payload.Title,
				fieldDepartment: e.Payload.Department,
				fieldDocType:    e.Payload.DocType,
				fieldChunkIndex: e.Payload.ChunkIndex,
				fieldVersion:    e.Payload.Version,
				fieldIsActive:   e.Payload.Active,
			}),
		})
	}

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collectionName,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return len(points), nil
}

// Search implements vectorstore.Index.
func (c *Client) Search(ctx context.Context, vector []float32, filter vectorstore.SearchFilter, limit int) ([]vectorstore.SearchResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	qdrantFilter := buildQdrantFilter(filter)

	// Perform search using Query method
	limitUint64 := uint64(limit)
	points, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitUint64,
		Filter:         qdrantFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	// Convert results
	results := make([]vectorstore.SearchResult, 0, len(points))
	for _, point := range points {
		result := vectorstore.SearchResult{
			Score: point.Score,
		}

		// Extract ID
		if point.Id != nil {
			if uuid := point.Id.GetUuid(); uuid != "" {
				result.ChunkID = uuid
			} else if num := point.Id.GetNum(); num != 0 {
				result.ChunkID = fmt.Sprintf("%d", num)
			}
		}

		// Extract payload
		if point.Payload != nil {
			result.Payload = extractPayload(point.Payload)
			result.Content = result.Payload.Content
		}

		results = append(results, result)
	}

	return results, nil
}

// SetActive implements vectorstore.Index.
// Flips is_active for every entry of the given document version in one
// payload update, applied server-side against a document_id filter.
func (c *Client) SetActive(ctx context.Context, documentID string, active bool) (int, error) {
	docFilter := &qdrant.Filter{
		Must: []*qdrant.Condition{matchCondition(fieldDocumentID, documentID)},
	}

	count, err := c.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: c.collectionName,
		Filter:         docFilter,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count failed: %w", err)
	}

	wait := true
	_, err = c.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: c.collectionName,
		Payload:        qdrant.NewValueMap(map[string]any{fieldIsActive: active}),
		PointsSelector: qdrant.NewPointsSelectorFilter(docFilter),
		Wait:           &wait,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant set payload failed: %w", err)
	}
	return int(count), nil
}

// Delete implements vectorstore.Index.
func (c *Client) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	ids := make([]*qdrant.PointId, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		ids = append(ids, qdrant.NewID(id))
	}

	wait := true
	_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: c.collectionName,
		Points:         qdrant.NewPointsSelector(ids...),
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("qdrant delete failed: %w", err)
	}
	return nil
}

// Close implements vectorstore.Index.
func (c *Client) Close() error {
	return c.client.Close()
}

// buildQdrantFilter converts a SearchFilter to a Qdrant Filter. The filter
// is part of the query itself, so department scoping is applied by the
// index before ranking, never by post-filtering.
func buildQdrantFilter(filter vectorstore.SearchFilter) *qdrant.Filter {
	conditions := []*qdrant.Condition{
		matchCondition(fieldDepartment, filter.Department),
	}
	if filter.ActiveOnly {
		conditions = append(conditions, matchCondition(fieldIsActive, true))
	}
	return &qdrant.Filter{Must: conditions}
}

// matchCondition creates a match condition for a key-value pair.
func matchCondition(key string, value any) *qdrant.Condition {
	var match *qdrant.Match

	switch v := value.(type) {
	case string:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}}
	case int:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(v)}}
	case int64:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: v}}
	case bool:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: v}}
	default:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: fmt.Sprintf("%v", v)}}
	}

	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: match,
			},
		},
	}
}

// extractPayload converts a Qdrant payload map to a typed Payload.
func extractPayload(payload map[string]*qdrant.Value) vectorstore.Payload {
	p := vectorstore.Payload{}
	for k, v := range payload {
		switch k {
		case fieldContent:
			p.Content = v.GetStringValue()
		case fieldDocumentID:
			p.DocumentID = v.GetStringValue()
		case fieldTitle:
			p.Title = v.GetStringValue()
		case fieldDepartment:
			p.Department = v.GetStringValue()
		case fieldDocType:
			p.DocType = v.GetStringValue()
		case fieldChunkIndex:
			p.ChunkIndex = int(v.GetIntegerValue())
		case fieldVersion:
			p.Version = int(v.GetIntegerValue())
		case fieldIsActive:
			p.Active = v.GetBoolValue()
		}
	}
	return p
}

// Compile-time check that Client implements Index.
var _ vectorstore.Index = (*Client)(nil)
