// Package retrieval holds the shared domain model for the department-isolated
// retrieval pipeline: documents and their version chain, query results, and
// the caller identity that scopes every operation to a department.
package retrieval

import "time"

// DefaultDepartments is the allow-list used when deployment configuration
// provides none.
var DefaultDepartments = []string{
	"HR", "Engineering", "Sales", "Finance", "Legal", "Operations",
}

// Confidence indicates whether an answer was synthesized from
// high-scoring context or returned as a fallback.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Role determines what a caller may do across department boundaries.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	// RoleAdmin may ingest into and query any department, always via an
	// explicit target department, never implicitly.
	RoleAdmin Role = "admin"
)

// Identity is the authenticated caller as reported by the identity provider.
// The coordinators trust Department and Role from here and nowhere else.
type Identity struct {
	UserID     string `json:"user_id"`
	Department string `json:"department"`
	Role       Role   `json:"role"`
}

// IsAdmin reports whether the identity carries the administrative override role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Document is one version in a document's version chain. Versions are never
// physically removed; superseded versions are deactivated. At most one
// version per (title, department) is active, tracked by the store's head
// pointer.
type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Department string    `json:"department"`
	DocType    string    `json:"doc_type"`
	SourceURL  string    `json:"source_url,omitempty"`
	Version    int       `json:"version"`
	IsActive   bool      `json:"is_active"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DocumentChunk is an immutable segment of one document version.
// VectorID references the corresponding entry in the vector index.
type DocumentChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"chunk_index"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"`
	VectorID   string    `json:"vector_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// SourceRef identifies a chunk that contributed to an answer.
type SourceRef struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Department string  `json:"department"`
	ChunkIndex int     `json:"chunk_index"`
	DocType    string  `json:"doc_type"`
	Score      float32 `json:"relevance_score"`
}

// QueryResult is the answer returned to the caller. Sources is empty when
// Confidence is low.
type QueryResult struct {
	Answer     string      `json:"answer"`
	Confidence Confidence  `json:"confidence"`
	Sources    []SourceRef `json:"sources"`
}

// QueryLog records one executed query for analytics. Inserts are
// best-effort and never fail the query itself.
type QueryLog struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	UserID      string    `json:"user_id"`
	Department  string    `json:"department"`
	ResultCount int       `json:"result_count"`
	LatencyMS   float64   `json:"latency_ms"`
	Cached      bool      `json:"cached"`
	Confidence  string    `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
}
