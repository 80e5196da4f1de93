package rerank

import (
	"encoding/json"
	"sort"

	"github.com/rankbridge/rerankgate/pkg/domain"
)

// Document is a rerank candidate. ID and Metadata are opaque to the
// upstream; only Content is scored.
type Document struct {
	ID       string                 `json:"id,omitempty"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type Request struct {
	Query     string     `json:"query"`
	Documents []Document `json:"documents"`
	Model     string     `json:"model,omitempty"`
	TopK      int        `json:"top_k,omitempty"`
}

func (r *Request) Validate() error {
	if r.Query == "" {
		return domain.ErrEmptyQuery
	}
	if len(r.Documents) == 0 {
		return domain.ErrNoDocuments
	}
	for _, doc := range r.Documents {
		if doc.Content == "" {
			return domain.ErrEmptyDocument
		}
	}
	if r.TopK < 0 {
		return domain.ErrNegativeTopK
	}
	return nil
}

// Limit returns the effective number of results: TopK clamped to the
// document count, or all documents when TopK is zero.
func (r *Request) Limit() int {
	if r.TopK == 0 || r.TopK > len(r.Documents) {
		return len(r.Documents)
	}
	return r.TopK
}

// Score is a single upstream scoring entry referencing an input document
// by position.
type Score struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// RankedDocument pairs an input document with its upstream relevance
// score. Score is nil when the upstream response could not be interpreted.
type RankedDocument struct {
	ID       string                 `json:"id,omitempty"`
	Index    int                    `json:"index"`
	Content  string                 `json:"content"`
	Score    *float64               `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type Usage struct {
	TotalTokens int `json:"total_tokens"`
}

// Result is the gateway's view of a completed rerank call. Raw holds the
// untouched upstream body so callers can always inspect what the upstream
// actually said.
type Result struct {
	Model  string           `json:"model,omitempty"`
	Ranked []RankedDocument `json:"ranked"`
	Raw    json.RawMessage  `json:"voyage_raw,omitempty"`
	Usage  Usage            `json:"usage"`
	Cached bool             `json:"cached,omitempty"`
}

// Join maps upstream scores back onto the request documents and orders
// them by descending relevance. Out-of-range indices are dropped. The
// sort is stable so equal scores keep upstream order.
func Join(docs []Document, scores []Score, limit int) []RankedDocument {
	ranked := make([]RankedDocument, 0, len(scores))
	for _, s := range scores {
		if s.Index < 0 || s.Index >= len(docs) {
			continue
		}
		doc := docs[s.Index]
		score := s.RelevanceScore
		ranked = append(ranked, RankedDocument{
			ID:       doc.ID,
			Index:    s.Index,
			Content:  doc.Content,
			Score:    &score,
			Metadata: doc.Metadata,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].Score > *ranked[j].Score
	})
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}

// Passthrough builds the fallback ranking used when the upstream response
// carries no usable scores: input order, nil scores.
func Passthrough(docs []Document) []RankedDocument {
	ranked := make([]RankedDocument, 0, len(docs))
	for i, doc := range docs {
		ranked = append(ranked, RankedDocument{
			ID:       doc.ID,
			Index:    i,
			Content:  doc.Content,
			Metadata: doc.Metadata,
		})
	}
	return ranked
}
