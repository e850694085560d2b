package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
)

// EvalQuery pairs a question with the document sources expected to answer it.
type EvalQuery struct {
	Question        string   `json:"question"`
	ExpectedSources []string `json:"expected_sources"`
}

// QueryResult is the per-query outcome of an evaluation run.
type QueryResult struct {
	QueryID          int      `json:"query_id"`
	Question         string   `json:"question"`
	ExpectedSources  []string `json:"expected_sources"`
	RetrievedSources []string `json:"retrieved_sources"`
	PrecisionAtK     float64  `json:"precision_at_k"`
}

// Summary aggregates an evaluation run.
type Summary struct {
	TotalQueries               int     `json:"total_queries"`
	KValue                     int     `json:"k_value"`
	OverallAveragePrecisionAtK float64 `json:"overall_average_precision_at_k"`
}

// Report is the full evaluation output served by GET /eval.
type Report struct {
	Summary Summary       `json:"evaluation_summary"`
	Results []QueryResult `json:"query_results"`
}

// DefaultEvalQueries is the fixed query set for the sample corpus.
func DefaultEvalQueries() []EvalQuery {
	return []EvalQuery{
		{Question: "How do I initialize the Supabase client in Python?", ExpectedSources: []string{"Client_Initialization_and_Setup.pdf", "Supabase_Python_Introduction.pdf"}},
		{Question: "What are the authentication methods supported by Supabase?", ExpectedSources: []string{"Authentication_Methods.pdf"}},
		{Question: "How can I perform CRUD operations on the database?", ExpectedSources: []string{"Database_Operations.pdf"}},
		{Question: "What are Supabase Edge Functions?", ExpectedSources: []string{"Edge_Functions_and_API_Integration.pdf"}},
		{Question: "How does Supabase handle real-time subscriptions?", ExpectedSources: []string{"Real-time_Subscriptions.pdf"}},
		{Question: "What are security best practices for Supabase?", ExpectedSources: []string{"Error_Handling_and_Security.pdf"}},
		{Question: "How do I upload files to Supabase storage?", ExpectedSources: []string{"Storage_Management.pdf"}},
		{Question: "What is the purpose of the .env file?", ExpectedSources: []string{"Client_Initialization_and_Setup.pdf"}},
		{Question: "Can Supabase handle database relationships?", ExpectedSources: []string{"Database_Operations.pdf"}},
		{Question: "What is the embedding dimension for all-MiniLM-L6-v2?", ExpectedSources: []string{}},
	}
}

// EvaluatorConfig contains parameters for the retrieval evaluation harness.
type EvaluatorConfig struct {
	Embedder  Embedder
	Documents DocumentMatcher
	Logger    *slog.Logger

	// Queries overrides the evaluation set. Nil means DefaultEvalQueries.
	Queries []EvalQuery

	// RetrieveK is how many chunks are fetched per query (default 5).
	// PrecisionK is the precision@k divisor (default 3). The defaults do
	// not match each other; that mismatch reproduces the reference scoring
	// and changing it changes every historical number.
	RetrieveK  int
	PrecisionK int
}

// Evaluator scores document retrieval quality against a fixed query set.
// It exercises only the embedding and document ports, never history or the
// language model.
type Evaluator struct {
	embedder   Embedder
	documents  DocumentMatcher
	logger     *slog.Logger
	queries    []EvalQuery
	retrieveK  int
	precisionK int
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(cfg EvaluatorConfig) (*Evaluator, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.Documents == nil {
		return nil, errors.New("document matcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queries := cfg.Queries
	if queries == nil {
		queries = DefaultEvalQueries()
	}
	retrieveK := cfg.RetrieveK
	if retrieveK == 0 {
		retrieveK = DefaultDocumentK
	}
	precisionK := cfg.PrecisionK
	if precisionK == 0 {
		precisionK = 3
	}

	return &Evaluator{
		embedder:   cfg.Embedder,
		documents:  cfg.Documents,
		logger:     logger,
		queries:    queries,
		retrieveK:  retrieveK,
		precisionK: precisionK,
	}, nil
}

// Evaluate runs every query through document retrieval and scores
// precision@k against the expected sources.
func (ev *Evaluator) Evaluate(ctx context.Context) (Report, error) {
	results := make([]QueryResult, 0, len(ev.queries))
	var precisionSum float64

	for i, query := range ev.queries {
		vec, err := ev.embedder.Embed(ctx, query.Question)
		if err != nil {
			return Report{}, fmt.Errorf("embedding eval query %d: %w", i+1, err)
		}
		chunks, err := ev.documents.MatchDocuments(ctx, vec, ev.retrieveK)
		if err != nil {
			return Report{}, fmt.Errorf("retrieving for eval query %d: %w", i+1, err)
		}

		retrieved := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			retrieved = append(retrieved, sourceBasename(chunk.Metadata["source"]))
		}

		matched := 0
		for _, source := range retrieved {
			if slices.Contains(query.ExpectedSources, source) {
				matched++
			}
		}
		precision := float64(matched) / float64(ev.precisionK)
		precisionSum += precision

		results = append(results, QueryResult{
			QueryID:          i + 1,
			Question:         query.Question,
			ExpectedSources:  query.ExpectedSources,
			RetrievedSources: retrieved,
			PrecisionAtK:     precision,
		})
	}

	var overall float64
	if len(results) > 0 {
		overall = precisionSum / float64(len(results))
	}

	ev.logger.Debug("evaluation completed",
		"queries", len(results),
		"overall_precision", overall)

	return Report{
		Summary: Summary{
			TotalQueries:               len(ev.queries),
			KValue:                     ev.precisionK,
			OverallAveragePrecisionAtK: overall,
		},
		Results: results,
	}, nil
}

// sourceBasename strips any directory prefix from a source path.
// Missing sources stay empty rather than becoming ".".
func sourceBasename(source string) string {
	if source == "" {
		return ""
	}
	return path.Base(source)
}
