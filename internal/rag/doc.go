// Package rag implements the conversational retrieval-augmented answering
// pipeline for askdoc.
//
// The package owns only orchestration: the ordering and contract between
// history recall, query reformulation, document retrieval, answer generation,
// and history persistence. Everything heavy is behind a port:
//
//	Embedder         text -> fixed-length vector
//	DocumentMatcher  vector + k -> ranked document chunks
//	HistoryStore     similarity recall and append-only persistence of turns
//	Completer        message list -> text
//
// Ports are consumer-defined interfaces so production adapters (Gemini via
// Genkit, PostgreSQL + pgvector) and test fakes are interchangeable.
//
// One deliberate behavior inherited from the reference system: chat history
// is recalled by similarity to the current question, not chronologically,
// and documents are retrieved twice per request: once on the reformulated
// question to build the generation context, and once on the original question
// to compute the sources returned to the caller.
package rag
