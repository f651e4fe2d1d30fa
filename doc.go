// Package contextbridge assembles cited, governed context for questions
// asked over heterogeneous enterprise data.
//
// For each question the engine selects the sources a profile allows, asks
// a model for one read-only query per source, runs those queries
// concurrently under per-source and overall deadlines, indexes the rows in
// a similarity store and retrieves the most relevant snippets. The result
// is a context pack: snippets, citations back to the query or document
// that produced each snippet, the queries that ran and human-readable notes
// about sources that failed or timed out. A reasoning model then answers
// strictly from that context and every exchange is recorded as a trace.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/kadirpekel/contextbridge/cmd/contextbridge@latest
//
// Describe your sources:
//
//	connectors:
//	  - name: invoices_db
//	    kind: sql
//	    config:
//	      driver: sqlite3
//	      dsn: data/invoices.db
//	  - name: crm_api
//	    kind: rest
//	    config:
//	      base_url: http://localhost:9000
//	      endpoints:
//	        /customers: {method: GET, params: [name]}
//	  - name: docs
//	    kind: files
//	    config:
//	      root_dir: ./docs
//
// Ask a question or start the API:
//
//	contextbridge ask --config contextbridge.yaml "Show unpaid invoices for ACME Corp"
//	contextbridge serve --config contextbridge.yaml
//
// # Packages
//
//   - pkg/connector: tabular (SQL), parameterized (REST) and document sources
//   - pkg/querygen: read-only query generation and validation
//   - pkg/indexer, pkg/embedder, pkg/vector: the similarity index
//   - pkg/orchestrator: the concurrent fan-out and context pack assembly
//   - pkg/reasoning: answering from context, PII redaction
//   - pkg/audit: trace storage
//   - pkg/runtime, pkg/server: process wiring and the HTTP API
package contextbridge
