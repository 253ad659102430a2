// Package labrag is a retrieval-augmented chat service for a research lab.
//
// A ReAct agent answers questions over two knowledge sources: the lab's
// paper corpus, chunked and embedded into a vector collection, and a
// relational database reachable through schema, query and semantic-search
// tools. The agent is served behind an OpenAI-compatible chat API, so any
// chat client that speaks /v1/chat/completions can use it.
//
// # Quick Start
//
// Ingest the papers and start the server:
//
//	labrag ingest --config labrag.yaml
//	labrag serve --config labrag.yaml
//
// Ask from the command line:
//
//	labrag ask "Which papers discuss graph attention?"
//
// Configuration is YAML with ${VAR} expansion; the usual OLLAMA_*, MILVUS_*
// and MSSQL_* environment variables override it. Print the schema with
//
//	labrag schema
//
// # Packages
//
//   - pkg/agent: the reasoning loop and its reply parser
//   - pkg/tools: the tool registry and the lab tool set
//   - pkg/ingest: loaders, the parallel splitter and the indexing pipeline
//   - pkg/server: the chat HTTP API
//   - pkg/runtime: wires configuration into the shared backends
package labrag
