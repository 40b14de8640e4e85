// Package pipeline runs document processing as Temporal workflows.
//
// Each document moves through extract, segment, and embed stages, with
// processing status recorded on the document row at every transition.
// Chunk materialization replaces rather than appends, so re-running a
// document's workflow is safe. Folder ingestion fans out one child
// workflow per document with bounded parallelism.
package pipeline
