// Package segmenter splits normalized, header-annotated document text into
// a two-tier parent/child chunk hierarchy.
//
// Parents are complete header-delimited sections kept whole for answer
// context. Children are embedding-sized sub-segments of a parent, produced
// with a cascading separator preference and a fixed character overlap so a
// concept spanning a split point survives in at least one child.
//
// Segmentation is pure and deterministic: the same input text always yields
// the same boundaries, indices, and ordering. It never fails; text with no
// recognizable headers degrades to a single parent covering the whole
// document.
package segmenter
