package segmenter

import (
	"strings"
)

// Default sizing, in characters (runes). Meeting documents are CJK-heavy,
// so sizes are counted in runes rather than bytes.
const (
	// DefaultParentThreshold is the parent length above which children are
	// produced by splitting; at or below it the parent becomes one child.
	DefaultParentThreshold = 4000

	// DefaultChildSize is the target child chunk length.
	DefaultChildSize = 500

	// DefaultChildOverlap is the absolute overlap between adjacent children.
	DefaultChildOverlap = 50

	// charsPerToken is a cheap token-count approximation divisor. Used only
	// for downstream budgeting, never for correctness.
	charsPerToken = 2
)

// Config holds segmenter sizing parameters.
type Config struct {
	// ParentThreshold is the maximum parent content length in runes.
	// Oversized sections are subdivided into multiple parents at separator
	// boundaries so answer context stays within a model-friendly size.
	ParentThreshold int

	// ChildSize is the target child length in runes.
	ChildSize int

	// ChildOverlap is the absolute rune overlap between adjacent children.
	ChildOverlap int
}

// applyDefaults fills zero values with defaults and clamps nonsense input.
func (c *Config) applyDefaults() {
	if c.ParentThreshold <= 0 {
		c.ParentThreshold = DefaultParentThreshold
	}
	if c.ChildSize <= 0 {
		c.ChildSize = DefaultChildSize
	}
	if c.ChildOverlap < 0 {
		c.ChildOverlap = DefaultChildOverlap
	}
	if c.ChildOverlap >= c.ChildSize {
		// Overlap must leave forward progress on every step.
		c.ChildOverlap = c.ChildSize / 10
	}
}

// Parent is a header-delimited section of a document. The header line is
// retained inside Content because it carries semantic labels ("report
// agenda", "discussion agenda") used by downstream consumers.
type Parent struct {
	// Index is the parent's position within the document, starting at 0.
	Index int

	// Content is the full section text including its header line.
	Content string

	// TokenEstimate is an approximate token count for budgeting.
	TokenEstimate int

	// Children are the embedding-sized sub-segments, in order. Every parent
	// has at least one child.
	Children []Child
}

// Child is an embedding-sized sub-segment of a parent.
type Child struct {
	// Index is the child's position within its parent, starting at 0.
	Index int

	// Content is the child's own text.
	Content string

	// TokenEstimate is an approximate token count for budgeting.
	TokenEstimate int
}

// Segmenter splits annotated document text into parents and children.
type Segmenter struct {
	cfg Config
}

// New creates a Segmenter. Zero config fields take defaults.
func New(cfg Config) *Segmenter {
	cfg.applyDefaults()
	return &Segmenter{cfg: cfg}
}

// Config returns the effective sizing parameters.
func (s *Segmenter) Config() Config {
	return s.cfg
}

// Segment splits text into an ordered parent/child hierarchy.
//
// Section boundaries are lines starting with the type-level ("# ") or
// item-level ("## ") header markers emitted by the extraction step. Text
// before the first header, and text with no headers at all, becomes a
// single parent so segmentation never fails outright.
func (s *Segmenter) Segment(text string) []Parent {
	sections := splitSections(text)

	var parents []Parent
	for _, sec := range sections {
		for _, piece := range s.boundParent(sec) {
			p := Parent{
				Index:         len(parents),
				Content:       piece,
				TokenEstimate: estimateTokens(piece),
			}
			p.Children = s.splitChildren(piece)
			parents = append(parents, p)
		}
	}
	return parents
}

// boundParent subdivides a section that exceeds the parent threshold into
// parent-sized pieces at separator boundaries, without overlap. Sections
// within the threshold pass through whole.
func (s *Segmenter) boundParent(section string) []string {
	runes := []rune(section)
	if len(runes) <= s.cfg.ParentThreshold {
		return []string{section}
	}
	return slideSplit(runes, s.cfg.ParentThreshold, 0)
}

// splitChildren produces children for one parent. Parents at or below the
// child size yield exactly one child equal to the whole parent, so every
// parent has searchable content even when small.
func (s *Segmenter) splitChildren(content string) []Child {
	runes := []rune(content)
	if len(runes) <= s.cfg.ChildSize {
		return []Child{{
			Index:         0,
			Content:       content,
			TokenEstimate: estimateTokens(content),
		}}
	}

	pieces := slideSplit(runes, s.cfg.ChildSize, s.cfg.ChildOverlap)
	children := make([]Child, len(pieces))
	for i, piece := range pieces {
		children[i] = Child{
			Index:         i,
			Content:       piece,
			TokenEstimate: estimateTokens(piece),
		}
	}
	return children
}

// splitSections cuts text at type- and item-level header lines. The header
// line is kept at the top of its section's content, never stripped.
func splitSections(text string) []string {
	lines := strings.Split(text, "\n")

	var sections []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		sec := strings.TrimRight(strings.Join(current, "\n"), "\n \t")
		if strings.TrimSpace(sec) != "" {
			sections = append(sections, sec)
		}
		current = nil
	}

	for _, line := range lines {
		if isHeaderLine(line) {
			flush()
		}
		current = append(current, line)
	}
	flush()

	if len(sections) == 0 {
		// Degenerate input: whole document as one parent. Whitespace-only
		// input still yields one parent so callers never see zero chunks.
		sections = []string{strings.TrimSpace(text)}
	}
	return sections
}

// isHeaderLine reports whether a line is a type-level or item-level header
// marker produced by the upstream normalization step.
func isHeaderLine(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, "#") {
		return false
	}
	// "# title" and "## item" split; deeper levels stay inside the section.
	rest := strings.TrimLeft(trimmed, "#")
	level := len(trimmed) - len(rest)
	if level > 2 {
		return false
	}
	return rest == "" || strings.HasPrefix(rest, " ")
}

// estimateTokens approximates token count from rune count.
func estimateTokens(s string) int {
	n := len([]rune(s)) / charsPerToken
	if n == 0 && s != "" {
		n = 1
	}
	return n
}
