package ingest

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// DefaultChunkSize is the default maximum number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters carried from one
// chunk into the next.
const DefaultChunkOverlap = 200

// blockSeparator joins consecutive blocks inside one chunk.
const blockSeparator = "\n\n"

var (
	markdownOnce sync.Once
	markdownInst goldmark.Markdown
)

func markdownParser() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInst = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownInst
}

// Chunker splits markdown into chunks that break on block boundaries.
type Chunker struct {
	chunkSize int
	overlap   int
}

// ChunkOption configures a Chunker.
type ChunkOption func(*Chunker)

// WithChunkSize sets the maximum chunk size in characters.
func WithChunkSize(size int) ChunkOption {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(overlap int) ChunkOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// NewChunker creates a Chunker. An overlap not smaller than the chunk size
// is reduced to a quarter of it.
func NewChunker(opts ...ChunkOption) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// ChunkSize returns the effective chunk size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the effective overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the chunks of a markdown document. Every chunk holds at most
// ChunkSize characters. Whitespace-only input yields no chunks.
//
// Top-level blocks (headings, paragraphs, lists, code fences) are packed
// greedily. When a chunk is closed, its trailing blocks that fit within
// Overlap are repeated at the start of the next one. A single block larger
// than ChunkSize is cut with a fixed sliding window.
func (c *Chunker) Split(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var (
		chunks  []string
		current []string
		size    int
		fresh   bool
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, blockSeparator))
		current, size, fresh = c.carry(current), 0, false
		for i, b := range current {
			if i > 0 {
				size += len(blockSeparator)
			}
			size += utf8.RuneCountInString(b)
		}
	}

	for _, block := range segment(content) {
		n := utf8.RuneCountInString(block)
		if n > c.chunkSize {
			flush()
			chunks = append(chunks, c.window(block)...)
			current, size, fresh = nil, 0, false
			continue
		}

		added := n
		if len(current) > 0 {
			added += len(blockSeparator)
		}
		if size+added > c.chunkSize {
			flush()
			// The carried overlap may still leave no room for this block.
			for len(current) > 0 && size+len(blockSeparator)+n > c.chunkSize {
				size -= utf8.RuneCountInString(current[0])
				current = current[1:]
				if len(current) > 0 {
					size -= len(blockSeparator)
				}
			}
			added = n
			if len(current) > 0 {
				added += len(blockSeparator)
			}
		}
		current = append(current, block)
		size += added
		fresh = true
	}

	// A tail made only of carried overlap would repeat the previous chunk.
	if fresh {
		chunks = append(chunks, strings.Join(current, blockSeparator))
	}
	return chunks
}

// carry returns the trailing blocks of a closed chunk that fit in the overlap.
func (c *Chunker) carry(blocks []string) []string {
	if c.overlap == 0 {
		return nil
	}
	total := 0
	i := len(blocks)
	for i > 0 {
		n := utf8.RuneCountInString(blocks[i-1])
		if i < len(blocks) {
			n += len(blockSeparator)
		}
		if total+n > c.overlap {
			break
		}
		total += n
		i--
	}
	if i == len(blocks) {
		return nil
	}
	return append([]string(nil), blocks[i:]...)
}

// window cuts s into runs of ChunkSize runes advancing by ChunkSize-Overlap.
func (c *Chunker) window(s string) []string {
	runes := []rune(s)
	step := c.chunkSize - c.overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+c.chunkSize, len(runes))
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// segment returns the trimmed source text of each top-level markdown block.
// A block spans from the start of its first line up to the next block.
func segment(content string) []string {
	source := []byte(content)
	doc := markdownParser().Parser().Parse(text.NewReader(source))

	starts := []int{0}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		pos, ok := firstLineStart(n)
		if !ok {
			continue
		}
		pos = lineStart(source, pos)
		if n.Kind() == ast.KindFencedCodeBlock && pos > 0 {
			// Lines of a fenced block exclude the opening fence.
			pos = lineStart(source, pos-1)
		}
		if pos > starts[len(starts)-1] {
			starts = append(starts, pos)
		}
	}
	starts = append(starts, len(source))

	var blocks []string
	for i := 0; i+1 < len(starts); i++ {
		if b := strings.TrimSpace(string(source[starts[i]:starts[i+1]])); b != "" {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// firstLineStart returns the offset of the first source line owned by n or
// any of its descendant blocks.
func firstLineStart(n ast.Node) (int, bool) {
	pos, found := 0, false
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || node.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		if lines := node.Lines(); lines != nil && lines.Len() > 0 {
			pos, found = lines.At(0).Start, true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return pos, found
}

func lineStart(source []byte, pos int) int {
	for pos > 0 && source[pos-1] != '\n' {
		pos--
	}
	return pos
}
