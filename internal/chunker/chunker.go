// Package chunker splits file contents into line-bounded regions sized for
// embedding, preferring language-aware boundaries over a strict line
// window. This implements C2 of the indexing engine (spec §4.2).
package chunker

import (
	"regexp"
	"strings"
)

// Chunk is one contiguous, 1-based inclusive line range of a file.
type Chunk struct {
	Content   string
	LineStart int
	LineEnd   int
}

// Config holds the chunker's size thresholds.
type Config struct {
	// MaxChunkLines is the maximum number of lines per chunk.
	MaxChunkLines int

	// OverlapLines is the number of lines two adjacent window chunks share.
	OverlapLines int

	// MinChunkLines is the minimum number of lines a boundary-driven chunk
	// must have to be kept.
	MinChunkLines int
}

// DefaultConfig returns the spec's default thresholds.
func DefaultConfig() Config {
	return Config{
		MaxChunkLines: 150,
		OverlapLines:  5,
		MinChunkLines: 5,
	}
}

// Chunker splits file content into chunks.
type Chunker struct {
	cfg Config
}

// New creates a Chunker with the given configuration. Zero-valued fields
// fall back to DefaultConfig's values.
func New(cfg Config) *Chunker {
	d := DefaultConfig()
	if cfg.MaxChunkLines <= 0 {
		cfg.MaxChunkLines = d.MaxChunkLines
	}
	if cfg.OverlapLines <= 0 {
		cfg.OverlapLines = d.OverlapLines
	}
	if cfg.MinChunkLines <= 0 {
		cfg.MinChunkLines = d.MinChunkLines
	}
	return &Chunker{cfg: cfg}
}

// Chunk splits content into chunks per spec §4.2. filename is used only to
// pick the boundary-regex family; it need not exist on disk.
func (c *Chunker) Chunk(content, filename string) []Chunk {
	lines := strings.Split(content, "\n")
	total := len(lines)

	if total <= c.cfg.MaxChunkLines {
		return []Chunk{{
			Content:   content,
			LineStart: 1,
			LineEnd:   total,
		}}
	}

	patterns := boundaryFamily(filename)
	var chunks []Chunk
	if len(patterns) > 0 {
		chunks = c.boundaryChunks(lines, patterns)
	}

	if len(chunks) == 0 {
		chunks = c.windowChunks(lines, 0)
	}

	return chunks
}

// boundaryChunks implements spec §4.2 step 3: form a slice for every
// consecutive pair of detected boundaries, keep it verbatim if it is
// within [min, max] lines, subdivide it with the window algorithm if it is
// too long, and drop it if it is too short.
func (c *Chunker) boundaryChunks(lines []string, patterns []*regexp.Regexp) []Chunk {
	boundaries := detectBoundaries(lines, patterns)
	total := len(lines)

	var chunks []Chunk
	for i, start := range boundaries {
		var end int
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		} else {
			end = total
		}

		sliceLen := end - start
		if sliceLen <= 0 {
			continue
		}

		if sliceLen > c.cfg.MaxChunkLines {
			sub := c.windowChunks(lines[start:end], start)
			chunks = append(chunks, sub...)
		} else if sliceLen >= c.cfg.MinChunkLines {
			chunks = append(chunks, Chunk{
				Content:   strings.Join(lines[start:end], "\n"),
				LineStart: start + 1,
				LineEnd:   end,
			})
		}
		// sliceLen < MinChunkLines: dropped.
	}

	return chunks
}

// windowChunks implements spec §4.2 step 4: a sliding window of
// MaxChunkLines with stride MaxChunkLines-OverlapLines over lines, whose
// 1-based absolute line numbers are offset by baseOffset (the 0-indexed
// line of the original file that lines[0] corresponds to).
func (c *Chunker) windowChunks(lines []string, baseOffset int) []Chunk {
	total := len(lines)
	if total == 0 {
		return nil
	}

	step := c.cfg.MaxChunkLines - c.cfg.OverlapLines
	if step <= 0 {
		step = c.cfg.MaxChunkLines
	}

	var chunks []Chunk
	for start := 0; start < total; start += step {
		end := start + c.cfg.MaxChunkLines
		if end > total {
			end = total
		}
		isLast := end == total

		if end-start < c.cfg.MinChunkLines {
			// Tail window shorter than the minimum: drop it, unless
			// dropping it would leave the file with zero chunks.
			if len(chunks) == 0 {
				chunks = append(chunks, Chunk{
					Content:   strings.Join(lines[start:end], "\n"),
					LineStart: baseOffset + start + 1,
					LineEnd:   baseOffset + end,
				})
			}
			break
		}

		chunks = append(chunks, Chunk{
			Content:   strings.Join(lines[start:end], "\n"),
			LineStart: baseOffset + start + 1,
			LineEnd:   baseOffset + end,
		})

		if isLast {
			break
		}
	}

	return chunks
}
