package merge

import (
	"strings"

	"github.com/germanattanasio/answer-retrieval/internal/scorer"
)

// Row is one data line of a training blob.
type Row struct {
	Features []string
	Label    string
}

// MergedBlob is a training blob after new feature columns were interleaved
// before the label column.
type MergedBlob struct {
	// HasHeader is set when the blob carried a header line.
	HasHeader     bool
	FeatureHeader []string
	LabelHeader   string
	Rows          []Row
}

// Header returns the full header line columns, label last.
func (b *MergedBlob) Header() []string {
	if !b.HasHeader {
		return nil
	}
	out := make([]string, 0, len(b.FeatureHeader)+1)
	out = append(out, b.FeatureHeader...)
	return append(out, b.LabelHeader)
}

// String renders the blob as comma separated lines, each terminated by \n.
func (b *MergedBlob) String() string {
	var sb strings.Builder
	if b.HasHeader {
		sb.WriteString(strings.Join(b.Header(), ","))
		sb.WriteByte('\n')
	}
	for _, r := range b.Rows {
		for _, f := range r.Features {
			sb.WriteString(f)
			sb.WriteByte(',')
		}
		sb.WriteString(r.Label)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// BlobCursor merges score rows into a training blob one line at a time. It
// keeps two cursors: one over blob lines and one over score rows. Blank lines
// and the header line advance only the line cursor.
type BlobCursor struct {
	lines          []string
	vectors        []scorer.FeatureVector
	headers        []string
	generateHeader bool

	line int
	row  int
	out  MergedBlob
	err  error
}

// NewBlobCursor prepares a merge of vectors into blob. headers are the names
// of the new columns; when generateHeader is set the first line of blob is
// the header line.
func NewBlobCursor(blob string, vectors []scorer.FeatureVector, headers []string, generateHeader bool) *BlobCursor {
	var lines []string
	if blob != "" {
		lines = strings.Split(blob, "\n")
	}
	return &BlobCursor{
		lines:          lines,
		vectors:        vectors,
		headers:        headers,
		generateHeader: generateHeader,
	}
}

// Done reports whether every blob line has been consumed or a step failed.
func (c *BlobCursor) Done() bool {
	return c.err != nil || c.line >= len(c.lines)
}

// Line returns the index of the next blob line.
func (c *BlobCursor) Line() int { return c.line }

// Row returns the index of the next score row.
func (c *BlobCursor) Row() int { return c.row }

// RemainingRows returns the number of score rows not yet consumed.
func (c *BlobCursor) RemainingRows() int { return len(c.vectors) - c.row }

// Step consumes one blob line.
func (c *BlobCursor) Step() error {
	if c.err != nil {
		return c.err
	}
	if c.line >= len(c.lines) {
		return nil
	}

	raw := strings.TrimRight(c.lines[c.line], "\r")

	if c.generateHeader && c.line == 0 {
		if strings.TrimSpace(raw) == "" {
			c.err = alignErrorf("header line is empty")
			return c.err
		}
		base, label := splitLine(raw)
		c.out.HasHeader = true
		c.out.FeatureHeader = append(base, c.headers...)
		c.out.LabelHeader = label
		c.line++
		return nil
	}

	if strings.TrimSpace(raw) == "" {
		c.line++
		return nil
	}

	if c.row >= len(c.vectors) {
		c.err = alignErrorf("blob line %d has no score row (only %d score rows)", c.line, len(c.vectors))
		return c.err
	}
	vec := c.vectors[c.row]
	if c.headers != nil && len(vec) != len(c.headers) {
		c.err = alignErrorf("score row %d has %d values, expected %d", c.row, len(vec), len(c.headers))
		return c.err
	}

	base, label := splitLine(raw)
	c.out.Rows = append(c.out.Rows, Row{
		Features: append(base, FormatScores(vec)...),
		Label:    label,
	})
	c.line++
	c.row++
	return nil
}

// Result runs the cursor to completion and returns the merged blob. Score
// rows left over once every line is consumed are an AlignmentError.
func (c *BlobCursor) Result() (*MergedBlob, error) {
	for !c.Done() {
		if err := c.Step(); err != nil {
			return nil, err
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	if n := c.RemainingRows(); n > 0 {
		return nil, alignErrorf("%d score rows left after %d blob lines", n, len(c.lines))
	}
	out := c.out
	return &out, nil
}

// MergeTrainingBlob interleaves vectors into blob, one score row per
// non-blank data line, and appends headers to the header line when
// generateHeader is set.
func MergeTrainingBlob(blob string, vectors []scorer.FeatureVector, headers []string, generateHeader bool) (*MergedBlob, error) {
	return NewBlobCursor(blob, vectors, headers, generateHeader).Result()
}

// splitLine splits a comma separated line into its base columns and its last
// (label) column.
func splitLine(line string) ([]string, string) {
	parts := strings.Split(line, ",")
	last := len(parts) - 1
	base := make([]string, last, last+8)
	copy(base, parts[:last])
	return base, parts[last]
}
