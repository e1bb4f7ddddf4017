package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanattanasio/answer-retrieval/internal/scorer"
)

func vec(vals ...float64) scorer.FeatureVector {
	out := make(scorer.FeatureVector, len(vals))
	for i, v := range vals {
		out[i] = scorer.Feature{Name: "s" + string(rune('1'+i)), Value: v}
	}
	return out
}

func TestFormatScore(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{3.5, "3.5000"},
		{0.123456, "0.1235"},
		{1, "1.0000"},
		{0, "0.0"},
		{-0.2, "0.0"},
		{-7, "0.0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatScore(tt.in), "FormatScore(%v)", tt.in)
	}
}

func TestMergeDocumentVectors(t *testing.T) {
	docs := []scorer.Document{
		{"id": "1", "title": "a", "featureVector": "0.1 0.2", "upModVotes": 4.0},
		{"id": "2", "title": "b", "featureVector": "0.3 0.4", "upModVotes": 9.0},
	}
	vectors := []scorer.FeatureVector{vec(0.5, -0.2), vec(0, 1)}

	err := MergeDocumentVectors(docs, vectors, []string{"upModVotes"})
	require.NoError(t, err)

	assert.Equal(t, "0.1 0.2 0.5000 0.0", docs[0]["featureVector"])
	assert.Equal(t, "0.3 0.4 0.0 1.0000", docs[1]["featureVector"])
	assert.NotContains(t, docs[0], "upModVotes")
	assert.NotContains(t, docs[1], "upModVotes")
	assert.Equal(t, "a", docs[0]["title"])
}

func TestMergeDocumentVectorsWithoutBase(t *testing.T) {
	docs := []scorer.Document{{"id": "1"}}
	require.NoError(t, MergeDocumentVectors(docs, []scorer.FeatureVector{vec(2)}, nil))
	assert.Equal(t, "2.0000", docs[0]["featureVector"])
}

func TestMergeDocumentVectorsLengthMismatch(t *testing.T) {
	docs := []scorer.Document{{"id": "1"}, {"id": "2"}}
	err := MergeDocumentVectors(docs, []scorer.FeatureVector{vec(1)}, nil)
	var alignErr *AlignmentError
	require.ErrorAs(t, err, &alignErr)
}

func TestMergeTrainingBlob(t *testing.T) {
	blob := "a,b,label\n1,2,0\n"
	merged, err := MergeTrainingBlob(blob, []scorer.FeatureVector{vec(3.5)}, []string{"s1"}, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "s1", "label"}, merged.Header())
	require.Len(t, merged.Rows, 1)
	assert.Equal(t, []string{"1", "2", "3.5000"}, merged.Rows[0].Features)
	assert.Equal(t, "0", merged.Rows[0].Label)
	assert.Equal(t, "a,b,s1,label\n1,2,3.5000,0\n", merged.String())
}

func TestMergeTrainingBlobBlankLinesConsumeNoRow(t *testing.T) {
	blob := "a,label\n\n1,0\n\n\n2,1\n"
	vectors := []scorer.FeatureVector{vec(0.5, -1), vec(0.25, 2)}

	merged, err := MergeTrainingBlob(blob, vectors, []string{"x", "y"}, true)
	require.NoError(t, err)
	assert.Equal(t, "a,x,y,label\n1,0.5000,0.0,0\n2,0.2500,2.0000,1\n", merged.String())
}

func TestMergeTrainingBlobWithoutHeader(t *testing.T) {
	merged, err := MergeTrainingBlob("1,2,0\n3,4,1", []scorer.FeatureVector{vec(1), vec(0)}, []string{"s1"}, false)
	require.NoError(t, err)
	assert.False(t, merged.HasHeader)
	assert.Nil(t, merged.Header())
	assert.Equal(t, "1,2,1.0000,0\n3,4,0.0,1\n", merged.String())
}

func TestMergeTrainingBlobAlignmentErrors(t *testing.T) {
	tests := []struct {
		name    string
		blob    string
		vectors []scorer.FeatureVector
		headers []string
	}{
		{"leftover rows", "a,label\n1,0\n", []scorer.FeatureVector{vec(1), vec(2)}, []string{"s1"}},
		{"leftover lines", "a,label\n1,0\n2,1\n", []scorer.FeatureVector{vec(1)}, []string{"s1"}},
		{"empty header", "\n1,0\n", []scorer.FeatureVector{vec(1)}, []string{"s1"}},
		{"width mismatch", "a,label\n1,0\n", []scorer.FeatureVector{vec(1, 2)}, []string{"s1"}},
		{"empty blob with rows", "", []scorer.FeatureVector{vec(1)}, []string{"s1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MergeTrainingBlob(tt.blob, tt.vectors, tt.headers, true)
			var alignErr *AlignmentError
			require.ErrorAs(t, err, &alignErr)
		})
	}
}

func TestBlobCursorStepwise(t *testing.T) {
	c := NewBlobCursor("h,label\n\n1,0\n", []scorer.FeatureVector{vec(0.5)}, []string{"s1"}, true)

	require.NoError(t, c.Step()) // header
	assert.Equal(t, 1, c.Line())
	assert.Equal(t, 0, c.Row())

	require.NoError(t, c.Step()) // blank
	assert.Equal(t, 2, c.Line())
	assert.Equal(t, 0, c.Row())
	assert.Equal(t, 1, c.RemainingRows())

	require.NoError(t, c.Step()) // data
	assert.Equal(t, 3, c.Line())
	assert.Equal(t, 1, c.Row())
	assert.Equal(t, 0, c.RemainingRows())

	assert.False(t, c.Done())
	require.NoError(t, c.Step()) // trailing blank
	assert.True(t, c.Done())

	merged, err := c.Result()
	require.NoError(t, err)
	assert.Equal(t, "h,s1,label\n1,0.5000,0\n", merged.String())
}

func TestMergeTrainingBlobEmpty(t *testing.T) {
	merged, err := MergeTrainingBlob("", nil, []string{"s1"}, true)
	require.NoError(t, err)
	assert.Equal(t, "", merged.String())
}

func TestAugmentHeader(t *testing.T) {
	features, label, err := AugmentHeader("f0,f1,ground_truth\r", []string{"s1", "s2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"f0", "f1", "s1", "s2"}, features)
	assert.Equal(t, "ground_truth", label)

	_, _, err = AugmentHeader("  ", []string{"s1"})
	var alignErr *AlignmentError
	require.ErrorAs(t, err, &alignErr)
}

func TestFeatureRow(t *testing.T) {
	assert.Equal(t, []string{"0.1", "0.2", "1.5000", "0.0"}, FeatureRow(" 0.1  0.2 ", vec(1.5, -3)))
	assert.Equal(t, []string{"0.0"}, FeatureRow("", vec(0)))
}
