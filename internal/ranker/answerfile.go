package ranker

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// AnswerIDColumn is the first column of every answer file.
const AnswerIDColumn = "answer_id"

// AnswerFileName returns a unique answer file name for now.
func AnswerFileName(now time.Time) string {
	return fmt.Sprintf("answer_%d_%s.csv", now.UnixNano(), uuid.NewString())
}

// WriteAnswerFile writes an answer file into dir, creating dir if needed,
// and returns its path. The header is answer_id followed by featureHeader;
// every row is an answer id followed by its feature values.
func WriteAnswerFile(dir string, featureHeader []string, ids []string, features [][]string) (string, error) {
	if len(ids) != len(features) {
		return "", fmt.Errorf("answer file: %d ids but %d feature rows", len(ids), len(features))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating answer directory: %w", err)
	}

	path := filepath.Join(dir, AnswerFileName(time.Now()))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating answer file: %w", err)
	}

	w := csv.NewWriter(f)
	header := append([]string{AnswerIDColumn}, featureHeader...)
	if err := w.Write(header); err != nil {
		f.Close()
		return "", fmt.Errorf("writing answer file header: %w", err)
	}
	for i, id := range ids {
		if len(features[i]) != len(featureHeader) {
			f.Close()
			return "", fmt.Errorf("answer file row %d has %d values, header has %d", i, len(features[i]), len(featureHeader))
		}
		if err := w.Write(append([]string{id}, features[i]...)); err != nil {
			f.Close()
			return "", fmt.Errorf("writing answer file row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return "", fmt.Errorf("flushing answer file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing answer file: %w", err)
	}
	return path, nil
}
