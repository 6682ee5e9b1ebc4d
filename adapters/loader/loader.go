package loader

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"summcorr/domain/scores"
	"summcorr/internal/errors"
)

// DocumentsKey wraps the document map in score files
const DocumentsKey = "documents"

// ScoreReader loads a ScoreStore from a JSON file, gzip-compressed when the
// name ends in .gz
type ScoreReader struct {
	filePath   string
	compressed bool
	logger     zerolog.Logger
}

// NewScoreReader creates a reader for filePath
func NewScoreReader(filePath string, logger *zerolog.Logger) *ScoreReader {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &ScoreReader{
		filePath:   filePath,
		compressed: strings.EqualFold(filepath.Ext(filePath), ".gz"),
		logger:     l,
	}
}

// Read opens and decodes the file
func (r *ScoreReader) Read() (*scores.ScoreStore, error) {
	start := time.Now()
	f, err := os.Open(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.CodeInvalidInput, "score file not found: %s", r.filePath)
		}
		return nil, errors.Wrap(err, "failed to open score file")
	}
	defer f.Close()

	var src io.Reader = f
	if r.compressed {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to open gzip stream")
		}
		defer gz.Close()
		src = gz
	}

	store, err := Decode(src)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", r.filePath)
	}

	r.logger.Info().
		Str("file", r.filePath).
		Int("documents", store.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("score file loaded")
	return store, nil
}

// Decode reads a score document from src. The document map may be wrapped
// as {"documents": {...}} or given bare. A lone "documents" member whose
// value carries system_summaries is a bare document with that id.
func Decode(src io.Reader) (*scores.ScoreStore, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read score data")
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.InvalidInput("score data is empty")
	}

	body := data
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "score data is not a JSON object")
	}
	if docs, ok := wrapper[DocumentsKey]; ok && len(wrapper) == 1 && !isDocumentRecord(docs) {
		body = docs
	}

	store := scores.NewScoreStore()
	if err := json.Unmarshal(body, store); err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "malformed score data")
	}
	return store, nil
}

func isDocumentRecord(value json.RawMessage) bool {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(value, &members); err != nil {
		return false
	}
	_, ok := members["system_summaries"]
	return ok
}

// Encode writes store wrapped under DocumentsKey, keeping order
func Encode(w io.Writer, store *scores.ScoreStore) error {
	docs, err := json.Marshal(store)
	if err != nil {
		return errors.Wrap(err, "failed to encode score store")
	}
	if _, err := io.WriteString(w, `{"`+DocumentsKey+`":`); err != nil {
		return err
	}
	if _, err := w.Write(docs); err != nil {
		return err
	}
	_, err = io.WriteString(w, "}")
	return err
}
