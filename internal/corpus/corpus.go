// Package corpus loads labeled review records and the movie catalog.
package corpus

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"cinematch/internal/fileingest"
	"cinematch/internal/models"
	"cinematch/internal/util"
)

const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
	FormatDir   = "dir"
)

// LoadOptions describes where the text and label live in a record.
type LoadOptions struct {
	Format     string
	TextField  string
	LabelField string
	// Limit caps the number of records read; 0 reads everything.
	Limit int
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.TextField == "" {
		o.TextField = "text"
	}
	if o.LabelField == "" {
		o.LabelField = "label"
	}
	return o
}

// DetectFormat guesses the format from the path: directories are aclImdb
// trees, .jsonl/.ndjson are JSON Lines, everything else is CSV.
func DetectFormat(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return FormatDir
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL
	default:
		return FormatCSV
	}
}

// Load reads a labeled corpus from path.
func Load(ctx context.Context, path string, opts LoadOptions) ([]models.Document, error) {
	opts = opts.withDefaults()
	if opts.Format == "" {
		opts.Format = DetectFormat(path)
	}

	var docs []models.Document
	var err error
	switch opts.Format {
	case FormatDir:
		docs, err = LoadDir(ctx, path, opts)
	case FormatCSV, FormatJSONL:
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open corpus: %w", openErr)
		}
		defer f.Close()
		if opts.Format == FormatCSV {
			docs, err = LoadCSV(f, opts)
		} else {
			docs, err = LoadJSONL(f, opts)
		}
	default:
		return nil, fmt.Errorf("%w: unknown corpus format %q", models.ErrConfiguration, opts.Format)
	}
	if err != nil {
		return nil, err
	}
	log.Infof("Loaded %d documents from %s (%s)", len(docs), path, opts.Format)
	return docs, nil
}

// LoadCSV reads a header-first CSV. Empty text rows are skipped with a warning.
func LoadCSV(r io.Reader, opts LoadOptions) ([]models.Document, error) {
	opts = opts.withDefaults()
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: corpus has no header", models.ErrEmptyInput)
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus header: %w", err)
	}
	textIdx, labelIdx := columnIndex(header, opts.TextField), columnIndex(header, opts.LabelField)
	if textIdx < 0 || labelIdx < 0 {
		return nil, fmt.Errorf("%w: corpus header must contain %q and %q", models.ErrConfiguration, opts.TextField, opts.LabelField)
	}

	var docs []models.Document
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read corpus line %d: %w", line, err)
		}
		if textIdx >= len(record) || labelIdx >= len(record) {
			return nil, fmt.Errorf("%w: corpus line %d has %d fields", models.ErrValidation, line, len(record))
		}
		doc, ok, err := buildDocument(len(docs), record[textIdx], record[labelIdx], fmt.Sprintf("line %d", line))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		docs = append(docs, doc)
		if opts.Limit > 0 && len(docs) >= opts.Limit {
			break
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: corpus contains no records", models.ErrEmptyInput)
	}
	return docs, nil
}

// LoadJSONL reads one JSON object per line. Labels may be numbers or strings.
func LoadJSONL(r io.Reader, opts LoadOptions) ([]models.Document, error) {
	opts = opts.withDefaults()
	dec := json.NewDecoder(r)

	var docs []models.Document
	for n := 1; ; n++ {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode corpus record %d: %w", n, err)
		}
		text, _ := rec[opts.TextField].(string)
		doc, ok, err := buildDocument(len(docs), text, fmt.Sprint(rec[opts.LabelField]), fmt.Sprintf("record %d", n))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		docs = append(docs, doc)
		if opts.Limit > 0 && len(docs) >= opts.Limit {
			break
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: corpus contains no records", models.ErrEmptyInput)
	}
	return docs, nil
}

// LoadDir reads an aclImdb-style pos/neg tree.
func LoadDir(ctx context.Context, root string, opts LoadOptions) ([]models.Document, error) {
	files, err := fileingest.DiscoverReviewFiles(ctx, root, false)
	if err != nil {
		return nil, fmt.Errorf("discover review files: %w", err)
	}

	var docs []models.Document
	for _, meta := range files {
		isBinary, err := util.IsLikelyBinary(meta.Path)
		if err != nil {
			return nil, fmt.Errorf("inspect %s: %w", meta.Path, err)
		}
		if isBinary {
			log.Warnf("WARN: skipping binary file %s", meta.Path)
			continue
		}
		raw, err := fileingest.ReadFileContent(meta.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", meta.Path, err)
		}
		text, err := util.CleanText(raw, meta.Path)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, models.Document{
			ID:      len(docs),
			Text:    text,
			Label:   meta.Label,
			Labeled: true,
		})
		if opts.Limit > 0 && len(docs) >= opts.Limit {
			break
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no labeled review files under %s", models.ErrEmptyInput, root)
	}
	return docs, nil
}

func buildDocument(id int, rawText, rawLabel, where string) (models.Document, bool, error) {
	text, err := util.CleanText([]byte(rawText), where)
	if err != nil {
		return models.Document{}, false, err
	}
	if strings.TrimSpace(text) == "" {
		log.Warnf("WARN: %s has empty text, skipping", where)
		return models.Document{}, false, nil
	}
	label, err := ParseLabel(rawLabel)
	if err != nil {
		return models.Document{}, false, fmt.Errorf("%s: %w", where, err)
	}
	return models.Document{ID: id, Text: text, Label: label, Labeled: true}, true, nil
}

// ParseLabel accepts 0/1 and the usual sentiment words.
func ParseLabel(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "pos", "positive":
		return models.LabelPositive, nil
	case "0", "neg", "negative":
		return models.LabelNegative, nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && (f == 0 || f == 1) {
		return int(f), nil
	}
	return 0, fmt.Errorf("%w: label %q is not 0|1", models.ErrValidation, s)
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// Split shuffles docs with a PCG source seeded by seed and holds out
// testRatio of them. Both halves are guaranteed non-empty.
func Split(docs []models.Document, testRatio float64, seed uint64) (train, test []models.Document, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("%w: test ratio %v must be in (0,1)", models.ErrConfiguration, testRatio)
	}
	if len(docs) < 2 {
		return nil, nil, fmt.Errorf("%w: need at least 2 documents to split, got %d", models.ErrEmptyInput, len(docs))
	}

	idx := make([]int, len(docs))
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	nTest := int(float64(len(docs))*testRatio + 0.5)
	if nTest < 1 {
		nTest = 1
	}
	if nTest > len(docs)-1 {
		nTest = len(docs) - 1
	}

	test = make([]models.Document, 0, nTest)
	train = make([]models.Document, 0, len(docs)-nTest)
	for i, k := range idx {
		if i < nTest {
			test = append(test, docs[k])
		} else {
			train = append(train, docs[k])
		}
	}
	return train, test, nil
}
