package corpus

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"ibt_platform/train/storage"
	"ibt_platform/utils/logging"
)

// SkipNotice records a malformed or empty row that was skipped during
// loading. Skips are non-fatal, the notice is collected so that callers can
// report or assert on them.
type SkipNotice struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// LoadResult is a loaded corpus together with its provenance: the sha256
// fingerprint of the raw file(s) and any rows skipped along the way.
type LoadResult struct {
	Corpus  *Corpus
	Skipped []SkipNotice
	Sha256  string
}

type Loader struct {
	store storage.Storage
}

func NewLoader(store storage.Storage) *Loader {
	return &Loader{store: store}
}

func (l *Loader) readAll(path string) ([]byte, error) {
	file, err := l.store.Read(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("error reading file %v: %w", path, err)
	}
	return data, nil
}

func fingerprint(chunks ...[]byte) string {
	hash := sha256.New()
	for _, chunk := range chunks {
		hash.Write(chunk)
	}
	return hex.EncodeToString(hash.Sum(nil))
}

func skip(notices []SkipNotice, file string, line int, reason string) []SkipNotice {
	slog.Warn("skipping row", "file", file, "line", line, "reason", reason, "code", logging.DATA_SKIP)
	return append(notices, SkipNotice{File: file, Line: line, Reason: reason})
}

func validateCSVHeader(fileHeaders []string, expectedHeaders []string) error {
	if len(fileHeaders) != len(expectedHeaders) {
		return fmt.Errorf("invalid columns: expected %v, got %v", expectedHeaders, fileHeaders)
	}

	for _, key := range expectedHeaders {
		if !slices.Contains(fileHeaders, key) {
			return fmt.Errorf("invalid columns: expected %v, got %v", expectedHeaders, fileHeaders)
		}
	}
	return nil
}

// LoadParallelCSV loads a two column csv of (source, target) text pairs. When
// hasHeader is set the header row must name the two language fields, in
// either order. Rows with a missing or empty side are skipped with a notice.
func (l *Loader) LoadParallelCSV(path, sourceLang, targetLang string, hasHeader bool) (LoadResult, error) {
	data, err := l.readAll(path)
	if err != nil {
		return LoadResult{}, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	sourceCol, targetCol := 0, 1
	line := 0

	if hasHeader {
		header, err := reader.Read()
		if err != nil {
			return LoadResult{}, fmt.Errorf("error reading csv header from %v: %w", path, err)
		}
		line++

		if err := validateCSVHeader(header, []string{sourceLang, targetLang}); err != nil {
			return LoadResult{}, fmt.Errorf("invalid csv header in %v: %w", path, err)
		}
		sourceCol = slices.Index(header, sourceLang)
		targetCol = 1 - sourceCol
	}

	result := LoadResult{Corpus: NewCorpus(), Sha256: fingerprint(data)}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Skipped = skip(result.Skipped, path, line, fmt.Sprintf("malformed csv row: %v", err))
			continue
		}

		if len(record) != 2 {
			result.Skipped = skip(result.Skipped, path, line, fmt.Sprintf("expected 2 fields, got %d", len(record)))
			continue
		}

		row, err := NewParallelExample(record[sourceCol], record[targetCol])
		if err != nil {
			result.Skipped = skip(result.Skipped, path, line, err.Error())
			continue
		}
		result.Corpus.Append(row)
	}

	slog.Info("loaded parallel csv", "path", path, "rows", result.Corpus.Len(), "skipped", len(result.Skipped), "code", logging.DATA_LOAD)

	return result, nil
}

// LoadParallelLines loads two aligned line-delimited files read in lockstep.
// Pairs with a blank line on either side are skipped, as are tail lines left
// over in the longer file.
func (l *Loader) LoadParallelLines(sourcePath, targetPath string) (LoadResult, error) {
	sourceData, err := l.readAll(sourcePath)
	if err != nil {
		return LoadResult{}, err
	}
	targetData, err := l.readAll(targetPath)
	if err != nil {
		return LoadResult{}, err
	}

	sourceLines := splitLines(sourceData)
	targetLines := splitLines(targetData)

	result := LoadResult{Corpus: NewCorpus(), Sha256: fingerprint(sourceData, targetData)}

	for i := 0; i < len(sourceLines) || i < len(targetLines); i++ {
		line := i + 1
		if i >= len(sourceLines) {
			result.Skipped = skip(result.Skipped, targetPath, line, "no aligned source line")
			continue
		}
		if i >= len(targetLines) {
			result.Skipped = skip(result.Skipped, sourcePath, line, "no aligned target line")
			continue
		}

		row, err := NewParallelExample(sourceLines[i], targetLines[i])
		if err != nil {
			result.Skipped = skip(result.Skipped, sourcePath, line, err.Error())
			continue
		}
		result.Corpus.Append(row)
	}

	slog.Info("loaded aligned parallel files", "source", sourcePath, "target", targetPath, "rows", result.Corpus.Len(), "skipped", len(result.Skipped), "code", logging.DATA_LOAD)

	return result, nil
}

type MonoSide int

const (
	SourceSide MonoSide = iota
	TargetSide
)

// LoadMono loads a monolingual line-delimited file, skipping blank lines with
// a notice. maxRows caps the yielded rows for reproducible sub-sampling,
// maxRows <= 0 means uncapped.
func (l *Loader) LoadMono(path string, side MonoSide, maxRows int) (LoadResult, error) {
	data, err := l.readAll(path)
	if err != nil {
		return LoadResult{}, err
	}

	result := LoadResult{Corpus: NewCorpus(), Sha256: fingerprint(data)}

	for i, text := range splitLines(data) {
		if maxRows > 0 && result.Corpus.Len() >= maxRows {
			break
		}

		var row Example
		var rowErr error
		if side == SourceSide {
			row, rowErr = NewMonoSourceExample(text)
		} else {
			row, rowErr = NewMonoTargetExample(text)
		}
		if rowErr != nil {
			result.Skipped = skip(result.Skipped, path, i+1, "blank line")
			continue
		}
		result.Corpus.Append(row)
	}

	slog.Info("loaded monolingual file", "path", path, "rows", result.Corpus.Len(), "skipped", len(result.Skipped), "code", logging.DATA_LOAD)

	return result, nil
}

func splitLines(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}
