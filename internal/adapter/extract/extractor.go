// Package extract turns uploaded files into plain text segments.
package extract

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
)

var errUnsupported = errors.New("unsupported file type")

// Extractor reads .txt, .md, .json, .csv and .pdf files. It never returns an
// error: unreadable or unsupported files yield no segments and a log line.
type Extractor struct {
	log *logger.Logger
}

// New creates an extractor.
func New(log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{log: log}
}

// Supported reports whether path has an extension the extractor handles.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".json", ".csv", ".pdf":
		return true
	}
	return false
}

// Extract returns the text segments of the file at path. PDFs produce one
// segment per page; every other type produces a single segment.
func (e *Extractor) Extract(path string) []domain.TextSegment {
	segments, err := e.extract(path)
	if err != nil {
		e.log.Warn("text extraction failed", "path", path, "error", err)
		return nil
	}
	out := segments[:0]
	for _, s := range segments {
		if strings.TrimSpace(s.Text) != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (e *Extractor) extract(path string) (segments []domain.TextSegment, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			segments, err = nil, fmt.Errorf("extractor panic: %v", r)
		}
	}()

	ext := strings.ToLower(filepath.Ext(path))
	base := map[string]string{
		"file_name": filepath.Base(path),
		"file_type": strings.TrimPrefix(ext, "."),
	}

	switch ext {
	case ".pdf":
		return extractPDF(path, base)
	case ".txt", ".md", ".json", ".csv":
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupported, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var text string
	switch ext {
	case ".json":
		text, err = jsonText(data)
	case ".csv":
		text, err = csvText(data)
	default:
		text = string(data)
	}
	if err != nil {
		return nil, err
	}
	return []domain.TextSegment{{Text: text, SourceID: path, Metadata: base}}, nil
}

// jsonText re-indents a JSON document so chunks split on readable lines.
func jsonText(data []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return "", fmt.Errorf("invalid json: %w", err)
	}
	return buf.String(), nil
}

// csvText renders each record as its fields joined by " | ".
func csvText(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	var lines []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("invalid csv: %w", err)
		}
		lines = append(lines, strings.Join(rec, " | "))
	}
	return strings.Join(lines, "\n"), nil
}

func extractPDF(path string, base map[string]string) ([]domain.TextSegment, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pdf open: %w", err)
	}
	defer f.Close()

	var out []domain.TextSegment
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("pdf page %d: %w", i, err)
		}
		md := make(map[string]string, len(base)+1)
		for k, v := range base {
			md[k] = v
		}
		md["page"] = strconv.Itoa(i)
		out = append(out, domain.TextSegment{
			Text:     collapseWhitespace(text),
			SourceID: fmt.Sprintf("%s#page=%d", path, i),
			Metadata: md,
		})
	}
	return out, nil
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
