package corpus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"kbrag/internal/domain"
)

// errNoText marks a file that decoded but held only whitespace.
var errNoText = errors.New("no text content")

// Loader scans a folder tree for documents with one of the configured extensions.
type Loader struct {
	exts map[string]bool
	log  *slog.Logger
}

func NewLoader(extensions []string, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Loader{exts: exts, log: log}
}

// Load returns every readable, non-empty document under folder in path order,
// plus the number of matching files that were skipped. Unreadable files are
// logged and skipped; only a folder that cannot be walked is an error.
func (l *Loader) Load(ctx context.Context, folder string) ([]domain.Document, int, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, 0, fmt.Errorf("corpus folder: %w", err)
	}
	if !info.IsDir() {
		return nil, 0, fmt.Errorf("corpus folder %s: not a directory", folder)
	}

	var paths []string
	err = filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			l.log.Warn("skipping unreadable path", "source", path, "err", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if l.exts[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Strings(paths)

	docs := make([]domain.Document, 0, len(paths))
	skipped := 0
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		text, err := readDocument(p)
		if err != nil {
			l.log.Warn("skipping document", "source", p, "err", err)
			skipped++
			continue
		}
		docs = append(docs, domain.Document{Path: p, Content: text})
	}
	return docs, skipped, nil
}

func readDocument(path string) (string, error) {
	var (
		text string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err = readPDF(path)
	} else {
		text, err = readText(path)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errNoText
	}
	return text, nil
}

func readText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.New("not valid UTF-8 text")
	}
	return string(b), nil
}

func readPDF(path string) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := rdr.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", err
	}
	return buf.String(), nil
}
