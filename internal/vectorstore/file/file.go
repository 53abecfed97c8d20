package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"kbrag/internal/domain"
	"kbrag/internal/vectorstore"
)

// Store keeps the index blob and a JSON-lines passage file side by side.
// Each publish writes both to temporary files and renames them into place.
type Store struct {
	mu           sync.RWMutex
	indexPath    string
	passagesPath string
}

func NewStore(indexPath, passagesPath string) *Store {
	return &Store{indexPath: indexPath, passagesPath: passagesPath}
}

func (s *Store) Publish(ctx context.Context, idx *vectorstore.Index, passages []domain.Passage) error {
	if err := vectorstore.Validate(idx, passages); err != nil {
		return err
	}
	blob, err := idx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idxTmp := s.indexPath + ".tmp"
	if err := writeFile(idxTmp, func(w *bufio.Writer) error {
		_, err := w.Write(blob)
		return err
	}); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	pasTmp := s.passagesPath + ".tmp"
	if err := writeFile(pasTmp, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, p := range passages {
			if err := enc.Encode(p); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		os.Remove(idxTmp)
		return fmt.Errorf("write passages: %w", err)
	}

	if err := os.Rename(pasTmp, s.passagesPath); err != nil {
		os.Remove(idxTmp)
		os.Remove(pasTmp)
		return fmt.Errorf("publish passages: %w", err)
	}
	if err := os.Rename(idxTmp, s.indexPath); err != nil {
		os.Remove(idxTmp)
		return fmt.Errorf("publish index: %w", err)
	}
	return nil
}

// Load reads both artifacts. A reader racing another process's publish can
// observe one new and one old file, so a mismatch is retried once.
func (s *Store) Load(ctx context.Context) (*vectorstore.Index, []domain.Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, passages, err := s.load(ctx)
	if errors.Is(err, domain.ErrStoreCorrupt) {
		idx, passages, err = s.load(ctx)
	}
	return idx, passages, err
}

func (s *Store) load(ctx context.Context) (*vectorstore.Index, []domain.Passage, error) {
	blob, err := os.ReadFile(s.indexPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, domain.ErrStoreNotFound
		}
		return nil, nil, fmt.Errorf("read index: %w", err)
	}
	idx := &vectorstore.Index{}
	if err := idx.UnmarshalBinary(blob); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrStoreCorrupt, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	passages, err := readPassages(s.passagesPath)
	if err != nil {
		return nil, nil, err
	}
	if err := vectorstore.Validate(idx, passages); err != nil {
		return nil, nil, err
	}
	return idx, passages, nil
}

func readPassages(path string) ([]domain.Passage, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrStoreNotFound
		}
		return nil, fmt.Errorf("read passages: %w", err)
	}
	defer f.Close()

	var passages []domain.Passage
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var p domain.Passage
		if err := json.Unmarshal(b, &p); err != nil {
			return nil, fmt.Errorf("%w: passages line %d: %v", domain.ErrStoreCorrupt, line, err)
		}
		passages = append(passages, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read passages: %w", err)
	}
	return passages, nil
}

func writeFile(path string, fill func(w *bufio.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
