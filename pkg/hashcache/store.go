package hashcache

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// FileStore keeps the cache as a single JSON document. Saves go to a
// temporary file in the same directory which is then renamed into place,
// so a crash never leaves a half-written cache behind.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load() (Data, error) {
	f, err := os.Open(s.Path)
	if os.IsNotExist(err) {
		return Data{}, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "open %q", s.Path)
	}
	defer f.Close()

	data := Data{}
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, errors.Wrapf(err, "decode %q", s.Path)
	}

	return data, nil
}

func (s *FileStore) Save(data Data) (err error) {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create cache directory %q", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temporary cache file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = json.NewEncoder(tmp).Encode(data); err != nil {
		return errors.Wrap(err, "encode hash cache")
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "sync hash cache")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "close hash cache")
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(err, "chmod hash cache")
	}
	if err = os.Rename(tmp.Name(), s.Path); err != nil {
		return errors.Wrapf(err, "replace %q", s.Path)
	}

	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.Mutex
	data  Data
	saves int
}

func NewMemoryStore(initial Data) *MemoryStore {
	return &MemoryStore{data: cloneData(initial)}
}

func (s *MemoryStore) Load() (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneData(s.data), nil
}

func (s *MemoryStore) Save(data Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = cloneData(data)
	s.saves++
	return nil
}

func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) Data() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneData(s.data)
}

func cloneData(in Data) Data {
	out := make(Data, len(in))
	for algo, entries := range in {
		out[algo] = maps.Clone(entries)
	}
	return out
}
