package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// processedDoc — формат файла processed_files.json.
// Старый формат (просто объект путь -> число) тоже читается.
type processedDoc struct {
	SavedAt time.Time        `json:"saved_at"`
	Files   map[string]int64 `json:"files"`
}

// FileStore хранит отпечатки в JSON-файле. Запись атомарная: временный файл
// в том же каталоге, затем переименование.
type FileStore struct {
	Path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) Load() (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bs, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(bs) == 0) {
		return make(map[string]int64), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}

	var doc processedDoc
	if err := json.Unmarshal(bs, &doc); err == nil && doc.Files != nil {
		return doc.Files, nil
	}
	legacy := make(map[string]int64)
	if err := json.Unmarshal(bs, &legacy); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.Path, err)
	}
	return legacy, nil
}

func (f *FileStore) Save(data map[string]int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data == nil {
		data = map[string]int64{}
	}
	bs, err := json.MarshalIndent(processedDoc{SavedAt: time.Now().UTC(), Files: data}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(bs); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	// На Windows Rename не перезаписывает существующий файл
	_ = os.Remove(f.Path)
	return os.Rename(tmp.Name(), f.Path)
}
