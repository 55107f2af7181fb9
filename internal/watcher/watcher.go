// Package watcher следит за каталогами с SQL-файлами и передаёт новые
// и изменившиеся файлы в pipeline.
package watcher

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hpcloud/tail"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"bigscope/internal/config"
	"bigscope/internal/pipeline"
	"bigscope/internal/storage"
)

// Processor обрабатывает файл целиком или фрагмент текста из follow-режима.
type Processor interface {
	ProcessFile(ctx context.Context, path string) (*pipeline.Report, error)
	ProcessText(ctx context.Context, name, sql string) (*pipeline.Report, error)
}

type Config struct {
	Config     *config.Config
	ConfigPath string // пустой — конфиг не перечитывается
	Logger     *zap.Logger
	Store      storage.ProcessedStore
	Processor  Processor
	Settle     time.Duration // пауза после последнего события до обработки файла
}

// Watcher хранит в processed отпечаток файла (storage.Fingerprint),
// а в follow-режиме — смещение конца последнего полного выражения.
type Watcher struct {
	cfg         Config
	store       storage.ProcessedStore
	proc        Processor
	pattern     *regexp.Regexp
	files       map[string]*tail.Tail
	processed   map[string]int64
	inflight    map[string]struct{}
	pending     map[string]*time.Timer
	mu          sync.RWMutex
	ctx         context.Context
	dirWatcher  *fsnotify.Watcher
	watchedDirs map[string]struct{} // Отслеживаемые директории
	wg          sync.WaitGroup
}

func New(cfg Config) (*Watcher, error) {
	pattern, err := compilePattern(cfg.Config.FilePattern)
	if err != nil {
		return nil, err
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 500 * time.Millisecond
	}

	processed, err := cfg.Store.Load()
	if err != nil {
		cfg.Logger.Error("Не удалось загрузить processed_files", zap.Error(err))
		processed = make(map[string]int64)
	}

	return &Watcher{
		cfg:         cfg,
		store:       cfg.Store,
		proc:        cfg.Processor,
		pattern:     pattern,
		files:       make(map[string]*tail.Tail),
		processed:   processed,
		inflight:    make(map[string]struct{}),
		pending:     make(map[string]*time.Timer),
		ctx:         context.Background(),
		watchedDirs: make(map[string]struct{}),
	}, nil
}

// addWatchers рекурсивно добавляет наблюдателей для директорий
func (w *Watcher) addWatchers(dir string, dw *fsnotify.Watcher) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			w.cfg.Logger.Debug("Ошибка при обходе директории", zap.String("path", path), zap.Error(err))
			return nil
		}
		if info.IsDir() {
			w.mu.Lock()
			if _, exists := w.watchedDirs[path]; !exists {
				if err := dw.Add(path); err != nil {
					w.cfg.Logger.Error("Ошибка добавления наблюдателя", zap.String("dir", path), zap.Error(err))
				} else {
					w.watchedDirs[path] = struct{}{}
					w.cfg.Logger.Debug("Добавлен наблюдатель для директории", zap.String("dir", path))
				}
			}
			w.mu.Unlock()
		}
		return nil
	})
}

// saveProcessed сохраняет снимок processed в хранилище
func (w *Watcher) saveProcessed() {
	w.mu.RLock()
	snapshot := maps.Clone(w.processed)
	w.mu.RUnlock()
	if err := w.store.Save(snapshot); err != nil {
		w.cfg.Logger.Error("Не удалось сохранить processed_files", zap.Error(err))
	}
}

// Start блокируется до отмены ctx
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx = ctx

	// Инициализируем fsnotify
	dw, err := fsnotify.NewWatcher()
	if err != nil {
		w.cfg.Logger.Error("Ошибка создания watcher для каталогов", zap.Error(err))
		return err
	}
	w.dirWatcher = dw
	defer dw.Close()

	for name, dir := range w.sourceDirs() {
		if err := w.addWatchers(dir, dw); err != nil {
			w.cfg.Logger.Debug("Ошибка при добавлении наблюдателей", zap.String("source", name), zap.String("dir", dir), zap.Error(err))
		}
	}

	// Запускаем начальное сканирование
	w.Scan()

	// Периодическое сканирование по расписанию
	sched := cron.New()
	if _, err := sched.AddFunc(w.cfg.Config.RescanSchedule, func() {
		w.cfg.Logger.Debug("Запуск периодического сканирования директорий")
		w.Scan()
	}); err != nil {
		return fmt.Errorf("rescan schedule %q: %w", w.cfg.Config.RescanSchedule, err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	// Запускаем обработку событий
	go w.handleDirEvents(dw)

	// Запускаем наблюдение за конфигом
	if w.cfg.ConfigPath != "" {
		go w.watchConfig()
	}

	// Периодическое сохранение processed
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.saveProcessed()
			}
		}
	}()

	<-ctx.Done()
	w.cfg.Logger.Info("Watcher остановлен по сигналу shutdown")
	w.stopAll()
	w.wg.Wait()
	w.saveProcessed()
	return nil
}

// sourceDirs возвращает копию SourceDirs текущего конфига
func (w *Watcher) sourceDirs() map[string]string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return maps.Clone(w.cfg.Config.SourceDirs)
}

// stopAll останавливает отложенные обработки и все tail
func (w *Watcher) stopAll() {
	w.mu.Lock()
	for path, timer := range w.pending {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	tails := maps.Clone(w.files)
	w.mu.Unlock()
	for path, t := range tails {
		t.Stop()
		w.cfg.Logger.Debug("tail остановлен", zap.String("file", path))
	}
}
