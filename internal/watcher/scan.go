package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"bigscope/internal/config"
	"bigscope/internal/storage"
)

// compilePattern превращает маску вида *.sql в регулярное выражение по имени файла
func compilePattern(glob string) (*regexp.Regexp, error) {
	if glob == "" {
		return nil, errors.New("FilePattern is empty")
	}
	patternStr := regexp.QuoteMeta(glob)
	patternStr = strings.ReplaceAll(patternStr, `\*`, ".*")
	patternStr = strings.ReplaceAll(patternStr, `\?`, ".")
	pattern, err := regexp.Compile("(?i)^" + patternStr + "$")
	if err != nil {
		return nil, fmt.Errorf("FilePattern %q: %w", glob, err)
	}
	return pattern, nil
}

func (w *Watcher) follow() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg.Config.Follow
}

func (w *Watcher) matches(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pattern.MatchString(filepath.Base(path))
}

// watchConfig следит за изменениями config.yaml.
// Применяются FilePattern и новые каталоги из SourceDirs.
func (w *Watcher) watchConfig() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.cfg.Logger.Error("Не удалось создать watcher для конфига", zap.Error(err))
		return
	}
	defer watcher.Close()
	if err := watcher.Add(w.cfg.ConfigPath); err != nil {
		w.cfg.Logger.Error("Не удалось отслеживать конфиг", zap.String("path", w.cfg.ConfigPath), zap.Error(err))
		return
	}
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.cfg.Logger.Info("Конфиг изменился, перечитываем", zap.String("path", w.cfg.ConfigPath))
				if err := w.reloadConfig(); err != nil {
					w.cfg.Logger.Error("Ошибка загрузки config.yaml", zap.Error(err))
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.cfg.Logger.Error("Ошибка watcher-а конфига", zap.Error(err))
		}
	}
}

func (w *Watcher) reloadConfig() error {
	newCfg, err := config.LoadConfig(w.cfg.ConfigPath)
	if err != nil {
		return err
	}
	if err := newCfg.ValidateService(); err != nil {
		return err
	}
	pattern, err := compilePattern(newCfg.FilePattern)
	if err != nil {
		return err
	}
	w.mu.Lock()
	cfg := *w.cfg.Config
	cfg.FilePattern = newCfg.FilePattern
	cfg.SourceDirs = newCfg.SourceDirs
	w.cfg.Config = &cfg
	w.pattern = pattern
	w.mu.Unlock()

	if w.dirWatcher != nil {
		for _, dir := range newCfg.SourceDirs {
			if err := w.addWatchers(dir, w.dirWatcher); err != nil {
				w.cfg.Logger.Debug("Ошибка при добавлении наблюдателей", zap.String("dir", dir), zap.Error(err))
			}
		}
	}
	w.Scan()
	return nil
}

// handleDirEvents обрабатывает fsnotify события в папках
func (w *Watcher) handleDirEvents(dw *fsnotify.Watcher) {
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-dw.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				info, err := os.Stat(ev.Name)
				if err == nil && info.IsDir() {
					if err := w.addWatchers(ev.Name, dw); err != nil {
						w.cfg.Logger.Debug("Ошибка при добавлении наблюдателей", zap.String("dir", ev.Name), zap.Error(err))
					}
					w.cfg.Logger.Info("Добавлен watcher для директории", zap.String("dir", ev.Name))
					w.scanDir(ev.Name)
					continue
				}
			}
			if !w.matches(ev.Name) {
				continue
			}
			switch {
			case ev.Op&fsnotify.Remove != 0:
				w.forget(ev.Name)
			case ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0:
				w.schedule(ev.Name)
			}
		case err, ok := <-dw.Errors:
			if !ok {
				return
			}
			w.cfg.Logger.Error("Ошибка watcher для каталогов", zap.Error(err))
		}
	}
}

// Scan обходит все SourceDirs и передаёт подходящие файлы в обработку
func (w *Watcher) Scan() {
	for _, dir := range w.sourceDirs() {
		w.scanDir(dir)
	}
}

// scanDir обрабатывает файлы каталога от старых к новым
func (w *Watcher) scanDir(dir string) {
	type fileWithTime struct {
		Path string
		Mod  time.Time
	}
	var sorted []fileWithTime
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if w.matches(path) {
			sorted = append(sorted, fileWithTime{Path: path, Mod: info.ModTime()})
		}
		return nil
	})
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Mod.Before(sorted[j].Mod)
	})
	follow := w.follow()
	for _, f := range sorted {
		if follow {
			w.startTail(f.Path)
		} else {
			w.handleFile(f.Path)
		}
	}
}

// schedule откладывает обработку до паузы в событиях по файлу
func (w *Watcher) schedule(path string) {
	if w.follow() {
		w.startTail(path)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		if timer.Stop() {
			timer.Reset(w.cfg.Settle)
			return
		}
	}
	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.cfg.Settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == timer {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.handleFile(path)
	})
	w.pending[path] = timer
}

// handleFile обрабатывает файл, если его отпечаток изменился с прошлого раза
func (w *Watcher) handleFile(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	fp := storage.Fingerprint(info)

	w.mu.Lock()
	if prev, ok := w.processed[path]; ok && prev == fp {
		w.mu.Unlock()
		w.cfg.Logger.Debug("Пропускаем ранее обработанный файл", zap.String("file", path))
		return
	}
	if _, busy := w.inflight[path]; busy {
		w.mu.Unlock()
		return
	}
	w.inflight[path] = struct{}{}
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.inflight, path)
		w.mu.Unlock()
	}()

	w.cfg.Logger.Info("Обрабатываем файл", zap.String("file", path))
	rep, err := w.proc.ProcessFile(w.ctx, path)
	if err != nil {
		w.cfg.Logger.Error("Файл не обработан", zap.String("file", path), zap.Error(err))
		return
	}
	w.mu.Lock()
	w.processed[path] = fp
	w.mu.Unlock()
	w.cfg.Logger.Info("Файл обработан", zap.String("file", path),
		zap.String("run", rep.RunID), zap.Int("rows", rep.Rows()), zap.Int("issues", len(rep.Issues)))
}

// forget удаляет файл из processed, чтобы пересозданный файл был разобран заново
func (w *Watcher) forget(path string) {
	w.stopTail(path)
	w.mu.Lock()
	delete(w.processed, path)
	if timer, ok := w.pending[path]; ok {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.cfg.Logger.Debug("Файл удалён", zap.String("file", path))
}
