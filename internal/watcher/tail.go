package watcher

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"

	"bigscope/internal/extract"
)

// startTail запускает tail для файла, начиная с сохранённого смещения
func (w *Watcher) startTail(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.files[path]; exists {
		return
	}
	if w.ctx.Err() != nil {
		return
	}
	var loc tail.SeekInfo
	if offset, ok := w.processed[path]; ok {
		loc = tail.SeekInfo{Offset: offset, Whence: io.SeekStart}
	} else {
		loc = tail.SeekInfo{Offset: 0, Whence: io.SeekStart}
	}
	t, err := tail.TailFile(path, tail.Config{Follow: true, ReOpen: true, MustExist: false, Location: &loc, Logger: tail.DiscardingLogger})
	if err != nil {
		w.cfg.Logger.Error("Ошибка открытия tail", zap.String("file", path), zap.Error(err))
		return
	}
	w.files[path] = t
	w.cfg.Logger.Info("Запущен tail для файла", zap.String("file", path))
	w.wg.Add(1)
	go w.readTail(path, t)
}

// stopTail останавливает tail и сохраняет processed
func (w *Watcher) stopTail(path string) {
	w.mu.Lock()
	t, ok := w.files[path]
	delete(w.files, path)
	w.mu.Unlock()
	if ok {
		t.Stop()
		w.saveProcessed()
	}
}

// chunkName — имя фрагмента для экспорта: dump.sql -> dump-000003.sql
func chunkName(path string, n int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%06d%s", strings.TrimSuffix(path, ext), n, ext)
}

// readTail копит строки до конца полного выражения и передаёт текст в обработку.
// Незавершённый хвост при остановке отбрасывается: смещение остаётся
// на конце последнего обработанного выражения, и хвост будет прочитан заново.
func (w *Watcher) readTail(path string, t *tail.Tail) {
	defer w.wg.Done()
	defer func() {
		w.mu.Lock()
		if w.files[path] == t {
			delete(w.files, path)
		}
		w.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			w.cfg.Logger.Error("Паника в readTail восстановлена", zap.Any("error", r))
		}
	}()
	backslash := w.cfg.Config.Extractor.BackslashEscapes
	var buffer strings.Builder
	chunks := 0

	flushBuffer := func() {
		chunks++
		rep, err := w.proc.ProcessText(w.ctx, chunkName(path, chunks), buffer.String())
		buffer.Reset()
		if err != nil {
			w.cfg.Logger.Error("Фрагмент не обработан", zap.String("file", path), zap.Error(err))
			return
		}
		w.cfg.Logger.Debug("Фрагмент обработан", zap.String("file", path),
			zap.String("run", rep.RunID), zap.Int("rows", rep.Rows()))
		off, err := t.Tell()
		if err == nil {
			w.mu.Lock()
			w.processed[path] = off
			w.mu.Unlock()
		}
	}

	for {
		select {
		case <-w.ctx.Done():
			return
		case line, ok := <-t.Lines:
			if !ok {
				return
			}
			if line.Err != nil {
				w.cfg.Logger.Warn("Ошибка чтения tail", zap.String("file", path), zap.Error(line.Err))
				continue
			}
			clean := strings.ReplaceAll(line.Text, "\x00", "")
			if len(clean) != len(line.Text) {
				w.cfg.Logger.Warn("Обнаружены нулевые байты в строке", zap.String("file", path))
			}
			buffer.WriteString(clean)
			buffer.WriteByte('\n')
			if strings.Contains(clean, ";") && extract.Complete(buffer.String(), backslash) {
				flushBuffer()
			}
		}
	}
}
