// Package pipeline связывает загрузку файла, извлечение таблиц, экспорт,
// встроенную SQLite и передачу строк в batcher.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bigscope/internal/config"
	"bigscope/internal/engine"
	"bigscope/internal/export"
	"bigscope/internal/extract"
	"bigscope/internal/models"
	"bigscope/internal/source"
	"bigscope/internal/transform"
)

// Report — итог обработки одного файла или фрагмента текста.
type Report struct {
	RunID     string
	Source    string
	Tables    []models.Table
	Issues    []models.Issue
	Exported  []string // пути записанных файлов
	EngineErr error    // ошибка выполнения во встроенной SQLite, не влияет на извлечение
}

// Rows возвращает общее число извлечённых строк.
func (r *Report) Rows() int {
	n := 0
	for _, t := range r.Tables {
		n += len(t.Rows)
	}
	return n
}

type Processor struct {
	cfg       *config.Config
	extractor *extract.Extractor
	engine    *engine.Engine
	out       chan<- models.Table
	Logger    *zap.Logger
}

// Option настраивает Processor.
type Option func(*Processor)

// WithOutput направляет извлечённые таблицы в канал batcher-а.
func WithOutput(out chan<- models.Table) Option {
	return func(p *Processor) { p.out = out }
}

// WithEngine дублирует каждый файл во встроенную SQLite.
func WithEngine(e *engine.Engine) Option {
	return func(p *Processor) { p.engine = e }
}

func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Processor, error) {
	ex, err := extract.New(extract.Options{
		Backend:          extract.Backend(cfg.Extractor.Backend),
		BackslashEscapes: cfg.Extractor.BackslashEscapes,
	})
	if err != nil {
		return nil, err
	}
	for _, format := range cfg.Export.Formats {
		if _, err := export.New(format, nil); err != nil {
			return nil, err
		}
	}
	p := &Processor{cfg: cfg, extractor: ex, Logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ProcessFile загружает файл и обрабатывает его текст.
// Ошибка возвращается только при сбое чтения, экспорта или отмене ctx.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*Report, error) {
	text, err := source.Load(path, p.cfg.Encoding)
	if err != nil {
		p.Logger.Error("Не удалось прочитать файл", zap.String("file", path), zap.Error(err))
		return nil, err
	}
	return p.ProcessText(ctx, path, text)
}

// ProcessText обрабатывает SQL из памяти. name задаёт имена файлов экспорта.
func (p *Processor) ProcessText(ctx context.Context, name, sql string) (*Report, error) {
	runID := uuid.NewString()
	lg := p.Logger.With(zap.String("run", runID), zap.String("source", name))

	res := p.extractor.Extract(sql)
	rep := &Report{
		RunID:  runID,
		Source: name,
		Tables: p.tables(name, res),
		Issues: res.Issues,
	}
	for _, issue := range res.Issues {
		lg.Warn("Проблема разбора", zap.Int("statement", issue.Statement), zap.Int("line", issue.Line), zap.Error(issue.Err))
	}
	lg.Info("Извлечение завершено",
		zap.String("backend", string(p.extractor.Backend())),
		zap.Int("tables", len(rep.Tables)), zap.Int("rows", rep.Rows()), zap.Int("issues", len(rep.Issues)))

	if p.engine != nil {
		if err := p.engine.ExecScript(ctx, sql); err != nil {
			rep.EngineErr = err
			lg.Warn("SQLite не смогла выполнить файл", zap.Error(err))
		}
	}

	if err := p.export(rep); err != nil {
		lg.Error("Ошибка экспорта", zap.Error(err))
		return rep, err
	}

	if p.out != nil {
		for _, t := range rep.Tables {
			if len(t.Rows) == 0 {
				continue
			}
			select {
			case p.out <- t:
			case <-ctx.Done():
				return rep, ctx.Err()
			}
		}
	}
	return rep, nil
}

// tables возвращает таблицы по имени либо одну плоскую таблицу.
func (p *Processor) tables(name string, res *models.Result) []models.Table {
	if p.cfg.Extractor.Flat {
		flat := res.Flat()
		if len(flat.Columns) == 0 && len(flat.Rows) == 0 {
			return nil
		}
		if flat.Name == "" {
			flat.Name = baseName(name)
		}
		return []models.Table{flat}
	}
	tables := make([]models.Table, 0, len(res.Tables))
	for _, t := range res.Tables {
		tables = append(tables, *t)
	}
	return tables
}

// export пишет таблицы отчёта и запоминает пути файлов
func (p *Processor) export(rep *Report) error {
	paths, err := p.ExportTables(rep.Source, rep.Tables)
	rep.Exported = append(rep.Exported, paths...)
	return err
}

// ExportTables пишет каждую таблицу в каждом формате в Export.OutputDir
// под именем <файл>.<таблица><расширение>.
func (p *Processor) ExportTables(source string, tables []models.Table) ([]string, error) {
	dir := p.cfg.Export.OutputDir
	if dir == "" || len(p.cfg.Export.Formats) == 0 || len(tables) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	base := baseName(source)
	var paths []string
	for _, t := range tables {
		if t.Width() == 0 {
			continue
		}
		for _, format := range p.cfg.Export.Formats {
			path, err := writeExport(dir, base, t, format)
			if err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func writeExport(dir, base string, t models.Table, format string) (string, error) {
	f, err := export.New(format, nil)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, base+"."+transform.SanitizeIdent(t.Name)+f.Extension())
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", format, err)
	}
	f.SetOutput(file)
	if err := f.Format(t); err != nil {
		file.Close()
		return "", fmt.Errorf("export %s: %w", format, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("export %s: %w", format, err)
	}
	return path, nil
}

func baseName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
