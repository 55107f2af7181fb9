package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"bigscope/internal/batch"
	"bigscope/internal/clickhouseclient"
	"bigscope/internal/config"
	"bigscope/internal/engine"
	"bigscope/internal/export"
	"bigscope/internal/logger"
	"bigscope/internal/models"
	"bigscope/internal/pipeline"
	"bigscope/internal/storage"
	"bigscope/internal/watcher"
)

type options struct {
	configPath string
	format     string
	backend    string
	flat       bool
	useEngine  bool
	outDir     string
	serve      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "путь к config.yaml")
	flag.StringVar(&opts.format, "format", "grid", "формат вывода: "+strings.Join(export.Formats(), ", "))
	flag.StringVar(&opts.backend, "backend", "", "разборщик: native, sqlparser, lines")
	flag.BoolVar(&opts.flat, "flat", false, "одна общая таблица вместо таблиц по имени")
	flag.BoolVar(&opts.useEngine, "engine", false, "выполнить файл во встроенной SQLite и показать её таблицы")
	flag.StringVar(&opts.outDir, "out", "", "каталог для файлов экспорта вместо stdout")
	flag.BoolVar(&opts.serve, "serve", false, "режим сервиса: следить за SourceDirs")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage:\n  bigscope [flags] file.sql\n  bigscope -serve -config config.yaml\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if opts.serve {
		if err := serve(opts.configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := runOnce(opts, flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runOnce разбирает один файл и выводит таблицы в stdout или в каталог -out
func runOnce(opts options, path string) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфига: %w", err)
	}
	if opts.configPath == "" {
		cfg.Logging.Level = "warn"
	}
	if opts.backend != "" {
		cfg.Extractor.Backend = opts.backend
	}
	if opts.flat {
		cfg.Extractor.Flat = true
	}
	if _, err := export.New(opts.format, nil); err != nil {
		return err
	}
	cfg.Export.OutputDir = opts.outDir
	cfg.Export.Formats = nil
	if opts.outDir != "" && !opts.useEngine {
		cfg.Export.Formats = []string{opts.format}
	}

	rootLogger, err := logger.InitZap(&cfg.Logging)
	if err != nil {
		return err
	}
	defer rootLogger.Sync()
	lg := rootLogger.Named("main")

	var pipelineOpts []pipeline.Option
	var eng *engine.Engine
	if opts.useEngine {
		dbPath := ":memory:"
		if cfg.SQLite.Enabled {
			dbPath = cfg.SQLite.Path
		}
		if eng, err = engine.Open(dbPath); err != nil {
			return err
		}
		defer eng.Close()
		pipelineOpts = append(pipelineOpts, pipeline.WithEngine(eng))
	}

	proc, err := pipeline.New(cfg, rootLogger.Named("pipeline"), pipelineOpts...)
	if err != nil {
		return err
	}
	ctx := context.Background()
	rep, err := proc.ProcessFile(ctx, path)
	if err != nil {
		return err
	}
	for _, issue := range rep.Issues {
		fmt.Fprintln(os.Stderr, issue.Error())
	}

	tables := rep.Tables
	if eng != nil {
		if rep.EngineErr != nil {
			return rep.EngineErr
		}
		if tables, err = eng.ReadAll(ctx); err != nil {
			return err
		}
		if opts.outDir != "" {
			return writeTables(opts.outDir, path, opts.format, tables)
		}
	}

	if opts.outDir != "" {
		for _, p := range rep.Exported {
			fmt.Println(p)
		}
		return nil
	}
	lg.Debug("Вывод таблиц", zap.Int("tables", len(tables)), zap.String("format", opts.format))
	return printTables(opts.format, tables)
}

// printTables выводит таблицы в stdout; у нескольких таблиц перед каждой печатается её имя
func printTables(format string, tables []models.Table) error {
	f, err := export.New(format, os.Stdout)
	if err != nil {
		return err
	}
	for i, t := range tables {
		if len(tables) > 1 && format == "grid" {
			if i > 0 {
				fmt.Println()
			}
			fmt.Println(t.Name)
		}
		if err := f.Format(t); err != nil {
			return err
		}
	}
	return nil
}

// writeTables сохраняет таблицы встроенной SQLite тем же способом, что и pipeline
func writeTables(dir, source, format string, tables []models.Table) error {
	cfg := &config.Config{Export: config.ExportConfig{OutputDir: dir, Formats: []string{format}}}
	proc, err := pipeline.New(cfg, zap.NewNop())
	if err != nil {
		return err
	}
	paths, err := proc.ExportTables(source, tables)
	for _, p := range paths {
		fmt.Println(p)
	}
	return err
}

// serve запускает сервис: watcher -> pipeline -> batcher -> ClickHouse
func serve(configPath string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("ошибка загрузки %s: %w", configPath, err)
	}
	if err := cfg.ValidateService(); err != nil {
		return fmt.Errorf("ошибка в %s: %w", configPath, err)
	}

	rootLogger, err := logger.InitZap(&cfg.Logging)
	if err != nil {
		return err
	}
	lg := rootLogger.Named("main")
	defer lg.Sync()
	lg.Info("Сервис bigscope стартует…")
	lg.Info("Конфиг успешно загружен", zap.String("path", configPath), zap.Int("sources", len(cfg.SourceDirs)))

	var store storage.ProcessedStore
	switch cfg.ProcessedStorage {
	case "redis":
		rs, err := storage.NewRedisStore(&cfg.Redis)
		if err != nil {
			lg.Fatal("Ошибка подключения к Redis", zap.Error(err))
		}
		defer rs.Close()
		store = rs
	default:
		store = storage.NewFileStore(cfg.ProcessedFile)
	}

	var pipelineOpts []pipeline.Option
	if cfg.SQLite.Enabled {
		eng, err := engine.Open(cfg.SQLite.Path)
		if err != nil {
			lg.Fatal("Ошибка открытия SQLite", zap.Error(err), zap.String("path", cfg.SQLite.Path))
		}
		defer eng.Close()
		pipelineOpts = append(pipelineOpts, pipeline.WithEngine(eng))
	}

	var wg sync.WaitGroup
	if cfg.ClickHouse.Enabled {
		chClient, err := clickhouseclient.New(cfg.ClickHouse, rootLogger.Named("clickhouse"))
		if err != nil {
			lg.Fatal("Ошибка подключения к ClickHouse", zap.Error(err))
		}
		defer chClient.Close()

		batchCh := make(chan models.Table, cfg.BatchSize*2)
		pipelineOpts = append(pipelineOpts, pipeline.WithOutput(batchCh))

		batcher := batch.NewBatcher(cfg.BatchSize, cfg.BatchIntervalDuration(), rootLogger.Named("batcher"), chClient)
		wg.Add(1)
		go func() { defer wg.Done(); batcher.Run(ctx, batchCh) }()
	}

	proc, err := pipeline.New(cfg, rootLogger.Named("pipeline"), pipelineOpts...)
	if err != nil {
		lg.Fatal("Ошибка настройки pipeline", zap.Error(err))
	}

	w, err := watcher.New(watcher.Config{
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     rootLogger.Named("watcher"),
		Store:      store,
		Processor:  proc,
	})
	if err != nil {
		lg.Fatal("Ошибка настройки watcher", zap.Error(err))
	}

	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		if err := w.Start(ctx); err != nil {
			lg.Error("Watcher завершился с ошибкой", zap.Error(err))
		}
	}()

	select {
	case <-stop:
		lg.Info("Получен сигнал остановки, начинаем завершение работы")
	case <-watcherDone:
	}
	cancel()
	<-watcherDone
	wg.Wait()
	lg.Info("Сервис завершил работу")
	return nil
}
