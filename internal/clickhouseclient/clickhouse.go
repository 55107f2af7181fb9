package clickhouseclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"bigscope/internal/config"
	"bigscope/internal/models"
	"bigscope/internal/transform"
)

type Client struct {
	conn        clickhouse.Conn
	TablePrefix string
	TableMap    map[string]string
	Logger      *zap.Logger

	mu      sync.Mutex
	created map[string]bool // таблицы, для которых уже выполнен CREATE TABLE IF NOT EXISTS
}

// New создает клиента ClickHouse
// Protocol: "native" или "http"
func New(cfg config.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	protocol := clickhouse.Native
	if cfg.Protocol == "http" {
		protocol = clickhouse.HTTP
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Address},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		Protocol:    protocol,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	return &Client{
		conn:        conn,
		TablePrefix: cfg.TablePrefix,
		TableMap:    cfg.TableMap,
		Logger:      logger,
		created:     make(map[string]bool),
	}, nil
}

// InsertTables загружает извлечённые таблицы: по одному батчу на таблицу.
// Таблица с некорректным именем пропускается, ошибка записи прерывает загрузку.
func (c *Client) InsertTables(ctx context.Context, tables []models.Table) error {
	for _, tbl := range tables {
		shaped, err := transform.ShapeTable(tbl, c.TablePrefix, c.TableMap)
		if err != nil {
			c.Logger.Warn("Таблица пропущена", zap.Error(err), zap.String("table", tbl.Name))
			continue
		}
		if len(shaped.Columns) == 0 || len(shaped.Rows) == 0 {
			continue
		}

		// Используем отдельный контекст с таймаутом, чтобы отмена сервиса не прерывала операцию
		dbCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		err = c.insertShaped(dbCtx, shaped)
		cancel()
		if err != nil {
			return err
		}
		c.Logger.Debug("Таблица загружена", zap.String("table", shaped.Table), zap.Int("rows", len(shaped.Rows)))
	}
	return nil
}

func (c *Client) insertShaped(ctx context.Context, shaped transform.ShapedTable) error {
	if err := c.ensureTable(ctx, shaped); err != nil {
		return err
	}

	batch, err := c.conn.PrepareBatch(ctx, insertQuery(shaped))
	if err != nil {
		c.Logger.Error("prepare batch", zap.Error(err), zap.String("table", shaped.Table))
		return fmt.Errorf("prepare batch: %w", err)
	}

	values := make([]any, len(shaped.Columns))
	for _, row := range shaped.Rows {
		for i, cell := range row {
			values[i] = cell
		}
		if err := batch.Append(values...); err != nil {
			c.Logger.Error("append batch", zap.Error(err), zap.String("table", shaped.Table))
			return fmt.Errorf("append: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		c.Logger.Error("send batch", zap.Error(err), zap.String("table", shaped.Table))
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// ensureTable создаёт таблицу со столбцами Nullable(String), если её ещё нет.
func (c *Client) ensureTable(ctx context.Context, shaped transform.ShapedTable) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.created[shaped.Table] {
		return nil
	}
	if err := c.conn.Exec(ctx, createTableDDL(shaped)); err != nil {
		c.Logger.Error("create table", zap.Error(err), zap.String("table", shaped.Table))
		return fmt.Errorf("create table %s: %w", shaped.Table, err)
	}
	c.created[shaped.Table] = true
	return nil
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

func createTableDDL(shaped transform.ShapedTable) string {
	cols := make([]string, len(shaped.Columns))
	for i, col := range shaped.Columns {
		cols[i] = quoteIdent(col) + " Nullable(String)"
	}
	return "CREATE TABLE IF NOT EXISTS " + quoteIdent(shaped.Table) +
		" (" + strings.Join(cols, ", ") + ") ENGINE = MergeTree ORDER BY tuple()"
}

func insertQuery(shaped transform.ShapedTable) string {
	cols := make([]string, len(shaped.Columns))
	for i, col := range shaped.Columns {
		cols[i] = quoteIdent(col)
	}
	return "INSERT INTO " + quoteIdent(shaped.Table) + " (" + strings.Join(cols, ", ") + ")"
}

// Close закрывает соединение с ClickHouse
func (c *Client) Close() error {
	return c.conn.Close()
}
