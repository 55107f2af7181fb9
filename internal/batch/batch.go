package batch

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"bigscope/internal/models"
)

// Sink принимает накопленные таблицы. Реализуется клиентом ClickHouse.
type Sink interface {
	InsertTables(ctx context.Context, tables []models.Table) error
}

// Batcher накапливает строки извлечённых таблиц и отправляет их пачками
// batchSize — сколько строк (суммарно по всем таблицам) отправлять за раз
// batchInterval — максимальный интервал между отправками
type Batcher struct {
	batchSize     int
	batchInterval time.Duration
	logger        *zap.Logger
	sink          Sink
}

// NewBatcher создает новый batcher
func NewBatcher(batchSize int, batchInterval time.Duration, logger *zap.Logger, sink Sink) *Batcher {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Batcher{
		batchSize:     batchSize,
		batchInterval: batchInterval,
		logger:        logger,
		sink:          sink,
	}
}

// pending — строки, ожидающие отправки, в порядке поступления таблиц.
// Строки одной таблицы с тем же заголовком склеиваются.
type pending struct {
	tables []models.Table
	rows   int
}

func (p *pending) add(t models.Table) {
	for i := range p.tables {
		cur := &p.tables[i]
		if cur.Name == t.Name && slices.Equal(cur.Columns, t.Columns) {
			cur.AppendTable(t)
			p.rows += len(t.Rows)
			return
		}
	}
	merged := models.Table{Name: t.Name, Columns: slices.Clone(t.Columns)}
	merged.AppendTable(t)
	p.tables = append(p.tables, merged)
	p.rows += len(t.Rows)
}

func (p *pending) reset() {
	p.tables = nil
	p.rows = 0
}

// Run запускает сборку и отправку batch в sink
func (b *Batcher) Run(ctx context.Context, in <-chan models.Table) {
	var batch pending
	timer := time.NewTimer(b.batchInterval)
	defer timer.Stop()

	flush := func(reason string) {
		if batch.rows == 0 {
			batch.reset()
			return
		}
		b.logger.Info("Отправляем batch",
			zap.Int("tables", len(batch.tables)), zap.Int("count", batch.rows), zap.String("reason", reason))
		// После отмены ctx пачку всё равно нужно дописать
		err := b.sink.InsertTables(context.WithoutCancel(ctx), batch.tables)
		if err != nil {
			b.logger.Error("Ошибка при отправке batch", zap.Error(err))
		} else {
			b.logger.Info("Batch успешно отправлен", zap.Int("count", batch.rows))
		}
		batch.reset()
	}

	for {
		select {
		case <-ctx.Done():
			// Забираем то, что уже лежит в канале
		drain:
			for {
				select {
				case t, ok := <-in:
					if !ok {
						break drain
					}
					batch.add(t)
				default:
					break drain
				}
			}
			flush("graceful shutdown")
			return
		case t, ok := <-in:
			if !ok {
				flush("input closed")
				return
			}
			batch.add(t)
			if batch.rows >= b.batchSize {
				flush("batch size reached")
				timer.Reset(b.batchInterval)
			}
		case <-timer.C:
			flush("interval")
			timer.Reset(b.batchInterval)
		}
	}
}
