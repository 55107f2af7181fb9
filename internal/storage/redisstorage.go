package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"bigscope/internal/config"
)

// RedisStore хранит отпечатки обработанных файлов в хеше Redis: поле — путь, значение — отпечаток.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(cfg *config.RedisConfig) (*RedisStore, error) {
	// Создаём клиента Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	// Проверяем подключение с тайм-аутом
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Соединение не установлено - возвращаем ошибку
		_ = rdb.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}
	return &RedisStore{client: rdb, key: cfg.Key}, nil
}

func (r *RedisStore) Load() (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	processed := make(map[string]int64, len(fields))
	for path, raw := range fields {
		fp, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue // испорченное значение — файл будет разобран заново
		}
		processed[path] = fp
	}
	return processed, nil
}

func (r *RedisStore) Save(data map[string]int64) error {
	if len(data) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	values := make(map[string]interface{}, len(data))
	for path, fp := range data {
		values[path] = fp
	}
	return r.client.HSet(ctx, r.key, values).Err()
}

// Close закрывает соединение с Redis
func (r *RedisStore) Close() error {
	return r.client.Close()
}
