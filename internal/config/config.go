package config

import (
	"fmt"
	"time"
)

// ExtractorConfig — настройки разбора SQL.
// Backend: "native" (по умолчанию), "sqlparser" или "lines".
type ExtractorConfig struct {
	Backend          string `mapstructure:"Backend"`
	BackslashEscapes bool   `mapstructure:"BackslashEscapes"` // дампы MySQL: \' внутри строк
	Flat             bool   `mapstructure:"Flat"`             // одна общая таблица вместо таблиц по имени
}

// ExportConfig — куда и в каких форматах сохранять извлечённые таблицы.
// Formats: grid, csv, csv-legacy, jsonl, yaml, parquet
type ExportConfig struct {
	OutputDir string   `mapstructure:"OutputDir"`
	Formats   []string `mapstructure:"Formats"`
}

// ClickHouseConfig содержит настройки подключения и маппинг таблиц.
// Ключи TableMap приводятся к нижнему регистру при загрузке.
type ClickHouseConfig struct {
	Enabled     bool              `mapstructure:"Enabled"`
	Address     string            `mapstructure:"Address"`
	Username    string            `mapstructure:"Username"`
	Password    string            `mapstructure:"Password"`
	Database    string            `mapstructure:"Database"`
	TablePrefix string            `mapstructure:"TablePrefix"`
	Protocol    string            `mapstructure:"Protocol"`
	TableMap    map[string]string `mapstructure:"TableMap"`
}

// SQLiteConfig — встроенная СУБД, в которой можно параллельно выполнить тот же SQL.
type SQLiteConfig struct {
	Enabled bool   `mapstructure:"Enabled"`
	Path    string `mapstructure:"Path"`
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Host     string `mapstructure:"Host"`
	Port     int    `mapstructure:"Port"`
	DB       int    `mapstructure:"DB"`
	Password string `mapstructure:"Password"`
	Key      string `mapstructure:"Key"`
}

// LoggingConfig содержит настройки логирования и интеграции с Sentry
type LoggingConfig struct {
	Level        string `mapstructure:"Level"`        // debug, info, warn, error
	LogFile      string `mapstructure:"LogFile"`      // путь к файлу логов
	SentryDSN    string `mapstructure:"SentryDSN"`    // DSN для Sentry
	EnableSentry bool   `mapstructure:"EnableSentry"` // включить отправку ошибок в Sentry
}

// Config описывает основные настройки сервиса.
// SourceDirs и FilePattern обязательны только в режиме сервиса.
// Любое поле можно переопределить переменной окружения BIGSCOPE_<РАЗДЕЛ>_<ПОЛЕ>.
type Config struct {
	SourceDirs     map[string]string `mapstructure:"SourceDirs"`
	FilePattern    string            `mapstructure:"FilePattern"`
	Encoding       string            `mapstructure:"Encoding"`
	Follow         bool              `mapstructure:"Follow"`
	RescanSchedule string            `mapstructure:"RescanSchedule"`
	BatchSize      int               `mapstructure:"BatchSize"`
	BatchInterval  int               `mapstructure:"BatchInterval"`

	Extractor        ExtractorConfig  `mapstructure:"Extractor"`
	Export           ExportConfig     `mapstructure:"Export"`
	ClickHouse       ClickHouseConfig `mapstructure:"ClickHouse"`
	SQLite           SQLiteConfig     `mapstructure:"SQLite"`
	ProcessedStorage string           `mapstructure:"ProcessedStorage"` // "file" или "redis"
	ProcessedFile    string           `mapstructure:"ProcessedFile"`
	Redis            RedisConfig      `mapstructure:"Redis"`
	Logging          LoggingConfig    `mapstructure:"Logging"`
}

// BatchIntervalDuration возвращает BatchInterval в виде time.Duration.
func (c *Config) BatchIntervalDuration() time.Duration {
	return time.Duration(c.BatchInterval) * time.Second
}

// LoadConfig читает и парсит конфиг из YAML-файла по указанному пути.
// Шаги:
// 1. Чтение сырого файла (пустой путь — только значения по умолчанию и окружение)
// 2. Очистка данных: удаление BOM, замена табуляций
// 3. Разбор через viper с переопределением из окружения
// 4. Валидация полей
func LoadConfig(path string) (*Config, error) {
	var raw []byte
	if path != "" {
		var err error
		if raw, err = readFile(path); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := parseYAML(sanitize(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
