package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix — префикс переменных окружения.
const EnvPrefix = "BIGSCOPE"

// readFile читает все байты из файла по пути
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// sanitize удаляет BOM и табуляции
func sanitize(data []byte) []byte {
	// Удаляем UTF-8 BOM
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	// Заменяем табы на два пробела
	data = bytes.ReplaceAll(data, []byte("\t"), []byte("  "))
	return data
}

// setDefaults задаёт значения по умолчанию. Viper видит переменные окружения
// только для известных ему ключей, поэтому здесь перечислены все поля.
func setDefaults(v *viper.Viper) {
	v.SetDefault("SourceDirs", map[string]string{})
	v.SetDefault("FilePattern", "*.sql")
	v.SetDefault("Encoding", "utf-8")
	v.SetDefault("Follow", false)
	v.SetDefault("RescanSchedule", "@every 5m")
	v.SetDefault("BatchSize", 1000)
	v.SetDefault("BatchInterval", 5)

	v.SetDefault("Extractor.Backend", "native")
	v.SetDefault("Extractor.BackslashEscapes", false)
	v.SetDefault("Extractor.Flat", false)

	v.SetDefault("Export.OutputDir", "")
	v.SetDefault("Export.Formats", []string{})

	v.SetDefault("ClickHouse.Enabled", false)
	v.SetDefault("ClickHouse.Address", "")
	v.SetDefault("ClickHouse.Username", "default")
	v.SetDefault("ClickHouse.Password", "")
	v.SetDefault("ClickHouse.Database", "")
	v.SetDefault("ClickHouse.TablePrefix", "")
	v.SetDefault("ClickHouse.Protocol", "native")
	v.SetDefault("ClickHouse.TableMap", map[string]string{})

	v.SetDefault("SQLite.Enabled", false)
	v.SetDefault("SQLite.Path", ":memory:")

	v.SetDefault("ProcessedStorage", "file")
	v.SetDefault("ProcessedFile", "processed_files.json")

	v.SetDefault("Redis.Host", "localhost")
	v.SetDefault("Redis.Port", 6379)
	v.SetDefault("Redis.DB", 0)
	v.SetDefault("Redis.Password", "")
	v.SetDefault("Redis.Key", "bigscope:processed")

	v.SetDefault("Logging.Level", "info")
	v.SetDefault("Logging.LogFile", "")
	v.SetDefault("Logging.SentryDSN", "")
	v.SetDefault("Logging.EnableSentry", false)
}

// parseYAML парсит YAML-данные в структуру Config
func parseYAML(data []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(bytes.TrimSpace(data)) > 0 {
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет поля конфигурации, общие для CLI и сервиса
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("BatchSize must be positive")
	}
	if c.BatchInterval <= 0 {
		return fmt.Errorf("BatchInterval must be positive")
	}
	switch c.ProcessedStorage {
	case "file", "redis":
	default:
		return fmt.Errorf("ProcessedStorage must be \"file\" or \"redis\", got %q", c.ProcessedStorage)
	}
	if c.ClickHouse.Enabled {
		if c.ClickHouse.Address == "" {
			return fmt.Errorf("ClickHouse.Address must not be empty")
		}
		if c.ClickHouse.Database == "" {
			return fmt.Errorf("ClickHouse.Database must not be empty")
		}
	}
	if c.SQLite.Enabled && c.SQLite.Path == "" {
		return fmt.Errorf("SQLite.Path must not be empty")
	}
	return nil
}

// ValidateService дополнительно проверяет поля, нужные в режиме сервиса
func (c *Config) ValidateService() error {
	if len(c.SourceDirs) == 0 {
		return fmt.Errorf("SourceDirs must not be empty")
	}
	if c.FilePattern == "" {
		return fmt.Errorf("FilePattern must not be empty")
	}
	if _, err := cron.ParseStandard(c.RescanSchedule); err != nil {
		return fmt.Errorf("RescanSchedule %q: %w", c.RescanSchedule, err)
	}
	return nil
}
