package storage

import "os"

// ProcessedStore — интерфейс для загрузки/сохранения списка обработанных файлов.
// Значение — отпечаток файла (см. Fingerprint): изменился отпечаток — файл надо разобрать заново.
type ProcessedStore interface {
	Load() (map[string]int64, error)
	Save(data map[string]int64) error
}

// Fingerprint — отпечаток файла по времени изменения и размеру.
func Fingerprint(info os.FileInfo) int64 {
	return info.ModTime().UnixNano() ^ info.Size()
}
