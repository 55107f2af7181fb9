// Package source читает SQL-файлы: фильтр по расширению, удаление BOM,
// перекодирование в UTF-8.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

var (
	ErrExtension = errors.New("not a .sql file")
	ErrRead      = errors.New("read sql file")
	ErrEncoding  = errors.New("decode sql file")
)

// Extension — расширение файлов, которые принимает загрузчик.
const Extension = ".sql"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load читает файл и возвращает текст в UTF-8.
// encoding — имя кодировки по WHATWG ("utf-8", "windows-1251", "koi8-r" ...); пустое значение — UTF-8.
func Load(path, encoding string) (string, error) {
	if !IsSQLFile(path) {
		return "", fmt.Errorf("%w: %s", ErrExtension, path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRead, err)
	}
	text, err := Decode(raw, encoding)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return text, nil
}

// Decode перекодирует байты в UTF-8 и удаляет BOM.
func Decode(raw []byte, encoding string) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	name := strings.ToLower(strings.TrimSpace(encoding))
	if name == "" || name == "utf-8" || name == "utf8" {
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("%w: invalid UTF-8", ErrEncoding)
		}
		return string(raw), nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", fmt.Errorf("%w: unknown encoding %q", ErrEncoding, encoding)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	return string(bytes.TrimPrefix(decoded, utf8BOM)), nil
}

// IsSQLFile сообщает, подходит ли путь под фильтр загрузчика.
func IsSQLFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Extension)
}
