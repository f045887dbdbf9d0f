package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"accountops/internal/config"
)

const timestampLayout = "20060102_150405"

// Store 将执行结果写入结果目录下的平面文件。
type Store struct {
	dir string
	now func() time.Time
}

// New 根据配置初始化结果目录。
func New(cfg config.OutputConfig) (*Store, error) {
	if err := ensureDir(cfg.Dir); err != nil {
		return nil, err
	}
	return &Store{dir: cfg.Dir, now: time.Now}, nil
}

// Dir 返回结果目录。
func (s *Store) Dir() string {
	return s.dir
}

// WriteText 写入 <dir>/<name>_<timestamp>.txt 并返回路径。
func (s *Store) WriteText(name, content string) (string, error) {
	path := s.path(name, "txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("store: 写入结果文件 %q 失败: %w", path, err)
	}
	return path, nil
}

// WriteCSV 写入 <dir>/<name>_<timestamp>.csv 并返回路径。
func (s *Store) WriteCSV(name string, header []string, rows [][]string) (string, error) {
	path := s.path(name, "csv")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("store: 创建 CSV 文件 %q 失败: %w", path, err)
	}

	w := csv.NewWriter(f)
	if len(header) > 0 {
		if err := w.Write(header); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("store: 写入 CSV 表头失败: %w", err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("store: 写入 CSV 数据失败: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("store: 关闭 CSV 文件失败: %w", err)
	}
	return path, nil
}

func (s *Store) path(name, ext string) string {
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.%s", name, s.now().Format(timestampLayout), ext))
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("store: 创建目录 %q 失败: %w", path, err)
	}
	return nil
}
