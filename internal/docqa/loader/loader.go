// Package loader 从目录树读取文档并提取正文。
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-docqa/internal/model"
	"github.com/kart-io/sentinel-docqa/pkg/errors"
	"github.com/kart-io/sentinel-docqa/pkg/infra/pool"
)

// Extractor 从文件提取纯文本。
type Extractor func(path string) (string, error)

// Loader 递归扫描目录，按扩展名选择提取器，在工作池中并发提取。
type Loader struct {
	pool       *pool.Pool
	extractors map[string]Extractor
}

// New 创建加载器。p 为 nil 时顺序提取。
func New(p *pool.Pool) *Loader {
	return &Loader{
		pool: p,
		extractors: map[string]Extractor{
			".docx": ExtractDocx,
		},
	}
}

// Register 为扩展名（含点，如 ".docx"）注册提取器。
func (l *Loader) Register(ext string, e Extractor) {
	l.extractors[strings.ToLower(ext)] = e
}

// Supported 报告文件是否有对应的提取器。
func (l *Loader) Supported(path string) bool {
	_, ok := l.extractors[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Load 读取 dir 下所有受支持的文档，结果按相对路径排序。
// 不支持的文件跳过；无法读取或内容为空的文档记录告警后跳过。目录不存在时返回错误。
func (l *Loader) Load(ctx context.Context, dir string) ([]model.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("documents dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("documents dir %s is not a directory", dir)
	}

	start := time.Now()
	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !l.Supported(path) {
			logger.Debugw("skipping unsupported file", "path", path)
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	docs := make([]*model.Document, len(paths))
	extract := func(i int) {
		doc, err := l.extract(dir, paths[i])
		if err != nil {
			logger.Warnw("skipping unreadable document", "path", paths[i], "error", err.Error())
			return
		}
		docs[i] = doc
	}

	if l.pool != nil {
		if err := l.pool.ForEach(ctx, len(paths), extract); err != nil {
			return nil, err
		}
	} else {
		for i := range paths {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			extract(i)
		}
	}

	out := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			out = append(out, *d)
		}
	}

	logger.Infow("documents loaded",
		"dir", dir,
		"files", len(paths),
		"documents", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (l *Loader) extract(root, path string) (*model.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	content, err := l.extractors[ext](path)
	if err != nil {
		return nil, errors.ErrExtraction.WithCause(err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.ErrExtraction.WithMessage("document is empty")
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return &model.Document{
		ID:          filepath.ToSlash(rel),
		Name:        filepath.Base(path),
		Content:     content,
		ContentType: strings.TrimPrefix(ext, "."),
	}, nil
}
