package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kart-io/sentinel-docqa/internal/model"
	"github.com/kart-io/sentinel-docqa/pkg/id"
	"github.com/kart-io/sentinel-docqa/pkg/json"
)

// Archiver 将会话完整记录写入归档目录。
type Archiver struct {
	dir string
	now func() time.Time
}

// NewArchiver 创建归档器。
func NewArchiver(dir string) *Archiver {
	return &Archiver{dir: dir, now: time.Now}
}

// Dir 返回归档目录。
func (a *Archiver) Dir() string {
	return a.dir
}

// FileName 返回归档文件名 session_<id前8位>_<YYYYMMDD_HHMMSS>.json。
func FileName(sessionID string, at time.Time) string {
	return fmt.Sprintf("session_%s_%s.json", id.Short(sessionID, 8), at.Format("20060102_150405"))
}

// Archive 写入归档并返回文件路径。
func (a *Archiver) Archive(session *model.Session) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode session %s: %w", session.ID, err)
	}

	path := filepath.Join(a.dir, FileName(session.ID, a.now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write archive %s: %w", path, err)
	}
	return path, nil
}
