package store

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kart-io/sentinel-docqa/internal/model"
	"github.com/kart-io/sentinel-docqa/pkg/json"
)

// 持久化产物文件名。
const (
	IndexFileName  = "faiss_index.bin"
	ChunksFileName = "document_chunks.json"
)

// ErrArtifactsMissing 表示至少一个持久化产物不存在。
var ErrArtifactsMissing = stderrors.New("index artifacts missing")

// ChunkSet 与索引一同持久化的分块序列，顺序与索引槽位一一对应。
type ChunkSet struct {
	Fingerprint string        `json:"fingerprint"`
	Dimension   int           `json:"dimension"`
	Chunks      []model.Chunk `json:"chunks"`
}

// ArtifactStore 读写索引产物目录。
type ArtifactStore struct {
	dir string
}

// NewArtifactStore 创建产物存储。
func NewArtifactStore(dir string) *ArtifactStore {
	return &ArtifactStore{dir: dir}
}

// Dir 返回产物目录。
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// IndexPath 返回索引文件路径。
func (s *ArtifactStore) IndexPath() string {
	return filepath.Join(s.dir, IndexFileName)
}

// ChunksPath 返回分块文件路径。
func (s *ArtifactStore) ChunksPath() string {
	return filepath.Join(s.dir, ChunksFileName)
}

// Exists 报告两个产物是否都存在。
func (s *ArtifactStore) Exists() bool {
	return fileExists(s.IndexPath()) && fileExists(s.ChunksPath())
}

// Save 写入两个产物。每个文件先写临时文件再重命名。
func (s *ArtifactStore) Save(index *FlatIndex, set *ChunkSet) error {
	if index.Len() != len(set.Chunks) {
		return fmt.Errorf("save artifacts: %d vectors for %d chunks", index.Len(), len(set.Chunks))
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if err := writeAtomic(s.IndexPath(), func(f *os.File) error {
		_, err := index.WriteTo(f)
		return err
	}); err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode chunks: %w", err)
	}
	if err := writeAtomic(s.ChunksPath(), func(f *os.File) error {
		_, err := f.Write(data)
		return err
	}); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	return nil
}

// Load 读取两个产物并校验数量与维度一致。任一文件缺失返回 ErrArtifactsMissing。
func (s *ArtifactStore) Load() (*FlatIndex, *ChunkSet, error) {
	if !s.Exists() {
		return nil, nil, ErrArtifactsMissing
	}

	f, err := os.Open(s.IndexPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	index, err := ReadFlatIndex(f)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(s.ChunksPath())
	if err != nil {
		return nil, nil, fmt.Errorf("read chunks: %w", err)
	}
	var set ChunkSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, nil, fmt.Errorf("decode chunks: %w", err)
	}

	if index.Len() != len(set.Chunks) {
		return nil, nil, fmt.Errorf("artifacts disagree: %d vectors for %d chunks", index.Len(), len(set.Chunks))
	}
	if set.Dimension != 0 && set.Dimension != index.Dim() {
		return nil, nil, fmt.Errorf("artifacts disagree: chunk set dimension %d, index dimension %d",
			set.Dimension, index.Dim())
	}
	return index, &set, nil
}

// Remove 删除两个产物，文件不存在不视为错误。
func (s *ArtifactStore) Remove() error {
	for _, p := range []string{s.IndexPath(), s.ChunksPath()} {
		if err := os.Remove(p); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func writeAtomic(path string, write func(f *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
