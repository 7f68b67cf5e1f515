package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/kart-io/sentinel-docqa/pkg/errors"
)

// Hit 表示一次最近邻查询的结果：槽位（插入顺序）与内积分数。
type Hit struct {
	Slot  int
	Score float32
}

// FlatIndex 平坦内积索引。写入时对向量做 L2 归一化，因此内积等价于余弦相似度。
// 非并发安全，由调用方在构建完成后只读共享。
type FlatIndex struct {
	dim     int
	vectors []float32
}

// NewFlatIndex 创建指定维度的空索引。
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

// Dim 返回向量维度。
func (x *FlatIndex) Dim() int {
	return x.dim
}

// Len 返回向量数。
func (x *FlatIndex) Len() int {
	if x.dim == 0 {
		return 0
	}
	return len(x.vectors) / x.dim
}

// Add 归一化并追加向量。任一向量维度不符时不追加任何向量。
func (x *FlatIndex) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != x.dim {
			return errors.ErrDimensionMismatch.WithMessagef(
				"vector %d has dimension %d, index expects %d", i, len(v), x.dim)
		}
	}

	for _, v := range vectors {
		x.vectors = append(x.vectors, Normalize(v)...)
	}
	return nil
}

// Vector 返回槽位 i 处已归一化的向量副本。
func (x *FlatIndex) Vector(i int) []float32 {
	if i < 0 || i >= x.Len() {
		return nil
	}
	return append([]float32(nil), x.vectors[i*x.dim:(i+1)*x.dim]...)
}

// Search 返回与 query 内积最大的 k 个槽位，按分数降序，分数相同按插入顺序。
func (x *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != x.dim {
		return nil, errors.ErrDimensionMismatch.WithMessagef(
			"query has dimension %d, index expects %d", len(query), x.dim)
	}
	n := x.Len()
	if k <= 0 || n == 0 {
		return []Hit{}, nil
	}

	q := Normalize(query)
	hits := make([]Hit, n)
	for i := 0; i < n; i++ {
		row := x.vectors[i*x.dim : (i+1)*x.dim]
		var dot float32
		for j, v := range row {
			dot += v * q[j]
		}
		hits[i] = Hit{Slot: i, Score: dot}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})
	if k < n {
		hits = hits[:k]
	}
	return hits, nil
}

// Normalize 返回 L2 归一化后的副本。零向量原样返回（副本）。
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var ss float64
	for _, f := range v {
		ss += float64(f) * float64(f)
	}
	if ss == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(ss)
	for i, f := range v {
		out[i] = float32(float64(f) * inv)
	}
	return out
}

// 索引文件格式（小端）：
//
//	magic "DQIX" | version uint32 | dim uint32 | count uint64 | count*dim float32
var indexMagic = [4]byte{'D', 'Q', 'I', 'X'}

const indexVersion uint32 = 1

type indexHeader struct {
	Magic   [4]byte
	Version uint32
	Dim     uint32
	Count   uint64
}

// WriteTo 将索引编码写入 w。
func (x *FlatIndex) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	hdr := indexHeader{
		Magic:   indexMagic,
		Version: indexVersion,
		Dim:     uint32(x.dim),
		Count:   uint64(x.Len()),
	}
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return 0, fmt.Errorf("write index header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, x.vectors); err != nil {
		return 0, fmt.Errorf("write index vectors: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return int64(binary.Size(hdr)) + int64(len(x.vectors))*4, nil
}

// ReadFlatIndex 从 r 解码索引。
func ReadFlatIndex(r io.Reader) (*FlatIndex, error) {
	br := bufio.NewReader(r)

	var hdr indexHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read index header: %w", err)
	}
	if hdr.Magic != indexMagic {
		return nil, fmt.Errorf("read index: bad magic %q", hdr.Magic[:])
	}
	if hdr.Version != indexVersion {
		return nil, fmt.Errorf("read index: unsupported version %d", hdr.Version)
	}
	if hdr.Dim == 0 && hdr.Count > 0 {
		return nil, fmt.Errorf("read index: zero dimension with %d vectors", hdr.Count)
	}

	total := hdr.Count * uint64(hdr.Dim)
	if total > math.MaxInt32 {
		return nil, fmt.Errorf("read index: %d values exceed limit", total)
	}

	x := &FlatIndex{dim: int(hdr.Dim), vectors: make([]float32, total)}
	if err := binary.Read(br, binary.LittleEndian, x.vectors); err != nil {
		return nil, fmt.Errorf("read index vectors: %w", err)
	}
	return x, nil
}
