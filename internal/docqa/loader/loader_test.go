package loader

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-docqa/pkg/infra/pool"
)

const docxTemplate = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>%s</w:body>
</w:document>`

func para(runs ...string) string {
	var sb strings.Builder
	sb.WriteString("<w:p>")
	for _, r := range runs {
		sb.WriteString("<w:r><w:t xml:space=\"preserve\">" + r + "</w:t></w:r>")
	}
	sb.WriteString("</w:p>")
	return sb.String()
}

func writeDocx(t *testing.T, path string, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(strings.Replace(docxTemplate, "%s", body, 1)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func TestExtractDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.docx")
	body := para("Open the ", "menu.") +
		"<w:p></w:p>" +
		para("   ") +
		"<w:p><w:r><w:t>Col A</w:t><w:tab/><w:t>Col B</w:t></w:r></w:p>" +
		"<w:tbl><w:tr><w:tc>" + para("In a table.") + "</w:tc></w:tr></w:tbl>"
	writeDocx(t, path, body)

	text, err := ExtractDocx(path)
	require.NoError(t, err)
	assert.Equal(t, "Open the menu.\n\nCol A\tCol B\n\nIn a table.", text)
}

func TestExtractDocxInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))
	_, err := ExtractDocx(path)
	assert.Error(t, err)

	// A zip without the body part.
	path = filepath.Join(t.TempDir(), "empty.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, zip.NewWriter(f).Close())
	require.NoError(t, f.Close())
	_, err = ExtractDocx(path)
	assert.ErrorContains(t, err, "word/document.xml")
}

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	writeDocx(t, filepath.Join(dir, "b.docx"), para("Beta doc."))
	writeDocx(t, filepath.Join(dir, "sub", "a.docx"), para("Alpha doc.")+para("Second para."))
	writeDocx(t, filepath.Join(dir, "blank.docx"), "<w:p></w:p>")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.docx"), []byte("garbage"), 0o644))

	p, err := pool.NewPool("test-extract", pool.ExtractionPool, pool.ExtractionPoolConfig(2))
	require.NoError(t, err)
	defer p.Release()

	docs, err := New(p).Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "b.docx", docs[0].ID)
	assert.Equal(t, "Beta doc.", docs[0].Content)
	assert.Equal(t, "docx", docs[0].ContentType)

	assert.Equal(t, "sub/a.docx", docs[1].ID)
	assert.Equal(t, "a.docx", docs[1].Name)
	assert.Equal(t, "Alpha doc.\n\nSecond para.", docs[1].Content)
}

func TestLoaderSequentialMatchesPooled(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"x.docx", "y.docx", "z.docx"} {
		writeDocx(t, filepath.Join(dir, name), para("Text of "+name+"."))
	}

	p, err := pool.NewPool("test-extract-2", pool.ExtractionPool, pool.ExtractionPoolConfig(3))
	require.NoError(t, err)
	defer p.Release()

	pooled, err := New(p).Load(context.Background(), dir)
	require.NoError(t, err)
	sequential, err := New(nil).Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, sequential, pooled)
}

func TestLoaderMissingDir(t *testing.T) {
	_, err := New(nil).Load(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoaderRegisterExtractor(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("# Title\n\nBody."), 0o644))

	l := New(nil)
	assert.False(t, l.Supported("readme.md"))
	l.Register(".MD", func(path string) (string, error) {
		data, err := os.ReadFile(path)
		return string(data), err
	})
	assert.True(t, l.Supported("README.md"))

	docs, err := l.Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "md", docs[0].ContentType)
}
