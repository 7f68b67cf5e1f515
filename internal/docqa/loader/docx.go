package loader

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const docxBodyPart = "word/document.xml"

// ExtractDocx 提取 .docx 正文：每个段落去除首尾空白，跳过空段落，段落之间以空行分隔。
func ExtractDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != docxBodyPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", docxBodyPart, err)
		}
		defer rc.Close()

		paragraphs, err := docxParagraphs(rc)
		if err != nil {
			return "", err
		}
		return strings.Join(paragraphs, "\n\n"), nil
	}
	return "", fmt.Errorf("%s not found", docxBodyPart)
}

// docxParagraphs 流式解析 WordprocessingML，返回非空段落文本。
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		depth      int // 嵌套 <w:p> 层数（文本框内可再含段落）
		inText     bool
	)

	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
		current.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", docxBodyPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					current.Reset()
				}
				depth++
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if depth > 0 {
					depth--
				}
				if depth == 0 {
					flush()
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && depth > 0 {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
