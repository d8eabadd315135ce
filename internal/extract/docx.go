package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// docxDocumentPath is where OOXML stores the main document body.
const docxDocumentPath = "word/document.xml"

// textRun matches <w:t>...</w:t> nodes with or without attributes. Matching
// text nodes directly keeps content extractable regardless of paragraph and
// run attributes on real-world documents.
var textRun = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

var xmlEntities = strings.NewReplacer(
	"&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'",
)

// extractDOCX extracts text from .docx bytes. A DOCX file is a ZIP archive
// whose word/document.xml holds the body as OOXML.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	docXML, err := readZipFile(zr, docxDocumentPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	runs := textRun.FindAllStringSubmatch(string(docXML), -1)
	var b strings.Builder
	for _, run := range runs {
		text := strings.TrimSpace(xmlEntities.Replace(run[1]))
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found", name)
}
