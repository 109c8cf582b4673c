package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"athena-backend/internal/shared/storage/object"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ErrUnsupportedMime is returned for payloads that are not text documents.
var ErrUnsupportedMime = errors.New("unsupported mime type")

// Text is the plain text of a document.
type Text struct {
	Content   string
	PageCount int
}

// ExtractText pulls text from a stored object and persists a derived
// .extracted.txt copy next to it.
func ExtractText(ctx context.Context, store object.ObjectStore, fileKey string, mimeType string) (Text, error) {
	if err := ctx.Err(); err != nil {
		return Text{}, err
	}

	body, err := store.Open(ctx, fileKey)
	if err != nil {
		return Text{}, fmt.Errorf("extract text key=%s mime=%s: %w", fileKey, mimeType, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return Text{}, fmt.Errorf("extract text key=%s mime=%s: read: %w", fileKey, mimeType, err)
	}

	text, err := FromBytes(ctx, raw, mimeType, filepath.Base(fileKey))
	if err != nil {
		return Text{}, fmt.Errorf("extract text key=%s mime=%s: %w", fileKey, mimeType, err)
	}

	if _, err := store.SaveWithKey(ctx, fileKey+".extracted.txt", "text/plain; charset=utf-8", strings.NewReader(text.Content)); err != nil {
		return Text{}, fmt.Errorf("extract text key=%s mime=%s: save derived: %w", fileKey, mimeType, err)
	}
	return text, nil
}

// FromBytes extracts text from an in-memory payload. Supported: PDF, DOCX, PPTX.
func FromBytes(ctx context.Context, data []byte, mimeType string, fileName string) (Text, error) {
	if err := ctx.Err(); err != nil {
		return Text{}, err
	}
	normalized := NormalizeMimeType(mimeType, fileName, data)
	switch normalized {
	case MimePDF:
		return extractPDF(data)
	case MimeDOCX:
		return extractDOCX(data)
	case MimePPTX:
		return extractPPTX(data)
	default:
		return Text{}, fmt.Errorf("%w: %s", ErrUnsupportedMime, normalized)
	}
}

func extractPDF(data []byte) (Text, error) {
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Text{}, err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return Text{}, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return Text{}, err
	}
	return Text{Content: buf.String(), PageCount: pdfReader.NumPage()}, nil
}

func extractDOCX(data []byte) (Text, error) {
	zr, err := openZip(data)
	if err != nil {
		return Text{}, err
	}
	doc := findZipFile(zr, "word/document.xml")
	if doc == nil {
		return Text{}, errors.New("document.xml file not found")
	}
	raw, err := readZipFile(doc)
	if err != nil {
		return Text{}, err
	}
	return Text{Content: stripOOXML(raw), PageCount: 1}, nil
}

// extractPPTX concatenates slide text in slide order.
func extractPPTX(data []byte) (Text, error) {
	zr, err := openZip(data)
	if err != nil {
		return Text{}, err
	}
	type slide struct {
		n int
		f *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if !strings.HasPrefix(name, "ppt/slides/slide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{n: n, f: f})
	}
	if len(slides) == 0 {
		return Text{}, errors.New("no slides found")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	parts := make([]string, 0, len(slides))
	for _, s := range slides {
		raw, err := readZipFile(s.f)
		if err != nil {
			return Text{}, err
		}
		if text := stripOOXML(raw); text != "" {
			parts = append(parts, text)
		}
	}
	return Text{Content: strings.Join(parts, "\n\n"), PageCount: len(slides)}, nil
}

func openZip(data []byte) (*zip.Reader, error) {
	if len(data) == 0 {
		return nil, errors.New("empty document data")
	}
	return zip.NewReader(bytes.NewReader(data), int64(len(data)))
}

func findZipFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == name {
			return f
		}
	}
	return nil
}

func readZipFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// stripOOXML keeps the text of w:t and a:t runs and turns paragraph ends
// into newlines. Whitespace between markup elements is dropped.
func stripOOXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	inText := 0
	newline := func() {
		if s := buf.String(); s != "" && !strings.HasSuffix(s, "\n") {
			buf.WriteString("\n")
		}
	}
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText++
			case "tab":
				if inText == 0 {
					buf.WriteString("\t")
				}
			}
		case xml.CharData:
			if inText > 0 {
				buf.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				if inText > 0 {
					inText--
				}
			case "p", "br":
				newline()
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// NormalizeMimeType strips parameters and resolves generic zip payloads to
// the office format they contain.
func NormalizeMimeType(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean != "application/zip" && clean != "application/octet-stream" && clean != "" {
		return clean
	}

	if mapped := mapOOXMLFromZip(data); mapped != "" {
		return mapped
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return MimePDF
	case ".docx":
		return MimeDOCX
	case ".pptx":
		return MimePPTX
	default:
		return clean
	}
}

func mapOOXMLFromZip(data []byte) string {
	zr, err := openZip(data)
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		switch strings.ReplaceAll(f.Name, "\\", "/") {
		case "word/document.xml":
			return MimeDOCX
		case "xl/workbook.xml":
			return mimeXLSX
		case "ppt/presentation.xml":
			return MimePPTX
		}
	}
	return ""
}
