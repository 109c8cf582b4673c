package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"athena-backend/internal/shared/storage/object/local"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const docxBody = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Acme Robotics</w:t></w:r></w:p>
<w:p><w:r><w:t>We automate warehouses.</w:t></w:r></w:p>
</w:body></w:document>`

func slideXML(text string) string {
	return `<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
}

func TestFromBytes_ZipDocxNormalizes(t *testing.T) {
	data := buildZip(t, map[string]string{"word/document.xml": docxBody})

	got, err := FromBytes(context.Background(), data, "application/zip", "deck.docx")
	if err != nil {
		t.Fatalf("expected docx to extract from zip mime, got error: %v", err)
	}
	if got.Content != "Acme Robotics\nWe automate warehouses." {
		t.Fatalf("unexpected text %q", got.Content)
	}
}

func TestStripOOXMLKeepsOnlyRunText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "indented docx",
			in:   docxBody,
			want: "Acme Robotics\nWe automate warehouses.",
		},
		{
			name: "empty paragraphs collapse",
			in:   "<w:body>\n  <w:p></w:p>\n  <w:p><w:r><w:t>One</w:t></w:r></w:p>\n  <w:p/>\n  <w:p><w:r><w:t>Two</w:t></w:r></w:p>\n</w:body>",
			want: "One\nTwo",
		},
		{
			name: "runs join and keep inner spaces",
			in:   `<w:p><w:r><w:t xml:space="preserve">Series </w:t></w:r><w:r><w:t>A</w:t></w:r><w:r><w:br/></w:r><w:r><w:t>2026</w:t></w:r></w:p>`,
			want: "Series A\n2026",
		},
		{
			name: "slide text",
			in:   slideXML("Ask: $2M seed"),
			want: "Ask: $2M seed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripOOXML(tt.in); got != tt.want {
				t.Fatalf("stripOOXML = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromBytes_PPTXSlidesInOrder(t *testing.T) {
	data := buildZip(t, map[string]string{
		"ppt/presentation.xml":   "<p:presentation/>",
		"ppt/slides/slide10.xml": slideXML("Ask: $2M seed"),
		"ppt/slides/slide2.xml":  slideXML("Problem"),
		"ppt/slides/slide1.xml":  slideXML("Acme"),
	})

	got, err := FromBytes(context.Background(), data, MimePPTX, "deck.pptx")
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if got.PageCount != 3 {
		t.Fatalf("expected 3 slides, got %d", got.PageCount)
	}
	if got.Content != "Acme\n\nProblem\n\nAsk: $2M seed" {
		t.Fatalf("unexpected slide order %q", got.Content)
	}
}

func TestFromBytes_RealZipRejected(t *testing.T) {
	data := buildZip(t, map[string]string{"notes.txt": "hello"})

	_, err := FromBytes(context.Background(), data, "application/zip", "notes.zip")
	if !errors.Is(err, ErrUnsupportedMime) {
		t.Fatalf("expected ErrUnsupportedMime, got %v", err)
	}
	if !strings.Contains(err.Error(), "application/zip") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractTextSavesDerivedCopy(t *testing.T) {
	store := local.New(t.TempDir())
	ctx := context.Background()
	data := buildZip(t, map[string]string{"word/document.xml": docxBody})
	key, _, _, err := store.Save(ctx, "run-1", "deck.docx", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := ExtractText(ctx, store, key, MimeDOCX)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	rc, err := store.Open(ctx, key+".extracted.txt")
	if err != nil {
		t.Fatalf("open derived copy: %v", err)
	}
	defer rc.Close()
	saved, _ := io.ReadAll(rc)
	if string(saved) != got.Content {
		t.Fatalf("derived copy %q does not match %q", saved, got.Content)
	}
}
