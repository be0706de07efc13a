package loader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeDocx(t *testing.T, path, body string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

// writePDF writes an uncompressed PDF with one Helvetica text line per page.
// An empty string produces a page with an empty content stream.
func writePDF(t *testing.T, path string, pages []string) {
	t.Helper()
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")
	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)))
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range pages {
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		content := ""
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	writeFile(t, path, buf.String())
}

func TestWalker_IncludesAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "sub", "b.md"), "b")
	writeFile(t, filepath.Join(root, "sub", "c.go"), "c")
	writeFile(t, filepath.Join(root, ".git", "d.txt"), "d")

	w := NewWalker([]string{"**/*.txt", "**/*.md"}, []string{".git/**"})
	files, err := w.Walk(root)
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d: %v", len(files), files)
	}
	if files[0].Path != filepath.Join(root, "a.txt") || files[1].Path != filepath.Join(root, "sub", "b.md") {
		t.Errorf("unexpected files %v", files)
	}
	if files[0].Size != 1 {
		t.Errorf("expected size 1, got %d", files[0].Size)
	}
}

func TestWalker_DefaultIncludesEverything(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "x.bin"), "x")

	files, err := NewWalker(nil, nil).Walk(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("expected 1 file, got %d", len(files))
	}
}

func TestTextLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	writeFile(t, path, "hello\nworld")

	docs, err := TextLoader{}.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Content != "hello\nworld" || docs[0].Source() != path {
		t.Errorf("unexpected docs %+v", docs)
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	writeFile(t, empty, "  \n")
	docs, err = TextLoader{}.Load(empty)
	if err != nil || len(docs) != 0 {
		t.Errorf("blank file should produce no documents, got %v, %v", docs, err)
	}
}

func TestDOCXLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.docx")
	writeDocx(t, path,
		`<w:p><w:r><w:t>First</w:t></w:r><w:r><w:t xml:space="preserve"> paragraph</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>line</w:t></w:r></w:p>`)

	docs, err := DOCXLoader{}.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Content != "First paragraph\nSecond\tline" {
		t.Errorf("unexpected content %q", docs[0].Content)
	}
	if docs[0].Source() != path {
		t.Errorf("unexpected source %q", docs[0].Source())
	}
}

func TestDOCXLoader_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	writeFile(t, path, "not a zip")
	if _, err := (DOCXLoader{}).Load(path); err == nil {
		t.Error("expected error")
	}
}

func TestPDFLoader_PagesAndBlankSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manual.pdf")
	writePDF(t, path, []string{"Hello page one", "Second page text", ""})

	docs, err := (PDFLoader{}).Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	want := []struct{ page, text string }{
		{"0", "Hello page one"},
		{"1", "Second page text"},
	}
	for i, w := range want {
		d := docs[i]
		if d.Metadata["source"] != path {
			t.Errorf("doc %d: source = %q, want %q", i, d.Metadata["source"], path)
		}
		if d.Metadata["page"] != w.page {
			t.Errorf("doc %d: page = %q, want %q", i, d.Metadata["page"], w.page)
		}
		if got := strings.TrimSpace(d.Content); got != w.text {
			t.Errorf("doc %d: content = %q, want %q", i, got, w.text)
		}
	}
}

func TestPDFLoader_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	writeFile(t, path, "not a pdf")
	if _, err := (PDFLoader{}).Load(path); err == nil {
		t.Error("expected error")
	}
}

func TestDirectoryLoader(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "alpha")
	writeDocx(t, filepath.Join(root, "b.docx"), `<w:p><w:r><w:t>beta</w:t></w:r></w:p>`)
	writeFile(t, filepath.Join(root, "c.docx"), "corrupt")
	writeFile(t, filepath.Join(root, "d.csv"), "ignored")

	l := NewDirectoryLoader(NewWalker(nil, nil), nil)
	docs, err := l.Load(root)
	if err == nil || !strings.Contains(err.Error(), "c.docx") {
		t.Errorf("expected error naming the corrupt file, got %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Content != "alpha" || docs[1].Content != "beta" {
		t.Errorf("unexpected documents %+v", docs)
	}
}

func TestDirectoryLoader_MissingRoot(t *testing.T) {
	l := NewDirectoryLoader(NewWalker(nil, nil), nil)
	if _, err := l.Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}
