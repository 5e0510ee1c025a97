package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dslipak/pdf"
)

func TestFile_UnsupportedExtension(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "report.xlsx"))
	if !errors.Is(err, ErrUnsupportedDocType) {
		t.Fatalf("expected ErrUnsupportedDocType, got %v", err)
	}
}

func TestFile_PlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	content := "The Eiffel Tower is in Paris.\nIt was completed in 1889."
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	pages, err := File(path)
	if err != nil {
		t.Fatalf("extraction failed: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected one page, got %d", len(pages))
	}
	if pages[0].Index != 0 {
		t.Errorf("expected page index 0, got %d", pages[0].Index)
	}
	if !strings.Contains(pages[0].Text, "Eiffel Tower") {
		t.Errorf("extracted text missing content: %q", pages[0].Text)
	}
}

func TestFile_MissingFile(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "nope.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExtractPDF_SkippedPagesRenumberContiguously(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, buildMinimalPDF(3), 0o600); err != nil {
		t.Fatal(err)
	}

	//second page refuses to parse, the rest return their ordinal
	calls := 0
	orig := pageText
	pageText = func(page pdf.Page) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("broken page")
		}
		return fmt.Sprintf("text of source page %d", calls), nil
	}
	defer func() { pageText = orig }()

	pages, err := File(path)
	if err != nil {
		t.Fatalf("extraction failed: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 kept pages, got %d", len(pages))
	}
	for i, p := range pages {
		if p.Index != i {
			t.Errorf("page %d has index %d, indices must be contiguous from zero", i, p.Index)
		}
	}
	if pages[1].Text != "text of source page 3" {
		t.Errorf("wrong page survived: %q", pages[1].Text)
	}
}

// buildMinimalPDF writes a valid single-xref PDF with n empty pages.
func buildMinimalPDF(n int) []byte {
	var buf strings.Builder
	var offsets []int

	write := func(s string) {
		buf.WriteString(s)
	}
	object := func(body string) {
		offsets = append(offsets, buf.Len())
		write(fmt.Sprintf("%d 0 obj\n%s\nendobj\n", len(offsets), body))
	}

	write("%PDF-1.4\n")
	object("<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, n)
	for i := 0; i < n; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	for i := 0; i < n; i++ {
		object("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xrefStart := buf.Len()
	write(fmt.Sprintf("xref\n0 %d\n", len(offsets)+1))
	write("0000000000 65535 f \n")
	for _, off := range offsets {
		write(fmt.Sprintf("%010d 00000 n \n", off))
	}
	write(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefStart))
	return []byte(buf.String())
}
