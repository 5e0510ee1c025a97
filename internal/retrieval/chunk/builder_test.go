package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/docuqa/docuqa/internal/domain/docModel"
)

func pages(texts ...string) []docModel.RawPage {
	var p []docModel.RawPage
	for i, t := range texts {
		p = append(p, docModel.RawPage{Index: i, Text: t})
	}
	return p
}

func TestBuild_EmptyAndGarbageInput(t *testing.T) {
	b := NewBuilder(Config{})

	tests := []struct {
		name  string
		pages []docModel.RawPage
	}{
		{"No_Pages", nil},
		{"Empty_Pages", pages("", "", "")},
		{"Whitespace_Only", pages("   \n\t\n   ")},
		{"Digits_Only", pages("123 456 789 101 112 131")},
		{"Punctuation_Noise", pages("..... ----- ||||| ..... ----- |||||")},
		{"Below_Min_Words", pages("too short")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Build(tt.pages); len(got) != 0 {
				t.Errorf("Build() = %d chunks, want 0", len(got))
			}
		})
	}
}

func TestBuild_DuplicateParagraphsYieldOneChunk(t *testing.T) {
	b := NewBuilder(Config{})
	para := "The mitochondria is the powerhouse of the cell and produces most of its energy."

	chunks := b.Build(pages(para + "\n\n" + para))

	count := 0
	for _, c := range chunks {
		if strings.Contains(c.Text, "mitochondria") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("duplicate paragraph produced %d chunks, want exactly 1", count)
	}
}

func TestBuild_ChunkBoundsAndOrder(t *testing.T) {
	b := NewBuilder(Config{MaxWords: 20})

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, "Sentence number %d talks about something mildly interesting. ", i)
	}
	chunks := b.Build(pages(sb.String(), "A second page with its own perfectly ordinary paragraph of text."))

	if len(chunks) == 0 {
		t.Fatal("expected chunks from long input")
	}
	for i, c := range chunks {
		if n := len(strings.Fields(c.Text)); n > 20 {
			t.Errorf("chunk %d has %d words, exceeds max 20", i, n)
		}
		if i == 0 {
			continue
		}
		prev := chunks[i-1]
		if c.PageIndex < prev.PageIndex ||
			(c.PageIndex == prev.PageIndex && c.SeqIndex <= prev.SeqIndex) {
			t.Errorf("chunk order broken at %d: (%d,%d) after (%d,%d)",
				i, c.PageIndex, c.SeqIndex, prev.PageIndex, prev.SeqIndex)
		}
	}
}

func TestBuild_HeaderFooterStripping(t *testing.T) {
	b := NewBuilder(Config{HeaderMinPageCount: 3})

	header := "ACME Corp Annual Report"
	var input []docModel.RawPage
	for i := 0; i < 4; i++ {
		body := fmt.Sprintf("Page %d discusses the quarterly revenue figures in considerable detail here.", i)
		input = append(input, docModel.RawPage{Index: i, Text: header + "\n\n" + body})
	}

	for _, c := range b.Build(input) {
		if strings.Contains(c.Text, header) {
			t.Errorf("repeated header leaked into chunk: %q", c.Text)
		}
	}
}

func TestBuild_DeterministicAndPure(t *testing.T) {
	b := NewBuilder(Config{})
	input := pages(
		"Paris is the capital of France. It is known for art and culture.",
		"The Eiffel Tower is in Paris. It was completed in the year 1889.",
	)

	first := b.Build(input)
	second := b.Build(input)

	if len(first) != len(second) {
		t.Fatalf("runs differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
	if len(first) > 0 && first[0].DocFingerprint != docModel.Fingerprint(input) {
		t.Error("chunk fingerprint does not match document fingerprint")
	}
}

func TestCollapsePunctRuns(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Dotted_Leader", "Chapter One.......12", "Chapter One.12"},
		{"Dash_Rule", "-----\ntext", "-\ntext"},
		{"Short_Run_Kept", "Wait... no, really..", "Wait. no, really.."},
		{"Mixed_Runs", "a***b---c", "a*b-c"},
		{"No_Runs", "Plain sentence, nothing odd.", "Plain sentence, nothing odd."},
		{"Trailing_Run", "end!!!!", "end!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collapsePunctRuns(tt.in); got != tt.want {
				t.Errorf("collapsePunctRuns(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuild_CollapsesOCRPunctuationRuns(t *testing.T) {
	b := NewBuilder(Config{})
	text := "The annual budget figures........ show a steady increase over the previous year."

	chunks := b.Build(pages(text))
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	if strings.Contains(chunks[0].Text, "..") {
		t.Errorf("punctuation run survived cleaning: %q", chunks[0].Text)
	}
}

func TestBuild_AlphaRatioFilter(t *testing.T) {
	b := NewBuilder(Config{})

	//mostly symbols, below the alphabetic ratio
	garbage := "=+= a =+= b =+= c =+= d =+= e =+= f =+="
	if got := b.Build(pages(garbage)); len(got) != 0 {
		t.Errorf("low-alpha chunk survived the filter: %+v", got)
	}
}
