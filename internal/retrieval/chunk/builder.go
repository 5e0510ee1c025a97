package chunk

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/docuqa/docuqa/internal/config"
	"github.com/docuqa/docuqa/internal/domain/docModel"
)

// Builder turns raw per-page OCR text into a deduplicated, quality-filtered
// sequence of bounded chunks. Build is a pure function of its input: no I/O,
// no side effects, and it never fails — garbage in yields an empty slice.
type Builder struct {
	maxWords           int
	minWords           int
	minAlphaRatio      float64
	headerMinPageCount int

	sentenceRe *regexp.Regexp
}

type Config struct {
	MaxWords           int
	MinWords           int
	MinAlphaRatio      float64
	HeaderMinPageCount int
}

func NewBuilder(cfg Config) *Builder {
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = config.MaxChunkWords
	}
	if cfg.MinWords <= 0 {
		cfg.MinWords = config.MinChunkWords
	}
	if cfg.MinAlphaRatio <= 0 {
		cfg.MinAlphaRatio = config.MinAlphaRatio
	}
	if cfg.HeaderMinPageCount <= 0 {
		cfg.HeaderMinPageCount = config.HeaderMinPageCount
	}
	return &Builder{
		maxWords:           cfg.MaxWords,
		minWords:           cfg.MinWords,
		minAlphaRatio:      cfg.MinAlphaRatio,
		headerMinPageCount: cfg.HeaderMinPageCount,
		sentenceRe:         regexp.MustCompile(`(?U)([^.!?]+[.!?])`),
	}
}

func (b *Builder) Build(pages []docModel.RawPage) []docModel.Chunk {
	ordered := make([]docModel.RawPage, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	fingerprint := docModel.Fingerprint(ordered)
	repeated := b.repeatedLines(ordered)

	var chunks []docModel.Chunk
	seen := make(map[string]struct{})
	seenSegments := make(map[string]struct{})

	for _, page := range ordered {
		seq := 0
		for _, text := range b.packPage(page.Text, repeated, seenSegments) {
			if !b.keep(text) {
				continue
			}
			hash := docModel.ContentHash(text)
			if _, dup := seen[hash]; dup {
				//near-duplicate OCR re-read of the same region
				continue
			}
			seen[hash] = struct{}{}
			chunks = append(chunks, docModel.Chunk{
				DocFingerprint: fingerprint,
				PageIndex:      page.Index,
				SeqIndex:       seq,
				Text:           text,
				ContentHash:    hash,
			})
			seq++
		}
	}
	return chunks
}

// repeatedLines finds short lines that show up on enough pages to be a
// running header or footer. Returns the normalized line set to strip.
func (b *Builder) repeatedLines(pages []docModel.RawPage) map[string]struct{} {
	threshold := b.headerMinPageCount
	if half := (len(pages) + 1) / 2; half > threshold {
		threshold = half
	}
	repeated := make(map[string]struct{})
	if len(pages) < b.headerMinPageCount {
		return repeated
	}

	counts := make(map[string]int)
	for _, page := range pages {
		onPage := make(map[string]struct{})
		for _, line := range strings.Split(page.Text, "\n") {
			norm := docModel.NormalizeText(line)
			if norm == "" || len(strings.Fields(norm)) > 12 {
				continue
			}
			onPage[norm] = struct{}{}
		}
		for line := range onPage {
			counts[line]++
		}
	}
	for line, n := range counts {
		if n >= threshold {
			repeated[line] = struct{}{}
		}
	}
	return repeated
}

// packPage cleans one page and greedily packs its paragraphs into chunks of
// at most maxWords words, preferring sentence boundaries and never splitting
// a word. seenSegments is document-wide: a paragraph whose normalized text
// was already consumed (duplicate OCR re-read) is dropped before packing, so
// duplicates cannot hide inside a merged chunk.
func (b *Builder) packPage(raw string, repeated map[string]struct{}, seenSegments map[string]struct{}) []string {
	cleaned := b.cleanPage(raw, repeated)

	var out []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current = nil
		}
	}

	for _, para := range splitParagraphs(cleaned) {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		paraHash := docModel.ContentHash(para)
		if _, dup := seenSegments[paraHash]; dup {
			continue
		}
		seenSegments[paraHash] = struct{}{}

		//pack consecutive paragraphs while they fit
		if len(current)+len(words) <= b.maxWords {
			current = append(current, words...)
			continue
		}
		flush()

		if len(words) <= b.maxWords {
			current = words
			continue
		}

		//oversized paragraph: fall back to sentence packing
		for _, sentence := range b.splitSentences(para) {
			sw := strings.Fields(sentence)
			if len(sw) == 0 {
				continue
			}
			if len(current)+len(sw) > b.maxWords {
				flush()
			}
			//a single sentence longer than the budget gets a hard word split
			for len(sw) > b.maxWords {
				out = append(out, strings.Join(sw[:b.maxWords], " "))
				sw = sw[b.maxWords:]
			}
			current = append(current, sw...)
		}
		flush()
	}
	flush()
	return out
}

func (b *Builder) cleanPage(raw string, repeated map[string]struct{}) string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if _, drop := repeated[docModel.NormalizeText(line)]; drop {
			continue
		}
		lines = append(lines, line)
	}
	s := strings.Join(lines, "\n")

	//strip control characters OCR output tends to carry
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)

	//collapse runs of the same punctuation ("....." -> ".")
	s = collapsePunctRuns(s)

	//drop isolated single non-letter tokens, typical scan speckle
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		cleaned := fields[:0]
		for _, f := range fields {
			runes := []rune(f)
			if len(runes) == 1 && !unicode.IsLetter(runes[0]) && !unicode.IsDigit(runes[0]) {
				continue
			}
			cleaned = append(cleaned, f)
		}
		kept = append(kept, strings.Join(cleaned, " "))
	}
	return strings.Join(kept, "\n")
}

// collapsePunctRuns reduces a run of three or more identical punctuation or
// symbol runes to a single one. Dotted leaders and dash rules in scanned
// tables of contents otherwise survive as chunks of their own.
func collapsePunctRuns(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	var prev rune
	runLen := 0
	flushRun := func() {
		if runLen >= 3 {
			out.WriteRune(prev)
		} else {
			for i := 0; i < runLen; i++ {
				out.WriteRune(prev)
			}
		}
		runLen = 0
	}
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			if runLen > 0 && r != prev {
				flushRun()
			}
			prev = r
			runLen++
			continue
		}
		if runLen > 0 {
			flushRun()
		}
		out.WriteRune(r)
	}
	if runLen > 0 {
		flushRun()
	}
	return out.String()
}

var paragraphRe = regexp.MustCompile(`\n\s*\n`)

func splitParagraphs(s string) []string {
	var paras []string
	for _, block := range paragraphRe.Split(s, -1) {
		if strings.TrimSpace(block) != "" {
			paras = append(paras, strings.Join(strings.Fields(block), " "))
		}
	}
	return paras
}

func (b *Builder) splitSentences(para string) []string {
	matches := b.sentenceRe.FindAllStringIndex(para, -1)
	if len(matches) == 0 {
		return []string{para}
	}
	var sentences []string
	last := 0
	for _, m := range matches {
		sentences = append(sentences, strings.TrimSpace(para[m[0]:m[1]]))
		last = m[1]
	}
	if rest := strings.TrimSpace(para[last:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// keep applies the informativeness filter: minimum word count, minimum
// alphabetic ratio, and not digits-only. Everything below is presumed OCR
// garbage.
func (b *Builder) keep(text string) bool {
	if len(strings.Fields(text)) < b.minWords {
		return false
	}
	var letters, total int
	digitsOnly := true
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) {
			letters++
			digitsOnly = false
		} else if !unicode.IsDigit(r) {
			digitsOnly = false
		}
	}
	if total == 0 || digitsOnly {
		return false
	}
	return float64(letters)/float64(total) >= b.minAlphaRatio
}
