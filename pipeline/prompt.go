package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jonwraymond/ragops/degrade"
	"github.com/jonwraymond/ragops/retrieval"
)

// defaultSystem primes the generator for grounded, citable answers.
const defaultSystem = "You answer questions using only the numbered context passages. " +
	"Cite every passage you draw on with its bracketed number, like [2]. " +
	"If the context does not contain the answer, say so."

// buildPrompt lays the retrieved chunks out as a numbered context
// block followed by the question. Numbering starts at [1] and matches
// the degraded builder's, so a citation index means the same chunk on
// every path.
func buildPrompt(query string, chunks []retrieval.Chunk, chunkChars int) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, c.Source)
		if c.Page > 0 {
			fmt.Fprintf(&b, " (page %d)", c.Page)
		}
		b.WriteString("\n")
		b.WriteString(degrade.Truncate(c.Text, chunkChars))
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	return b.String()
}

// citationPattern matches bracketed context references like [3].
var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// extractCitations pulls bracketed indices out of generated content.
// In-range indices are returned once each in order of first
// appearance; out-of-range ones are collected separately so the
// caller can report them as a warning.
func extractCitations(content string, sources int) (cited, outOfRange []int) {
	cited = []int{}
	seen := make(map[int]bool)
	for _, match := range citationPattern.FindAllStringSubmatch(content, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		if n >= 1 && n <= sources {
			cited = append(cited, n)
		} else {
			outOfRange = append(outOfRange, n)
		}
	}
	return cited, outOfRange
}

// sourceList returns each chunk's source in context order, so citation
// [N] resolves to the returned slice's element N-1.
func sourceList(chunks []retrieval.Chunk) []string {
	sources := make([]string, len(chunks))
	for i, c := range chunks {
		sources[i] = c.Source
	}
	return sources
}

// cacheTags derives the invalidation tags for an answer: the distinct
// sources it cites, or every retrieved source when it cites none, so
// the entry always disappears when its material is re-ingested.
func cacheTags(chunks []retrieval.Chunk, citations []int) []string {
	indices := citations
	if len(indices) == 0 {
		indices = make([]int, len(chunks))
		for i := range chunks {
			indices[i] = i + 1
		}
	}

	seen := make(map[string]bool)
	var tags []string
	for _, n := range indices {
		if n < 1 || n > len(chunks) {
			continue
		}
		source := chunks[n-1].Source
		if !seen[source] {
			seen[source] = true
			tags = append(tags, source)
		}
	}
	return tags
}
