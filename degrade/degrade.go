package degrade

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jonwraymond/ragops/retrieval"
)

// Mode marks every response produced by this package.
const Mode = "degraded"

// maxChunkChars caps how much of each passage a degraded answer
// quotes. Longer passages are cut at a word boundary.
const maxChunkChars = 480

// Reason codes why generation was skipped. The preamble of the
// degraded answer is chosen by reason; unknown reasons fall back to
// the generic wording.
type Reason string

const (
	// ReasonCircuitOpen means the generation breaker was open.
	ReasonCircuitOpen Reason = "circuit_open"
	// ReasonTimeout means generation did not answer in time.
	ReasonTimeout Reason = "timeout"
	// ReasonUnavailable covers every other generation failure.
	ReasonUnavailable Reason = "unavailable"
)

var preambles = map[Reason]string{
	ReasonCircuitOpen: "The answer generator is temporarily unavailable and cooling down. The most relevant retrieved material is shown instead:",
	ReasonTimeout:     "The answer generator did not respond in time. The most relevant retrieved material is shown instead:",
	ReasonUnavailable: "An answer could not be generated right now. The most relevant retrieved material is shown instead:",
}

// Response is a synthetic answer assembled without the generator.
type Response struct {
	// Answer is the preamble followed by the numbered source excerpts.
	Answer string

	// Citations indexes the quoted chunks 1..N in input order.
	Citations []int

	// Mode is always "degraded".
	Mode string

	// Reason is the code Build was called with.
	Reason Reason
}

// Build assembles a degraded response from the chunks retrieval
// produced before generation failed. It never fails and is
// deterministic for identical input.
func Build(query string, chunks []retrieval.Chunk, reason Reason) Response {
	preamble, ok := preambles[reason]
	if !ok {
		preamble = preambles[ReasonUnavailable]
	}

	if len(chunks) == 0 {
		return Response{
			Answer: fmt.Sprintf("%s\n\nNo relevant material was found for %q. Try rephrasing the question or ask again once the service recovers.",
				preamble, query),
			Citations: []int{},
			Mode:      Mode,
			Reason:    reason,
		}
	}

	var b strings.Builder
	b.WriteString(preamble)
	citations := make([]int, len(chunks))
	for i, c := range chunks {
		citations[i] = i + 1
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "[%d] %s", i+1, c.Source)
		if c.Page > 0 {
			fmt.Fprintf(&b, " (page %d, relevance %.2f)", c.Page, c.Score)
		} else {
			fmt.Fprintf(&b, " (relevance %.2f)", c.Score)
		}
		b.WriteString("\n")
		b.WriteString(Truncate(c.Text, maxChunkChars))
	}

	return Response{
		Answer:    b.String(),
		Citations: citations,
		Mode:      Mode,
		Reason:    reason,
	}
}

// Truncate cuts text to at most limit bytes at the nearest preceding
// word boundary and marks the cut with an ellipsis. Text within the
// limit is returned unchanged. The prompt builder uses the same cut so
// generated and degraded answers quote sources consistently.
func Truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	} else {
		// No word boundary to fall back to. Trim any split rune so
		// the hard cut stays valid UTF-8.
		for len(cut) > 0 && !utf8.ValidString(cut) {
			cut = cut[:len(cut)-1]
		}
	}
	return strings.TrimRight(cut, " ") + "..."
}
