package retrieval_test

import (
	"context"
	"fmt"

	"github.com/jonwraymond/ragops/retrieval"
)

func ExampleMemory() {
	store := retrieval.NewMemory()
	_ = store.Add(retrieval.Chunk{Text: "low shelf boost", Source: "eq.pdf", Position: 0}, []float32{1, 0})
	_ = store.Add(retrieval.Chunk{Text: "reverb tails", Source: "fx.pdf", Position: 3}, []float32{0, 1})

	chunks, _ := store.Search(context.Background(), []float32{1, 0}, 2)
	for _, c := range chunks {
		fmt.Printf("%s (%s) score=%.2f\n", c.Text, c.Source, c.Score)
	}
	// Output:
	// low shelf boost (eq.pdf) score=1.00
	// reverb tails (fx.pdf) score=0.50
}

func ExampleNoopReranker() {
	chunks := []retrieval.Chunk{
		{Text: "first", Score: 0.9},
		{Text: "second", Score: 0.8},
	}

	reranked, _ := retrieval.NoopReranker{}.Rerank(context.Background(), "query", chunks)
	for _, c := range reranked {
		fmt.Println(c.Text)
	}
	// Output:
	// first
	// second
}
