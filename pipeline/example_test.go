package pipeline_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/ragops/llm"
	"github.com/jonwraymond/ragops/pipeline"
	"github.com/jonwraymond/ragops/retrieval"
)

// fixedEmbedder returns the same vector for every text.
type fixedEmbedder struct{ vector []float32 }

func (e fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = e.vector
	}
	return out, nil
}

// scriptedGenerator answers every prompt with the same content.
type scriptedGenerator struct{ content string }

func (g scriptedGenerator) Generate(_ context.Context, _ llm.GenerationRequest) (*llm.GenerationResult, error) {
	return &llm.GenerationResult{Content: g.content}, nil
}

// downGenerator refuses every prompt.
type downGenerator struct{}

func (downGenerator) Generate(_ context.Context, _ llm.GenerationRequest) (*llm.GenerationResult, error) {
	return nil, errors.New("generation service unreachable")
}

func ExampleOrchestrator_Handle() {
	vs := retrieval.NewMemory()
	vs.Add(retrieval.Chunk{Text: "The race detector instruments memory accesses.", Source: "tools.md", Position: 2}, []float32{1, 0, 0})
	vs.Add(retrieval.Chunk{Text: "Goroutines multiplex onto OS threads.", Source: "sched.md", Position: 7}, []float32{0, 1, 0})

	o, err := pipeline.NewOrchestrator(pipeline.Deps{
		Embedder:    fixedEmbedder{vector: []float32{1, 0, 0}},
		Generator:   scriptedGenerator{content: "Memory accesses are instrumented at run time. [1]"},
		VectorStore: vs,
	}, pipeline.Config{TopK: 2})
	if err != nil {
		fmt.Println("construct:", err)
		return
	}

	result := o.Handle(context.Background(), pipeline.Request{Query: "how does the race detector work?"})
	fmt.Println("outcome:", result.Outcome)
	fmt.Println("answer:", result.Answer.Content)
	fmt.Println("citations:", result.Answer.Citations)
	fmt.Println("sources:", result.Answer.Sources)
	// Output:
	// outcome: success
	// answer: Memory accesses are instrumented at run time. [1]
	// citations: [1]
	// sources: [tools.md sched.md]
}

func ExampleOrchestrator_Handle_degraded() {
	vs := retrieval.NewMemory()
	vs.Add(retrieval.Chunk{Text: "The race detector instruments memory accesses.", Source: "tools.md", Position: 2}, []float32{1, 0, 0})

	o, err := pipeline.NewOrchestrator(pipeline.Deps{
		Embedder:    fixedEmbedder{vector: []float32{1, 0, 0}},
		Generator:   downGenerator{},
		VectorStore: vs,
	}, pipeline.Config{})
	if err != nil {
		fmt.Println("construct:", err)
		return
	}

	result := o.Handle(context.Background(), pipeline.Request{Query: "how does the race detector work?"})
	fmt.Println("outcome:", result.Outcome)
	fmt.Println("mode:", result.Answer.Mode)
	fmt.Println("reason:", result.Answer.Reason)
	// Output:
	// outcome: degraded
	// mode: degraded
	// reason: unavailable
}
