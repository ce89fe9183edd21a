package cellscope

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jward/cellscope/internal/scope"
	"github.com/jward/cellscope/internal/syntax"
)

// benchSource returns a cell of n small functions with loops, lambdas and
// comprehensions.
func benchSource(n int) string {
	var b strings.Builder
	b.WriteString("using LinearAlgebra\n\n")
	for i := range n {
		fmt.Fprintf(&b, `function step%d(xs::Vector{T}, k = 2; scale = 1.0) where T
    acc = zero(T)
    for (i, x) in enumerate(xs)
        acc += scale * x^k
    end
    ys = [y * acc for y in xs if y > 0]
    map(ys) do y
        y / norm(ys)
    end
end

`, i)
	}
	b.WriteString("total = sum(step0(rand(10)))\n")
	return b.String()
}

func BenchmarkExplore(b *testing.B) {
	tree, err := syntax.Default().ParseString(benchSource(50))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for b.Loop() {
		if _, err := scope.Explore(tree); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSetCell_Unchanged(b *testing.B) {
	ctx := context.Background()
	e := New()
	defer e.Close()
	src := []byte(benchSource(50))
	if _, err := e.SetCell(ctx, "bench", src); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for b.Loop() {
		if _, err := e.SetCell(ctx, "bench", src); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSetCell_Edit(b *testing.B) {
	ctx := context.Background()
	e := New()
	defer e.Close()
	srcs := [][]byte{[]byte(benchSource(50)), []byte(benchSource(50) + "extra = 1\n")}
	i := 0
	b.ResetTimer()
	for b.Loop() {
		if _, err := e.SetCell(ctx, "bench", srcs[i%2]); err != nil {
			b.Fatal(err)
		}
		i++
	}
}

func BenchmarkLoadFiles(b *testing.B) {
	paths := notebookPaths(b)
	for b.Loop() {
		e := New()
		if err := e.LoadFiles(context.Background(), paths); err != nil {
			b.Fatal(err)
		}
		e.Close()
	}
}
