package transform

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
)

const dotHeader = `digraph pipeline {
    graph [fontname = "monospace" rankdir=LR];
    node [fontname = "courier new" shape=box style="rounded"];
    edge [fontname = "courier new"];
`

// PipelineDOT renders a stage chain as a graphviz digraph: payload in on the
// left, stages in apply order, transformed payload on the right. The edges
// are double-headed because ParseInput walks the same chain right to left.
func PipelineDOT(stages []string) string {
	var b strings.Builder
	b.WriteString(dotHeader)
	b.WriteString("    \"in\" [shape=plaintext label=\"payload\"];\n")
	b.WriteString("    \"out\" [shape=plaintext label=\"payload'\"];\n")
	prev := "in"
	for i, stage := range stages {
		id := fmt.Sprintf("s%d", i)
		fmt.Fprintf(&b, "    %q [label=%q];\n", id, stage)
		fmt.Fprintf(&b, "    %q -> %q [dir=both];\n", prev, id)
		prev = id
	}
	fmt.Fprintf(&b, "    %q -> \"out\" [dir=both];\n", prev)
	b.WriteString("}\n")
	return b.String()
}

// RenderPipelineSVG renders the stage chain to an SVG image.
func RenderPipelineSVG(ctx context.Context, stages []string) ([]byte, error) {
	graph, err := graphviz.ParseBytes([]byte(PipelineDOT(stages)))
	if err != nil {
		return nil, err
	}
	g, err := graphviz.New(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := g.Render(ctx, graph, graphviz.SVG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
