package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/dsl"
)

// NewVisualizeCmd создаёт команду визуализации flow.
func NewVisualizeCmd(outputFn func() *Output) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "visualize FILE",
		Short: "Render a flow DSL file as a Mermaid or DOT diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read flow file: %w", err)
			}

			def, err := dsl.Parse(string(source))
			if err != nil {
				return err
			}

			switch format {
			case "mermaid":
				out.Raw(renderMermaid(def))
			case "dot":
				out.Raw(renderDOT(def))
			default:
				return fmt.Errorf("unknown format %q, expected mermaid or dot", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "mermaid", "Output format: mermaid or dot")

	return cmd
}

// renderMermaid строит flowchart-диаграмму Mermaid.
func renderMermaid(def *domain.FlowDefinition) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	for _, edge := range def.Edges {
		for _, target := range edge.Targets {
			fmt.Fprintf(&b, "    %s --> %s\n", edge.Source, target)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderDOT строит диаграмму в формате Graphviz DOT.
func renderDOT(def *domain.FlowDefinition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", def.Name)
	b.WriteString("    rankdir=LR;\n")
	b.WriteString("    node [shape=box];\n")
	for _, edge := range def.Edges {
		for _, target := range edge.Targets {
			fmt.Fprintf(&b, "    %q -> %q;\n", edge.Source, target)
		}
	}
	b.WriteString("}")
	return b.String()
}
