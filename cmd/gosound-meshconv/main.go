// Command gosound-meshconv round-trips a preprocessed mesh container
// through meshfmt for inspection: load, report a summary, and optionally
// re-save (exercising the encode path against the same file).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/gosound/meshfmt"
)

func main() {
	input := flag.String("in", "", "input mesh container path")
	output := flag.String("out", "", "if set, re-save the loaded mesh to this path")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "gosound-meshconv: -in is required")
		os.Exit(2)
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gosound-meshconv: reading %s: %v\n", *input, err)
		os.Exit(1)
	}

	mesh, err := meshfmt.Load(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gosound-meshconv: loading %s: %v\n", *input, err)
		os.Exit(1)
	}

	fmt.Printf("%s: %d vertices, %d triangles, %d materials, %d diffraction edges, %d neighbor entries\n",
		*input, len(mesh.Vertices), len(mesh.Triangles), len(mesh.Materials), len(mesh.Edges), len(mesh.Neighbors))

	if *output == "" {
		return
	}

	out, err := meshfmt.Save(mesh)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gosound-meshconv: re-encoding: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*output, out, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "gosound-meshconv: writing %s: %v\n", *output, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%d bytes)\n", *output, len(out))
}
