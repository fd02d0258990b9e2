package shaders

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

//go:embed common.wgsl
var commonWGSL string

//go:embed subdivide.wgsl
var subdivideWGSL string

//go:embed batcher.wgsl
var batcherWGSL string

//go:embed render.wgsl
var renderWGSL string

// Each program is compiled together with the shared declarations.
var (
	SubdivideWGSL = commonWGSL + subdivideWGSL
	BatcherWGSL   = commonWGSL + batcherWGSL
	RenderWGSL    = commonWGSL + renderWGSL
)

// Program is a named WGSL source.
type Program struct {
	Name   string
	Source string
}

// Programs lists every program the pipeline builds.
func Programs() []Program {
	return []Program{
		{Name: "subdivide", Source: SubdivideWGSL},
		{Name: "batcher", Source: BatcherWGSL},
		{Name: "render", Source: RenderWGSL},
	}
}

// Compile translates a program to SPIR-V.
func Compile(p Program) ([]byte, error) {
	spirv, err := naga.Compile(p.Source)
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", p.Name, err)
	}
	return spirv, nil
}

// Validate compiles every program and reports the first failure. It gives
// readable diagnostics before the driver sees the source.
func Validate() error {
	for _, p := range Programs() {
		if _, err := Compile(p); err != nil {
			return err
		}
	}
	return nil
}
