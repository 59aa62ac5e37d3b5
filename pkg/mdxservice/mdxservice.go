// Package mdxservice provides a trivial synchronous stub MdxCompiler
// (§4.15): it is intentionally not a real MDX compiler (out of scope
// per §1 of the specification) and exists only so pkg/mdxlifecycle's
// worker-mode path has something to call from tests and the CLI demo.
package mdxservice

import (
	"context"
	"fmt"

	"github.com/parsehook/mdstream/pkg/wire"
)

// Stub wraps an MDX source body in a constant module shape instead of
// actually compiling it.
type Stub struct{}

// New builds a Stub compiler.
func New() *Stub { return &Stub{} }

// Compile returns source wrapped as a literal render call; it never
// fails except on context cancellation.
func (Stub) Compile(ctx context.Context, source string) (wire.MdxCompileResult, error) {
	if err := ctx.Err(); err != nil {
		return wire.MdxCompileResult{}, err
	}
	code := fmt.Sprintf("function MDXContent(){return %q}", source)
	return wire.MdxCompileResult{Code: code, Deps: nil}, nil
}
