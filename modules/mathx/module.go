// Package mathx provides small arithmetic functions, mostly useful to check
// that an environment answers calls.
package mathx

import (
	"context"

	"github.com/specialistvlad/bioflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Add returns args[0] + args[1].
func Add(_ context.Context, args []any) (any, error) {
	a, err := registry.Number(args, 0)
	if err != nil {
		return nil, err
	}
	b, err := registry.Number(args, 1)
	if err != nil {
		return nil, err
	}
	return a + b, nil
}

// Sum adds all arguments.
func Sum(_ context.Context, args []any) (any, error) {
	total := 0.0
	for i := range args {
		n, err := registry.Number(args, i)
		if err != nil {
			return nil, err
		}
		total += n
	}
	return total, nil
}

// Register registers the module's functions.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFunction("mathx", "add", Add)
	r.RegisterFunction("mathx", "sum", Sum)
}
