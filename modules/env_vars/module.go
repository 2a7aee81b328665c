package env_vars

import (
	"context"
	"os"
	"strings"

	"github.com/specialistvlad/bioflow/internal/registry"
)

// Module implements the registry.Module interface for this package. Inside a
// worker it reports the activated environment, which is how a pipeline checks
// what PATH and CONDA_PREFIX a tool actually sees.
type Module struct{}

// All returns every environment variable of the current process.
func All(ctx context.Context, args []any) (any, error) {
	envMap := make(map[string]any)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			envMap[pair[0]] = pair[1]
		}
	}
	return envMap, nil
}

// Get returns the value of one variable, or nil when it is unset.
func Get(ctx context.Context, args []any) (any, error) {
	name, err := registry.String(args, 0)
	if err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}
	return nil, nil
}

// Register registers the module's functions.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFunction("env_vars", "all", All)
	r.RegisterFunction("env_vars", "get", Get)
}
