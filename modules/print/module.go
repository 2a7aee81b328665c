package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/specialistvlad/bioflow/internal/ctxlog"
	"github.com/specialistvlad/bioflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives printed text. Defaults to os.Stdout.
	Out io.Writer
}

func (m *Module) out() io.Writer {
	if m.Out == nil {
		return os.Stdout
	}
	return m.Out
}

// Echo prints its arguments separated by spaces and returns the printed line.
func (m *Module) Echo(ctx context.Context, args []any) (any, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	line := strings.Join(parts, " ")
	ctxlog.FromContext(ctx).Info("Printing input")
	fmt.Fprintln(m.out(), line)
	return line, nil
}

// Value prints an object one key per line, sorted by key.
func (m *Module) Value(ctx context.Context, args []any) (any, error) {
	ctxlog.FromContext(ctx).Info("Printing input")
	if len(args) == 0 || args[0] == nil {
		fmt.Fprintln(m.out(), "      (null)")
		return nil, nil
	}
	value, err := registry.Map(args, 0)
	if err != nil {
		return nil, err
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(value))
	for k := range value {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(m.out(), "      %s = %q\n", k, fmt.Sprint(value[k]))
	}
	return len(keys), nil
}

// Register registers the module's functions.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFunction("print", "echo", m.Echo)
	r.RegisterFunction("print", "value", m.Value)
}
