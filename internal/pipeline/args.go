package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// resultsRoot is the variable through which args reach upstream results:
// task.<id>.result.
const resultsRoot = "task"

// references returns the ids of the tasks whose results expr uses.
func references(expr hcl.Expression) ([]string, error) {
	if expr == nil {
		return nil, nil
	}
	var ids []string
	seen := make(map[string]struct{})
	for _, traversal := range expr.Variables() {
		if traversal.RootName() != resultsRoot {
			return nil, fmt.Errorf("unknown variable '%s' in args", traversal.RootName())
		}
		if len(traversal) < 3 {
			return nil, fmt.Errorf("reference to a task result must have the form task.<id>.result")
		}
		id, ok := traversal[1].(hcl.TraverseAttr)
		if !ok {
			return nil, fmt.Errorf("reference to a task result must have the form task.<id>.result")
		}
		field, ok := traversal[2].(hcl.TraverseAttr)
		if !ok || field.Name != "result" {
			return nil, fmt.Errorf("task '%s' only exposes 'result'", id.Name)
		}
		if _, dup := seen[id.Name]; dup {
			continue
		}
		seen[id.Name] = struct{}{}
		ids = append(ids, id.Name)
	}
	return ids, nil
}

// ResolveArgs evaluates the args of t. Args that reference upstream tasks
// read their results from results; a missing result evaluates to null.
func (t *Task) ResolveArgs(results map[string]any) ([]any, error) {
	if len(t.refs) == 0 {
		return t.Args, nil
	}
	tasks := make(map[string]cty.Value, len(t.refs))
	for _, id := range t.refs {
		val := cty.NullVal(cty.DynamicPseudoType)
		if r, ok := results[id]; ok && r != nil {
			v, err := toCty(r)
			if err != nil {
				return nil, fmt.Errorf("result of task '%s': %w", id, err)
			}
			val = v
		}
		tasks[id] = cty.ObjectVal(map[string]cty.Value{"result": val})
	}
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{resultsRoot: cty.ObjectVal(tasks)},
	}
	args, err := evaluateArgs(t.argsExpr, evalCtx)
	if err != nil {
		return nil, fmt.Errorf("task '%s': %w", t.ID, err)
	}
	return args, nil
}

// evaluateArgs evaluates the args list and converts it to plain Go values:
// strings, float64 numbers, bools, nil, []any and map[string]any.
func evaluateArgs(expr hcl.Expression, evalCtx *hcl.EvalContext) ([]any, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid args: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if !ty.IsTupleType() && !ty.IsListType() {
		return nil, fmt.Errorf("args must be a list, got %s", ty.FriendlyName())
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("args must be known values")
	}

	v, err := fromCty(val)
	if err != nil {
		return nil, fmt.Errorf("failed to convert args: %w", err)
	}
	return v.([]any), nil
}

// fromCty converts a known cty value into plain Go values. Nulls of any type
// become nil.
func fromCty(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f, nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty.IsListType(), ty.IsSetType(), ty.IsTupleType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			v, err := fromCty(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case ty.IsMapType(), ty.IsObjectType():
		out := make(map[string]any, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			v, err := fromCty(ev)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value of type %s", ty.FriendlyName())
}

// toCty converts a JSON-shaped Go value into a cty value.
func toCty(v any) (cty.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return cty.NilVal, err
	}
	ty, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return cty.NilVal, err
	}
	return ctyjson.Unmarshal(raw, ty)
}
