package utcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// ChainStep defines one step in a Go-native UTCP tool chain. Transform,
// when set, is interpreted as an inline Go expression (via yaegi) that
// rewrites the step's call arguments from the previous step's result.
type ChainStep struct {
	ID          string                 `json:"id,omitempty"` // alias for this step
	ToolName    string                 `json:"tool_name"`
	Inputs      map[string]interface{} `json:"inputs,omitempty"`
	UsePrevious bool                   `json:"use_previous,omitempty"`
	Stream      bool                   `json:"stream,omitempty"`
	// Transform, when non-empty, is a Go expression evaluated with "prev"
	// bound to the previous step's result and "inputs" bound to this
	// step's static Inputs. A map value is merged over a copy of Inputs to
	// form the arguments passed to ToolName; any other value is placed
	// under the "previous" key. Transform applies whether or not
	// UsePrevious is set, and is ignored on the first step (there is no
	// "prev" yet).
	Transform string `json:"transform,omitempty"`
}

// ChainResult captures one step's outcome, keyed by its ID (or
// "step_<i>" with i the 0-based index if no ID was given) so later steps/callers can refer
// back to a specific step's output.
type ChainResult struct {
	StepID string
	Value  interface{}
	Err    error
}

// RunChain executes an ordered list of ChainSteps through the kernel,
// stopping at the first step that errors. From the second step on, a
// step with a Transform gets arguments built from the transform's value
// (see ChainStep.Transform); otherwise a step with UsePrevious=true
// receives its own Inputs plus the prior step's result under the key
// "previous".
func (c *Client) RunChain(ctx context.Context, steps []ChainStep) ([]ChainResult, error) {
	results := make([]ChainResult, 0, len(steps))
	var prev interface{}

	for i, step := range steps {
		id := step.ID
		if id == "" {
			id = fmt.Sprintf("step_%d", i)
		}

		args, err := c.buildChainArgs(step, prev, i > 0)
		if err != nil {
			results = append(results, ChainResult{StepID: id, Err: err})
			return results, err
		}

		var value interface{}
		if step.Stream {
			sr, err := c.CallToolStream(ctx, step.ToolName, args)
			if err != nil {
				results = append(results, ChainResult{StepID: id, Err: err})
				return results, err
			}
			value, err = drainStream(sr)
			if err != nil {
				results = append(results, ChainResult{StepID: id, Err: err})
				return results, err
			}
		} else {
			value, err = c.CallTool(ctx, step.ToolName, args)
			if err != nil {
				results = append(results, ChainResult{StepID: id, Err: err})
				return results, err
			}
		}

		results = append(results, ChainResult{StepID: id, Value: value})
		prev = value
	}
	return results, nil
}

// buildChainArgs assembles one step's call arguments, applying its
// yaegi Transform (if any) to the previous step's result first.
func (c *Client) buildChainArgs(step ChainStep, prev interface{}, havePrev bool) (map[string]interface{}, error) {
	args := make(map[string]interface{}, len(step.Inputs)+1)
	for k, v := range step.Inputs {
		args[k] = v
	}
	if !havePrev {
		return args, nil
	}
	if step.Transform != "" {
		transformed, err := evalTransform(step.Transform, prev, step.Inputs)
		if err != nil {
			return nil, fmt.Errorf("chain step %q transform: %w", step.ToolName, err)
		}
		if m, ok := transformed.(map[string]interface{}); ok {
			for k, v := range m {
				args[k] = v
			}
			return args, nil
		}
		args["previous"] = transformed
		return args, nil
	}
	if step.UsePrevious {
		args["previous"] = prev
	}
	return args, nil
}

// evalTransform interprets expr as a Go expression against "prev" and
// "inputs", predeclared as Go literals in the same REPL-style yaegi
// session (one i.Eval per declaration, the way an interpreter session
// accumulates top-level bindings).
func evalTransform(expr string, prev interface{}, inputs map[string]interface{}) (interface{}, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, err
	}
	// "var" (not ":=") so a literal "nil" prev -- a tool call that
	// returned no data -- still declares with a concrete type instead of
	// failing Go's untyped-nil short-declaration rule.
	if _, err := i.Eval(fmt.Sprintf("var prev interface{} = %s", toGoLiteral(prev))); err != nil {
		return nil, fmt.Errorf("binding prev: %w", err)
	}
	if _, err := i.Eval(fmt.Sprintf("var inputs map[string]interface{} = %s", toGoLiteral(inputs))); err != nil {
		return nil, fmt.Errorf("binding inputs: %w", err)
	}
	v, err := i.Eval(expr)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// toGoLiteral renders a decoded JSON-shaped value (map[string]any,
// []any, string, float64/int, bool, nil) as Go source text.
func toGoLiteral(v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		parts := make([]string, 0, len(val))
		for k, v2 := range val {
			parts = append(parts, fmt.Sprintf("%q: %s", k, toGoLiteral(v2)))
		}
		sort.Strings(parts)
		if len(parts) > 0 {
			return fmt.Sprintf("map[string]interface{}{%s,}", strings.Join(parts, ", "))
		}
		return "map[string]interface{}{}"
	case []interface{}:
		items := make([]string, len(val))
		for i := range val {
			items[i] = toGoLiteral(val[i])
		}
		return fmt.Sprintf("[]interface{}{%s}", strings.Join(items, ", "))
	case string:
		return fmt.Sprintf("%q", val)
	case float64, bool, int:
		return fmt.Sprintf("%v", val)
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%#v", val)
	}
}

// drainStream collects every chunk of a stream into a single ordered
// slice, for a chain step that wants one aggregate value out of a
// streaming tool call.
func drainStream(sr StreamResult) (interface{}, error) {
	var out []interface{}
	for {
		v, err := sr.Next()
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out, sr.Close()
}
