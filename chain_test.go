package utcp

import (
	"errors"
	"testing"
)

func TestToGoLiteral(t *testing.T) {
	cases := map[string]interface{}{
		`"hi"`: "hi",
		"3.5":  3.5,
		"true": true,
		"nil":  nil,
	}
	for want, in := range cases {
		if got := toGoLiteral(in); got != want {
			t.Fatalf("toGoLiteral(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestToGoLiteral_MapIsDeterministic(t *testing.T) {
	m := map[string]interface{}{"b": 1.0, "a": "x"}
	first := toGoLiteral(m)
	second := toGoLiteral(m)
	if first != second {
		t.Fatalf("toGoLiteral must render maps deterministically: %q vs %q", first, second)
	}
}

func TestEvalTransform_PassesThroughPrev(t *testing.T) {
	// 1.5 (not a whole number) so its "%v" rendering keeps a decimal point
	// and yaegi infers float64 rather than defaulting the literal to int.
	v, err := evalTransform("prev", map[string]interface{}{"n": 1.5}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map[string]interface{}, got %T", v)
	}
	if m["n"] != 1.5 {
		t.Fatalf("unexpected value: %+v", m)
	}
}

func TestEvalTransform_NilPrevDoesNotFailToDeclare(t *testing.T) {
	v, err := evalTransform("inputs", nil, map[string]interface{}{"k": "v"})
	if err != nil {
		t.Fatalf("a nil prev must still type-check as \"var prev interface{} = nil\": %v", err)
	}
	m, ok := v.(map[string]interface{})
	if !ok || m["k"] != "v" {
		t.Fatalf("unexpected inputs binding: %+v", v)
	}
}

func TestBuildChainArgs_NoTransformUsesPrevious(t *testing.T) {
	c := &Client{}
	step := ChainStep{ToolName: "next", Inputs: map[string]interface{}{"k": "v"}, UsePrevious: true}
	args, err := c.buildChainArgs(step, "prior-result", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args["k"] != "v" || args["previous"] != "prior-result" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestBuildChainArgs_FirstStepIgnoresUsePrevious(t *testing.T) {
	c := &Client{}
	step := ChainStep{ToolName: "first", Inputs: map[string]interface{}{"k": "v"}, UsePrevious: true}
	args, err := c.buildChainArgs(step, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := args["previous"]; ok {
		t.Fatalf("first step must not see a \"previous\" key: %+v", args)
	}
}

type fakeStreamResult struct {
	items []interface{}
	i     int
}

func (f *fakeStreamResult) Next() (interface{}, error) {
	if f.i >= len(f.items) {
		return nil, errEOF
	}
	v := f.items[f.i]
	f.i++
	return v, nil
}
func (f *fakeStreamResult) Close() error { return nil }

var errEOF = errors.New("EOF")

func TestDrainStream(t *testing.T) {
	sr := &fakeStreamResult{items: []interface{}{"a", "b", "c"}}
	v, err := drainStream(sr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := v.([]interface{})
	if len(out) != 3 || out[0] != "a" || out[2] != "c" {
		t.Fatalf("unexpected drained output: %+v", out)
	}
}
