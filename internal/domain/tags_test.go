package domain

import "testing"

func TestDeepMergeDisjointSubtrees(t *testing.T) {
	dst := Tags{"a": Tags{"b": 1}}
	src := Tags{"a": Tags{"c": 2}}
	got := DeepMerge(dst, src)
	a, ok := got["a"].(Tags)
	if !ok {
		t.Fatalf("a has type %T", got["a"])
	}
	if a["b"] != 1 || a["c"] != 2 {
		t.Fatalf("got %+v", a)
	}
}

func TestDeepMergeScalarRightWins(t *testing.T) {
	dst := Tags{"a": 1}
	src := Tags{"a": 2}
	got := DeepMerge(dst, src)
	if got["a"] != 2 {
		t.Fatalf("got %v, want 2", got["a"])
	}
}

func TestDeepMergeDoesNotMutateInputs(t *testing.T) {
	dst := Tags{"a": Tags{"b": 1}}
	src := Tags{"a": Tags{"c": 2}}
	_ = DeepMerge(dst, src)
	if _, exists := dst["a"].(Tags)["c"]; exists {
		t.Fatal("DeepMerge mutated dst")
	}
}

func TestSetNestedPath(t *testing.T) {
	var t0 Tags
	t1 := t0.Set([]string{"app", "name"}, "foo")
	t2 := t1.Set([]string{"app", "env"}, "prod")

	app, ok := t2["app"].(Tags)
	if !ok {
		t.Fatalf("app has type %T", t2["app"])
	}
	if app["name"] != "foo" || app["env"] != "prod" {
		t.Fatalf("got %+v", app)
	}
}
