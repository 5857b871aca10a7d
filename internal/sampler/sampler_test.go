package sampler

import "testing"

func TestAlwaysPasses(t *testing.T) {
	passed, meta := Always{}.Sample("anything")
	if !passed {
		t.Fatal("Always should always pass")
	}
	if len(meta) != 0 {
		t.Fatalf("Always should have empty metadata, got %+v", meta)
	}
}

func TestRatioBoundaries(t *testing.T) {
	if passed, _ := (Ratio{Ratio: 1}).Sample("x"); !passed {
		t.Error("ratio=1 should always pass")
	}
	if passed, meta := (Ratio{Ratio: 0}).Sample("x"); passed || meta != nil {
		t.Error("ratio=0 should always drop with nil metadata")
	}
}

func TestRatioDeterministic(t *testing.T) {
	r := Ratio{Ratio: 0.5}
	p1, _ := r.Sample("same message")
	p2, _ := r.Sample("same message")
	if p1 != p2 {
		t.Fatal("sampling the same message twice should give the same result")
	}
}

func TestParseRulesAndOverride(t *testing.T) {
	rs := ParseRules("healthcheck:0, debug:1", 0)
	if len(rs.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d: %+v", len(rs.Rules), rs.Rules)
	}
	if passed, _ := rs.Sample("a debug line"); !passed {
		t.Error("debug rule ratio=1 should pass")
	}
	if passed, _ := rs.Sample("a healthcheck ping"); passed {
		t.Error("healthcheck rule ratio=0 should drop")
	}
	if passed, _ := rs.Sample("unrelated"); passed {
		t.Error("default ratio=0 should drop unmatched messages")
	}
}

func TestParseRulesSkipsMalformed(t *testing.T) {
	rs := ParseRules("noratio,  :0.5, ok:0.25", 1)
	if len(rs.Rules) != 1 {
		t.Fatalf("expected 1 valid rule, got %d: %+v", len(rs.Rules), rs.Rules)
	}
	if rs.Rules[0].Substring != "ok" {
		t.Errorf("unexpected rule: %+v", rs.Rules[0])
	}
}
