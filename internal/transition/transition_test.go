package transition

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var pipelineRules = []Rule{
	{FromStage: "nda", ToStage: "closing", Enabled: false},
	{FromStage: "analysis", ToStage: "proposal", Enabled: true},
}

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		rules    []Rule
		want     bool
	}{
		{"denied pair", "nda", "closing", pipelineRules, false},
		{"explicitly enabled", "analysis", "proposal", pipelineRules, true},
		{"reverse of denied pair has no rule", "closing", "nda", pipelineRules, true},
		{"no rule", "prospecting", "nda", pipelineRules, true},
		{"empty table", "nda", "closing", nil, true},
		{"unknown stages", "foo", "bar", pipelineRules, true},
		{"case sensitive", "NDA", "closing", pipelineRules, true},
		{"self transition", "nda", "nda", nil, true},
		{"self pair disabled", "nda", "nda", []Rule{{FromStage: "nda", ToStage: "nda", Enabled: false}}, true},
		{"first match wins", "a", "b", []Rule{{FromStage: "a", ToStage: "b", Enabled: false}, {FromStage: "a", ToStage: "b", Enabled: true}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAllowed(tt.from, tt.to, tt.rules); got != tt.want {
				t.Errorf("IsAllowed(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
			if got := NewRuleSet(tt.rules).Allowed(tt.from, tt.to); got != tt.want {
				t.Errorf("RuleSet.Allowed(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestZeroRuleSetAllowsAll(t *testing.T) {
	var s RuleSet
	if !s.Allowed("nda", "closing") {
		t.Error("zero RuleSet should allow")
	}
	if s.Len() != 0 {
		t.Errorf("expected 0 rules, got %d", s.Len())
	}
}

func TestValidateRules(t *testing.T) {
	errs := ValidateRules([]Rule{
		{FromStage: "nda", ToStage: "closing"},
		{FromStage: "", ToStage: "closing"},
		{FromStage: "nda", ToStage: "closing", Enabled: true},
	})
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if !strings.Contains(errs[0], "required") {
		t.Errorf("unexpected first error %q", errs[0])
	}
	if !strings.Contains(errs[1], "duplicate of rule 0") {
		t.Errorf("unexpected second error %q", errs[1])
	}

	if errs := ValidateRules(pipelineRules); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestMatrix(t *testing.T) {
	stages := []string{"prospecting", "nda", "closing"}
	got := Matrix(stages, NewRuleSet(pipelineRules))

	want := map[string]map[string]bool{
		"prospecting": {"prospecting": true, "nda": true, "closing": true},
		"nda":         {"prospecting": true, "nda": true, "closing": false},
		"closing":     {"prospecting": true, "nda": true, "closing": true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Matrix mismatch (-want +got):\n%s", diff)
	}
}
