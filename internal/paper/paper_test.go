package paper

import (
	"encoding/json"
	"testing"
)

func TestMetadata_Normalize(t *testing.T) {
	m := Metadata{Title: "Attention", Methods: []string{"transformer"}}.Normalize()

	lists := map[string][]string{
		"authors":            m.Authors,
		"datasets":           m.Datasets,
		"metrics":            m.Metrics,
		"applications":       m.Applications,
		"limitations":        m.Limitations,
		"areasOfImprovement": m.AreasOfImprovement,
	}
	for name, l := range lists {
		if l == nil {
			t.Errorf("%s is nil after Normalize()", name)
		}
	}
	if len(m.Methods) != 1 || m.Methods[0] != "transformer" {
		t.Errorf("Methods = %v, want [transformer]", m.Methods)
	}
}

func TestMetadata_NormalizeEncodesEmptyArrays(t *testing.T) {
	data, err := json.Marshal(Metadata{}.Normalize())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"title":"","summary":"","authors":[],"link":"","datasets":[],"metrics":[],"methods":[],"applications":[],"limitations":[],"areasOfImprovement":[]}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestMetadata_IsEmpty(t *testing.T) {
	tests := []struct {
		name string
		m    Metadata
		want bool
	}{
		{"zero value", Metadata{}, true},
		{"normalized zero value", Metadata{}.Normalize(), true},
		{"title only", Metadata{Title: "x"}, false},
		{"one limitation", Metadata{Limitations: []string{"small sample"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChunkID(t *testing.T) {
	if got := ChunkID("abc", 2); got != "abc_2" {
		t.Errorf("ChunkID() = %q, want %q", got, "abc_2")
	}
}
