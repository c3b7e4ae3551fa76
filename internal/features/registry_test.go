package features

import "testing"

func TestLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"camelCaseName", "Camel Case Name"},
		{"danceability", "Danceability"},
		{"energy", "Energy"},
		{"Tempo", "Tempo"},
		{"timeSignature", "Time Signature"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Label(tt.in); got != tt.want {
			t.Errorf("Label(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegistryStep(t *testing.T) {
	r := NewRegistry([]string{"danceability", "energy", "valence"})

	if got := r.Step("energy", 1); got != "valence" {
		t.Errorf("Step(energy, 1) = %q, want valence", got)
	}
	if got := r.Step("valence", 1); got != "danceability" {
		t.Errorf("Step(valence, 1) = %q, want danceability (wrap)", got)
	}
	if got := r.Step("danceability", -1); got != "valence" {
		t.Errorf("Step(danceability, -1) = %q, want valence (wrap)", got)
	}
	if got := r.Step("tempo", 1); got != "danceability" {
		t.Errorf("Step(unknown) = %q, want first feature", got)
	}
}

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry([]string{"danceability", "energy"})
	got := r.Defaults(3)
	want := []string{"danceability", "energy", "danceability"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Defaults(3)[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	empty := NewRegistry(nil)
	if d := empty.Defaults(2); d[0] != "" || d[1] != "" {
		t.Errorf("Defaults on empty registry = %v, want empty names", d)
	}
}

func TestRegistryDedup(t *testing.T) {
	r := NewRegistry([]string{"energy", "energy", "", "valence"})
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	if !r.Has("valence") || r.Has("") {
		t.Error("Has() mismatch after dedup")
	}
	labels := r.Labels()
	if labels[0] != "Energy" || labels[1] != "Valence" {
		t.Errorf("Labels() = %v", labels)
	}
}
