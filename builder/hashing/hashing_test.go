package hashing

import (
	"testing"

	"github.com/spf13/afero"
)

func TestHashBytesStable(t *testing.T) {
	a := HashBytes([]byte("hello"))
	b := HashBytes([]byte("hello"))
	if a != b {
		t.Errorf("same bytes hashed differently: %s vs %s", a, b)
	}
	if len(a) != HashLen {
		t.Errorf("expected %d hex chars, got %d", HashLen, len(a))
	}
	if HashBytes([]byte("hello")) == HashBytes([]byte("world")) {
		t.Error("different bytes produced the same hash")
	}
}

func TestHashFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/f.txt", []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}
	h, err := HashFile(fs, "/f.txt")
	if err != nil {
		t.Fatal(err)
	}
	if h != HashBytes([]byte("content")) {
		t.Errorf("HashFile disagrees with HashBytes: %s vs %s", h, HashBytes([]byte("content")))
	}
	if _, err := HashFile(fs, "/missing.txt"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFingerprintLength(t *testing.T) {
	fp := Fingerprint([]byte("body { margin: 0; }"))
	if len(fp) != FingerprintLen {
		t.Errorf("expected %d hex chars, got %q", FingerprintLen, fp)
	}
}

func TestHashMappingKeyOrderIndependent(t *testing.T) {
	a := map[string]interface{}{"title": "x", "tags": []interface{}{"a", "b"}, "n": int64(3)}
	b := map[string]interface{}{"n": int64(3), "title": "x", "tags": []interface{}{"a", "b"}}
	if HashMapping(a) != HashMapping(b) {
		t.Error("key order changed the mapping hash")
	}
}

func TestHashMappingDistinguishesTypes(t *testing.T) {
	tests := []struct {
		name string
		a, b map[string]interface{}
	}{
		{"string vs int", map[string]interface{}{"k": "1"}, map[string]interface{}{"k": int64(1)}},
		{"bool vs string", map[string]interface{}{"k": true}, map[string]interface{}{"k": "true"}},
		{"nil vs empty string", map[string]interface{}{"k": nil}, map[string]interface{}{"k": ""}},
		{"nested value change", map[string]interface{}{"m": map[string]interface{}{"x": int64(1)}},
			map[string]interface{}{"m": map[string]interface{}{"x": int64(2)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if HashMapping(tt.a) == HashMapping(tt.b) {
				t.Errorf("maps %v and %v hashed identically", tt.a, tt.b)
			}
		})
	}
}

func TestHashMappingIntegralFloat(t *testing.T) {
	a := map[string]interface{}{"weight": float64(3)}
	b := map[string]interface{}{"weight": int64(3)}
	if HashMapping(a) != HashMapping(b) {
		t.Error("integral float and int should hash identically (YAML/TOML decoder variance)")
	}
}
