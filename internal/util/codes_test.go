package util

import (
	"strings"
	"testing"
)

func TestGenerateDeviceCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := GenerateDeviceCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != DeviceCodeLength {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		groups := strings.Split(code, "-")
		if len(groups) != 4 {
			t.Fatalf("code %q: expected 4 groups", code)
		}
		for _, g := range groups {
			if len(g) != 4 || strings.Trim(g, codeLetters) != "" {
				t.Fatalf("code %q: bad group %q", code, g)
			}
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
	}
}

func TestValidDeviceCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"2345-6789-ABCD-EFGH", true},
		{"JKLM-NPQR-STUV-WXYZ", true},
		{"2345-6789-ABCD-EFG", false},
		{"2345-6789-ABCD-EFGHJ", false},
		{"2345_6789-ABCD-EFGH", false},
		{"2345-6789-ABCD-EFGO", false},
		{"1345-6789-ABCD-EFGH", false},
		{"abcd-6789-ABCD-EFGH", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidDeviceCode(tt.code); got != tt.want {
			t.Fatalf("ValidDeviceCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}

	code, err := GenerateDeviceCode()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !ValidDeviceCode(code) {
		t.Fatalf("generated code %q is not valid", code)
	}
}
