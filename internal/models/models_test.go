package models

import "testing"

func TestKnownVendor(t *testing.T) {
	for _, vendor := range AllVendors() {
		if !KnownVendor(string(vendor)) {
			t.Errorf("KnownVendor(%q) = false, want true", vendor)
		}
	}

	for _, name := range []string{"", "azure", "OpenAI", "gpt-4o"} {
		if KnownVendor(name) {
			t.Errorf("KnownVendor(%q) = true, want false", name)
		}
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []Role{RoleSystem, RoleUser, RoleAssistant} {
		if !ValidRole(role) {
			t.Errorf("ValidRole(%q) = false, want true", role)
		}
	}
	if ValidRole(Role("tool")) {
		t.Error("ValidRole(\"tool\") = true, want false")
	}
}

func TestClampTemperature(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-1, 0},
		{0, 0},
		{0.7, 0.7},
		{2, 2},
		{2.5, 2},
		{100, 2},
	}

	for _, tt := range tests {
		if got := ClampTemperature(tt.in); got != tt.want {
			t.Errorf("ClampTemperature(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
