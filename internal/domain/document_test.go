package domain

import (
	"errors"
	"testing"
)

func TestValidCPF(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"52998224725", true},
		{"529.982.247-25", true},
		{"52998224724", false},
		{"11111111111", false},
		{"5299822472", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidCPF(tt.in); got != tt.want {
			t.Errorf("ValidCPF(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidCNPJ(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"11222333000181", true},
		{"11.222.333/0001-81", true},
		{"11222333000182", false},
		{"00000000000000", false},
		{"1122233300018", false},
	}
	for _, tt := range tests {
		if got := ValidCNPJ(tt.in); got != tt.want {
			t.Errorf("ValidCNPJ(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOnlyDigits(t *testing.T) {
	if got := OnlyDigits("(11) 98765-4321"); got != "11987654321" {
		t.Errorf("OnlyDigits = %q", got)
	}
}

func TestInvalid(t *testing.T) {
	err := Invalid(errors.New("name is required"))
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected ErrValidation")
	}
	if err.Error() != "validation: name is required" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if Invalid(nil) != nil {
		t.Error("Invalid(nil) should be nil")
	}
}
