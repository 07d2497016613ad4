package state

import "testing"

func TestAll(t *testing.T) {
	all := All()
	if len(all) != 27 {
		t.Fatalf("expected 27 states, got %d", len(all))
	}
	if all[0].Code != "AC" || all[len(all)-1].Code != "TO" {
		t.Errorf("unexpected order: first=%s last=%s", all[0].Code, all[len(all)-1].Code)
	}
}

func TestValid(t *testing.T) {
	if !Valid("SP") {
		t.Error("SP should be valid")
	}
	if Valid("sp") || Valid("XX") || Valid("") {
		t.Error("only upper-case UF codes are valid")
	}
}
