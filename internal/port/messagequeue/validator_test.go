package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateVisitEvent(t *testing.T) {
	data := []byte(`{"visit_id":"v1","promoter_id":"p1","store_id":"s1","brand_id":"b1","visit_date":"2024-03-04","status":1}`)
	for _, subj := range []string{SubjectVisitCreated, SubjectVisitUpdated, SubjectVisitDeleted} {
		if err := Validate(subj, data); err != nil {
			t.Fatalf("%s: unexpected error: %v", subj, err)
		}
	}
}

func TestValidateVisitEventMissingID(t *testing.T) {
	err := Validate(SubjectVisitCreated, []byte(`{"promoter_id":"p1"}`))
	if err == nil || !strings.Contains(err.Error(), "visit_id is required") {
		t.Fatalf("expected visit_id error, got %v", err)
	}
}

func TestValidateVisitEventWrongType(t *testing.T) {
	err := Validate(SubjectVisitUpdated, []byte(`{"visit_id":"v1","status":"done"}`))
	if err == nil || !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestValidateCacheInvalidate(t *testing.T) {
	if err := Validate(SubjectCacheInvalidate, []byte(`{"origin":"a","prefixes":["store:"]}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(SubjectCacheInvalidate, []byte(`{"origin":"a"}`)); err == nil {
		t.Fatal("expected error for empty invalidation")
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	if err := Validate("unknown.subject", []byte(`{"foo":"bar"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	err := Validate(SubjectVisitCreated, []byte(`{not valid json`))
	if err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("expected invalid JSON error, got %v", err)
	}
}
