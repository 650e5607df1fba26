package shared

import (
	"testing"
	"time"
)

func TestValidatorCollectsAndSortsIssues(t *testing.T) {
	v := NewValidator()
	v.Required("kind", "", "kind is required")
	v.Enum("kind", "quarterly", []string{"monthly", "semimonthly", "weekly"}, "unknown kind")
	v.Add("releaseOffsetDays", "must be between 0 and 31")

	if !v.HasIssues() {
		t.Fatal("expected issues")
	}
	issues := v.Issues()
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues, got %d", len(issues))
	}
	if issues[0].Field != "kind" || issues[2].Field != "releaseOffsetDays" {
		t.Fatalf("issues not sorted by field: %+v", issues)
	}
}

func TestValidatorEnumIgnoresEmptyAndCase(t *testing.T) {
	v := NewValidator()
	v.Enum("status", "", []string{"approved"}, "unknown status")
	v.Enum("status", "APPROVED", []string{"approved"}, "unknown status")
	if v.HasIssues() {
		t.Fatalf("unexpected issues: %+v", v.Issues())
	}
}

func TestValidatorIntRange(t *testing.T) {
	v := NewValidator()
	v.IntRange("dayOfMonth", 31, 1, 31)
	v.IntRange("dayOfMonth", 0, 1, 31)
	if len(v.Issues()) != 1 {
		t.Fatalf("expected 1 issue, got %+v", v.Issues())
	}
}

func TestValidatorDateOrder(t *testing.T) {
	start := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 16, 0, 0, 0, 0, time.UTC)

	v := NewValidator()
	v.DateOrder("startDate", start, "endDate", end)
	if len(v.Issues()) != 2 {
		t.Fatalf("expected issues on both fields, got %+v", v.Issues())
	}

	v = NewValidator()
	v.DateOrder("startDate", end, "endDate", start)
	if v.HasIssues() {
		t.Fatalf("unexpected issues: %+v", v.Issues())
	}
}

func TestParseDateAcceptsBothFormats(t *testing.T) {
	if _, err := ParseDate("2024-03-15"); err != nil {
		t.Fatalf("plain date rejected: %v", err)
	}
	if _, err := ParseDate("2024-03-15T08:30:00Z"); err != nil {
		t.Fatalf("RFC3339 rejected: %v", err)
	}
	if _, err := ParseDate("15/03/2024"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
