package interceptors

import (
	"context"
	"testing"
)

func TestWithIdentity_SetsAllValues(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1", "admin")

	subjectID, ok := GetSubjectID(ctx)
	if !ok {
		t.Fatal("GetSubjectID should return true")
	}
	if subjectID != "user-1" {
		t.Errorf("subject_id = %q, want %q", subjectID, "user-1")
	}

	role, ok := GetRole(ctx)
	if !ok {
		t.Fatal("GetRole should return true")
	}
	if role != "admin" {
		t.Errorf("role = %q, want %q", role, "admin")
	}
}

func TestGetters_ReturnFalseWhenNotSet(t *testing.T) {
	ctx := context.Background()

	if v, ok := GetSubjectID(ctx); ok || v != "" {
		t.Errorf("GetSubjectID = %q, %v; want \"\", false", v, ok)
	}
	if v, ok := GetRole(ctx); ok || v != "" {
		t.Errorf("GetRole = %q, %v; want \"\", false", v, ok)
	}
}

func TestWithIdentity_Overrides(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1", "member")
	ctx = WithIdentity(ctx, "user-2", "admin")

	if v, _ := GetSubjectID(ctx); v != "user-2" {
		t.Errorf("subject_id = %q, want %q", v, "user-2")
	}
	if v, _ := GetRole(ctx); v != "admin" {
		t.Errorf("role = %q, want %q", v, "admin")
	}
}
