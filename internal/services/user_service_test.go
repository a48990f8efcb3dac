package services_test

import (
	"testing"

	"eneatest/internal/db"
	"eneatest/internal/services"
)

func strPtr(s string) *string { return &s }

func TestUserCreate(t *testing.T) {
	store := db.NewMemoryStore()
	svc := services.NewUserService(store)

	user, err := svc.Create("ext-1", "Ana García", "ana@example.com")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.ID == 0 || user.CreatedAt.IsZero() {
		t.Fatalf("created user missing id or timestamp: %+v", user)
	}

	_, err = svc.Create("ext-1", "Otra Ana", "")
	wantCode(t, err, services.ErrorConflict)

	_, err = svc.Create("  ", "Ana", "")
	wantCode(t, err, services.ErrorInvalid)
	_, err = svc.Create("ext-2", "   ", "")
	wantCode(t, err, services.ErrorInvalid)
}

func TestUserUpdate(t *testing.T) {
	store := db.NewMemoryStore()
	svc := services.NewUserService(store)

	ana, err := svc.Create("ext-1", "Ana", "ana@example.com")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create("ext-2", "Bea", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Nil fields keep the stored value; email nil clears it.
	updated, err := svc.Update(ana.ID, nil, strPtr("Ana María"), nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ExternalID != "ext-1" {
		t.Fatalf("externalId changed unexpectedly: %q", updated.ExternalID)
	}
	if updated.DisplayName != "Ana María" {
		t.Fatalf("displayName = %q, want %q", updated.DisplayName, "Ana María")
	}
	if updated.Email != "" {
		t.Fatalf("omitted email must clear the stored value, got %q", updated.Email)
	}

	_, err = svc.Update(ana.ID, strPtr("ext-2"), nil, nil)
	wantCode(t, err, services.ErrorConflict)

	// Re-sending your own externalId is not a conflict.
	if _, err := svc.Update(ana.ID, strPtr("ext-1"), nil, strPtr("ana@example.com")); err != nil {
		t.Fatalf("self externalId update: %v", err)
	}

	_, err = svc.Update(9999, nil, strPtr("Nadie"), nil)
	wantCode(t, err, services.ErrorNotFound)
}
