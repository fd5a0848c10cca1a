package auth

import (
	"errors"
	"testing"
)

func TestNewTableRequiresFullCatalog(t *testing.T) {
	perms := make(map[Permission]string)
	for i, p := range AllPermissions() {
		perms[p] = string(rune('a' + i))
	}
	types := make(map[ResourceType]string)
	for i, rt := range AllResourceTypes() {
		types[rt] = string(rune('a' + i))
	}

	if _, err := NewTable(perms, types); err != nil {
		t.Fatalf("complete catalog should build: %v", err)
	}

	delete(perms, PermDeploymentView)
	if _, err := NewTable(perms, types); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing permission seed: expected ErrInvalidInput, got %v", err)
	}
}

func TestTableLookups(t *testing.T) {
	table := testTable(t)
	if !table.KnownPermission(PermRoleCreate) {
		t.Fatalf("catalog permission should be known")
	}
	if table.KnownPermission(Permission("made:up")) {
		t.Fatalf("foreign key should be unknown")
	}
	if id, ok := table.ResourceTypeID(TypeDomain); !ok || id == "" {
		t.Fatalf("seeded resource type id missing")
	}
}
