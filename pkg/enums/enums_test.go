package enums

import "testing"

func TestParseOutboxEventType(t *testing.T) {
	got, err := ParseOutboxEventType("products_bulk_renamed")
	if err != nil || got != EventProductsBulkRenamed {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatal("expected unknown event type to fail")
	}
	if !EventMasterDeleted.IsValid() {
		t.Fatal("master_deleted should be valid")
	}
}

func TestParseOutboxAggregateType(t *testing.T) {
	if _, err := ParseOutboxAggregateType("master_product"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if OutboxAggregateType("store").IsValid() {
		t.Fatal("store should not be a catalog aggregate")
	}
}

func TestUserRoleCanEditCatalog(t *testing.T) {
	if !RoleContentManager.CanEditCatalog() || !UserRole("SUPER_ADMIN").CanEditCatalog() {
		t.Fatal("editors should be allowed")
	}
	if RoleViewer.CanEditCatalog() {
		t.Fatal("viewer should not edit")
	}
}

func TestParseOutboxDLQErrorReason(t *testing.T) {
	if got, err := ParseOutboxDLQErrorReason("max_attempts"); err != nil || got != OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParseOutboxDLQErrorReason("timeout"); err == nil {
		t.Fatal("expected unknown reason to fail")
	}
}
