package session

import (
	"testing"

	"github.com/hammerline/auction-backend/pkg/types"
)

func TestRegistry_RoleLifecycle(t *testing.T) {
	r := newRegistry()
	out := make(chan types.ServerMessage, 1)

	if !r.register("c1", RoleBidder, "b1", "Alice", out) {
		t.Fatalf("first register must succeed")
	}
	if !r.register("c1", RoleBidder, "b1", "Alice", out) {
		t.Fatalf("re-register under the same role must be idempotent")
	}
	if r.register("c1", RoleClerk, "b1", "Alice", out) {
		t.Fatalf("role upgrade must be refused")
	}

	if !r.hasRole("c1", RoleBidder) || r.hasRole("c1", RoleClerk) {
		t.Fatalf("role mismatch for c1")
	}
	if r.countByRole(RoleBidder) != 1 || r.countByRole(RoleClerk) != 0 {
		t.Fatalf("unexpected counts: bidders=%d clerks=%d", r.countByRole(RoleBidder), r.countByRole(RoleClerk))
	}

	r.deregister("c1")
	if r.countByRole(RoleBidder) != 0 {
		t.Fatalf("deregister must drop the entry")
	}
	if r.hasRole("c1", RoleBidder) {
		t.Fatalf("deregistered connection must have no role")
	}
}
