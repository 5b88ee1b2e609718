package session

import (
	"github.com/hammerline/auction-backend/pkg/types"
)

type Role string

const (
	RoleBidder Role = "bidder"
	RoleClerk  Role = "clerk"
)

type client struct {
	role     Role
	bidderID string
	name     string
	outbox   chan types.ServerMessage
}

// registry tracks live connections partitioned by role. It is owned by the
// session loop and must only be touched from there. It never closes the
// transport; it only observes register/deregister.
type registry struct {
	clients map[string]*client
}

func newRegistry() *registry {
	return &registry{clients: make(map[string]*client)}
}

// register is idempotent per connection. A connection holds exactly one role
// for its lifetime: re-registering under the same role is a no-op, under a
// different role it is refused.
func (r *registry) register(connID string, role Role, bidderID, name string, outbox chan types.ServerMessage) bool {
	if existing, ok := r.clients[connID]; ok {
		return existing.role == role
	}
	r.clients[connID] = &client{role: role, bidderID: bidderID, name: name, outbox: outbox}
	return true
}

func (r *registry) deregister(connID string) {
	delete(r.clients, connID)
}

func (r *registry) get(connID string) *client {
	return r.clients[connID]
}

func (r *registry) hasRole(connID string, role Role) bool {
	c, ok := r.clients[connID]
	return ok && c.role == role
}

func (r *registry) countByRole(role Role) int {
	n := 0
	for _, c := range r.clients {
		if c.role == role {
			n++
		}
	}
	return n
}
