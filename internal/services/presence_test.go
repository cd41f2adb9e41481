package services

import (
	"testing"
)

func newTestClient(id uint, username string) *Client {
	return &Client{
		ID:       id,
		Username: username,
		Send:     make(chan []byte, 16),
	}
}

func TestRegistry_RegisterAndQuery(t *testing.T) {
	registry := NewRegistry()
	alice := newTestClient(1, "alice")

	if registry.IsOnline(1) {
		t.Fatal("user should start offline")
	}

	registry.Register(1, alice)
	if !registry.IsOnline(1) {
		t.Fatal("user should be online after register")
	}
	if got, ok := registry.Get(1); !ok || got != alice {
		t.Fatal("Get should return the registered handle")
	}
	if registry.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", registry.Count())
	}
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry()
	alice := newTestClient(1, "alice")
	registry.Register(1, alice)

	if removed := registry.Unregister(1, alice); !removed {
		t.Fatal("unregistering the current handle should report removal")
	}
	if registry.IsOnline(1) {
		t.Fatal("user should be offline after unregister")
	}
}

// A fast reconnect replaces the handle; teardown of the stale connection must
// not knock the new session offline.
func TestRegistry_StaleUnregisterIgnored(t *testing.T) {
	registry := NewRegistry()
	stale := newTestClient(1, "alice")
	fresh := newTestClient(1, "alice")

	registry.Register(1, stale)
	registry.Register(1, fresh)

	if removed := registry.Unregister(1, stale); removed {
		t.Fatal("stale handle must not unregister the fresh session")
	}
	if !registry.IsOnline(1) {
		t.Fatal("user should still be online via the fresh session")
	}

	if removed := registry.Unregister(1, fresh); !removed {
		t.Fatal("fresh handle should unregister normally")
	}
}

func TestRegistry_ListOnline(t *testing.T) {
	registry := NewRegistry()
	registry.Register(1, newTestClient(1, "alice"))
	registry.Register(2, newTestClient(2, "bob"))

	online := registry.ListOnline()
	if len(online) != 2 {
		t.Fatalf("expected 2 online users, got %d", len(online))
	}
	seen := map[uint]bool{}
	for _, id := range online {
		seen[id] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("expected users 1 and 2 online, got %v", online)
	}
}
