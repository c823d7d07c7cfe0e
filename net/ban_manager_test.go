package net

import (
	"testing"

	peer "github.com/libp2p/go-libp2p-core/peer"
)

func bannedPeers(t *testing.T) []peer.ID {
	peers, err := ParseBlockedIDs([]string{
		"QmY3ArotKMKaL7YGfbQfyDrib6RVraLqZYWXZvVgZktBxp",
		"QmYVXrKrKHDC9FobgmcmshCDyWwdrfwfanNQN4oxJ9Fk3h",
		"QmZNkThpqfVXs9GNbexPrfBbXSLNYeKrE7jwFM2oqHbyqN",
	})
	if err != nil {
		t.Fatal(err)
	}
	return peers
}

func TestNewBanManager(t *testing.T) {
	banned := bannedPeers(t)
	bm := NewBanManager(banned)

	if len(bm.Banned()) != len(banned) {
		t.Errorf("Expected %d banned peers, got %d", len(banned), len(bm.Banned()))
	}
	reason, ok := bm.Reason(banned[0])
	if !ok || reason != "config" {
		t.Errorf("Expected config reason, got %q (banned: %t)", reason, ok)
	}
}

func TestBanManager_BanAndUnban(t *testing.T) {
	banned := bannedPeers(t)
	bm := NewBanManager(nil)

	for _, p := range banned {
		bm.Ban(p, "invalid proposal")
	}
	for _, p := range banned {
		if !bm.IsBanned(p) {
			t.Errorf("Peer %s is not banned", p)
		}
	}

	bm.Unban(banned[1])
	if bm.IsBanned(banned[1]) {
		t.Errorf("Peer %s is still banned", banned[1])
	}
	if !bm.IsBanned(banned[0]) || !bm.IsBanned(banned[2]) {
		t.Error("Unban removed the wrong peer")
	}

	// Unbanning an unknown peer is harmless.
	bm.Unban(banned[1])
}

func TestBanManager_Reset(t *testing.T) {
	banned := bannedPeers(t)
	bm := NewBanManager(banned[:1])

	bm.Reset(banned[1:])

	if bm.IsBanned(banned[0]) {
		t.Error("Previous ban was not cleared")
	}
	got := bm.Banned()
	if len(got) != len(banned)-1 {
		t.Fatalf("Expected %d banned peers, got %d", len(banned)-1, len(got))
	}
	if got[0] > got[1] {
		t.Error("Banned peers are not sorted")
	}
}

func TestParseBlockedIDs(t *testing.T) {
	if _, err := ParseBlockedIDs([]string{"not-a-peer-id"}); err == nil {
		t.Error("Expected error for invalid peer ID")
	}
}
