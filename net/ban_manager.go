package net

import (
	"sort"
	"sync"

	peer "github.com/libp2p/go-libp2p-core/peer"
)

// BanManager tracks the peers we refuse to hold sessions with. Sessions are
// refused in both directions: we never open a session to a banned peer and
// streams opened by one are reset before the first frame is read.
type BanManager struct {
	mtx    sync.RWMutex
	banned map[peer.ID]string
}

// NewBanManager returns a BanManager that bans the given peers. These are
// typically the blockednodes from the config.
func NewBanManager(banned []peer.ID) *BanManager {
	bm := &BanManager{banned: make(map[peer.ID]string, len(banned))}
	for _, pid := range banned {
		bm.banned[pid] = "config"
	}
	return bm
}

// ParseBlockedIDs decodes peer IDs from the config. Invalid IDs are an
// error rather than silently skipped.
func ParseBlockedIDs(ids []string) ([]peer.ID, error) {
	ret := make([]peer.ID, 0, len(ids))
	for _, s := range ids {
		pid, err := peer.Decode(s)
		if err != nil {
			return nil, err
		}
		ret = append(ret, pid)
	}
	return ret, nil
}

// Ban refuses all future sessions with the peer. The reason is kept for
// display only.
func (bm *BanManager) Ban(pid peer.ID, reason string) {
	bm.mtx.Lock()
	defer bm.mtx.Unlock()
	bm.banned[pid] = reason
	log.Infof("Banned peer %s: %s", pid, reason)
}

// Unban lifts a ban. It's a no-op for peers that are not banned.
func (bm *BanManager) Unban(pid peer.ID) {
	bm.mtx.Lock()
	defer bm.mtx.Unlock()
	delete(bm.banned, pid)
}

// Reset replaces the whole ban list.
func (bm *BanManager) Reset(banned []peer.ID) {
	bm.mtx.Lock()
	defer bm.mtx.Unlock()

	bm.banned = make(map[peer.ID]string, len(banned))
	for _, pid := range banned {
		bm.banned[pid] = "config"
	}
}

// Banned returns the banned peers sorted by ID.
func (bm *BanManager) Banned() []peer.ID {
	bm.mtx.RLock()
	defer bm.mtx.RUnlock()

	ret := make([]peer.ID, 0, len(bm.banned))
	for pid := range bm.banned {
		ret = append(ret, pid)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

// Reason returns why the peer was banned and whether it is banned at all.
func (bm *BanManager) Reason(pid peer.ID) (string, bool) {
	bm.mtx.RLock()
	defer bm.mtx.RUnlock()
	reason, ok := bm.banned[pid]
	return reason, ok
}

// IsBanned reports whether sessions with the peer are refused.
func (bm *BanManager) IsBanned(pid peer.ID) bool {
	_, ok := bm.Reason(pid)
	return ok
}
