package reentrancy

import (
	"sync/atomic"

	"github.com/talmarket/goapi/domain"
)

// Guard is the mutual-exclusion flag shared by every state-mutating entry
// point of one engine. A nested call into any guarded entry point while the
// outer call is still running is rejected instead of blocked, mirroring the
// behavior of an on-chain reentrancy lock.
//
// Leave must run on every exit path, so callers pair Enter with a deferred
// Leave immediately:
//
//	if err := guard.Enter(); err != nil {
//		return err
//	}
//	defer guard.Leave()
type Guard struct {
	entered int32
}

func NewGuard() *Guard {
	return &Guard{}
}

// Enter acquires the guard, or reports domain.ErrReentrantCall when the
// guard is already held.
func (g *Guard) Enter() error {
	if !atomic.CompareAndSwapInt32(&g.entered, 0, 1) {
		return domain.ErrReentrantCall
	}
	return nil
}

// Leave releases the guard unconditionally.
func (g *Guard) Leave() {
	atomic.StoreInt32(&g.entered, 0)
}
