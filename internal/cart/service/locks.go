package service

import "sync"

// VendorLocks serializes cart mutations per vendor. Carts are
// independent, so there is no cross-vendor contention; the map grows
// with the number of active vendors, which is bounded and small.
type VendorLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewVendorLocks() *VendorLocks {
	return &VendorLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the vendor's mutex and returns the unlock func.
func (v *VendorLocks) Acquire(vendorID string) func() {
	v.mu.Lock()
	l, ok := v.locks[vendorID]
	if !ok {
		l = &sync.Mutex{}
		v.locks[vendorID] = l
	}
	v.mu.Unlock()

	l.Lock()
	return l.Unlock
}
