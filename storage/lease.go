package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Per-listing leases serialize the availability check+insert sequence during
// booking creation. The in-process mutex covers a single server instance;
// when Redis is configured, a SETNX lease extends the guarantee across
// instances. The lease is held only for the duration of the check+insert.

var (
	listingLocksMu sync.Mutex
	listingLocks   = map[uint]*sync.Mutex{}
)

const leaseTTL = 10 * time.Second

func listingLock(listingID uint) *sync.Mutex {
	listingLocksMu.Lock()
	defer listingLocksMu.Unlock()
	lock, ok := listingLocks[listingID]
	if !ok {
		lock = &sync.Mutex{}
		listingLocks[listingID] = lock
	}
	return lock
}

// AcquireListingLease blocks until the per-listing lease is held and returns
// a release function. The caller must release promptly after the booking
// row is inserted (or the attempt fails).
func AcquireListingLease(ctx context.Context, listingID uint) (release func(), err error) {
	lock := listingLock(listingID)
	lock.Lock()

	if Redis == nil {
		return lock.Unlock, nil
	}

	key := fmt.Sprintf("listing-lease:%d", listingID)
	for {
		ok, err := Redis.SetNX(ctx, key, 1, leaseTTL).Result()
		if err != nil {
			// Redis being down must not take booking creation with it;
			// fall back to the in-process lock.
			return lock.Unlock, nil
		}
		if ok {
			return func() {
				Redis.Del(context.Background(), key)
				lock.Unlock()
			}, nil
		}

		select {
		case <-ctx.Done():
			lock.Unlock()
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
