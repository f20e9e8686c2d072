// Package balancer computes lease acquisition and release decisions for a
// single processor instance.
//
// Every instance runs the same algorithm independently on a fixed interval,
// using only the shared lease store as ground truth. There is no global
// coordination: decisions race through the store's conditional writes, and
// losing a race is harmless because the next pass recomputes the plan from
// a fresh listing.
//
// Convergence target is ceil(totalLeases / activeInstances) leases per
// instance, where the active instance count is estimated from the distinct
// non-expired owners visible in the current listing (self included).
package balancer

import (
	"math"
	"slices"
	"time"

	"github.com/benoit160/changefeed/types"
)

// Snapshot is one instance's view of the lease store at the start of a
// balancing pass.
type Snapshot struct {
	// InstanceID is the deciding instance.
	InstanceID string

	// Leases is the full listing from the store.
	Leases []types.Lease

	// Now is the wall-clock instant used for expiry checks.
	Now time.Time

	// Expiry is the configured lease expiry window.
	Expiry time.Duration
}

// Candidate is a lease the instance should attempt to acquire, with a flag
// recording whether the acquisition steals from a live owner.
type Candidate struct {
	Lease types.Lease

	// Stolen is true when the lease is currently held, non-expired, by
	// another instance. Stealing uses the same conditional write as any
	// other acquisition and may race and fail harmlessly.
	Stolen bool
}

// Plan is the outcome of one balancing pass.
type Plan struct {
	// Target is ceil(total / instances) for this pass.
	Target int

	// Instances is the estimated active instance count the target was
	// derived from.
	Instances int

	// Owned is the number of leases currently owned by this instance.
	Owned int

	// Acquire lists leases to attempt to acquire, free leases first in
	// partition-ID order, then at most one steal.
	Acquire []Candidate

	// Release lists owned leases to shed, smallest partition IDs first.
	// Non-empty only when the instance is over target by more than one.
	Release []types.Lease
}

// ComputePlan classifies the snapshot's leases and decides what this
// instance should acquire or release to move toward an even distribution.
//
// The plan is deterministic for a given snapshot: candidate lists are
// sorted by partition ID and steal victims are tie-broken by lowest
// partition ID, so concurrent instances make predictable, testable moves.
func ComputePlan(snap Snapshot) Plan {
	var (
		mine      []types.Lease
		free      []types.Lease // unowned or orphaned
		heldCount = make(map[string]int)
		heldBy    = make(map[string][]types.Lease)
	)

	for _, lease := range snap.Leases {
		switch {
		case lease.Owner == snap.InstanceID:
			mine = append(mine, lease)
		case !lease.IsOwned() || lease.IsExpired(snap.Now, snap.Expiry):
			free = append(free, lease)
		default:
			heldCount[lease.Owner]++
			heldBy[lease.Owner] = append(heldBy[lease.Owner], lease)
		}
	}

	// Estimated active instances: distinct live owners plus self.
	// heldCount only tracks other instances, so self always adds one,
	// whether or not it currently owns anything.
	instances := len(heldCount) + 1

	total := len(snap.Leases)
	if total == 0 {
		return Plan{Instances: instances}
	}

	target := int(math.Ceil(float64(total) / float64(instances)))

	plan := Plan{
		Target:    target,
		Instances: instances,
		Owned:     len(mine),
	}

	sortByPartition(mine)
	sortByPartition(free)

	switch {
	case len(mine) < target:
		need := target - len(mine)

		// Free leases first, in partition-ID order.
		for _, lease := range free {
			if need == 0 {
				break
			}
			plan.Acquire = append(plan.Acquire, Candidate{Lease: lease})
			need--
		}

		// Still under target: steal one lease from the largest holder.
		// A victim must end the pass with at least as many leases as we
		// would, so a steal always strictly evens the distribution. Without
		// this floor two instances split 2/1 would steal the odd lease
		// back and forth forever.
		if need > 0 {
			owned := len(mine) + len(plan.Acquire)
			if victim := pickVictim(heldCount, heldBy, owned+2); victim != "" {
				leases := heldBy[victim]
				sortByPartition(leases)
				plan.Acquire = append(plan.Acquire, Candidate{Lease: leases[0], Stolen: true})
			}
		}

	case len(mine) > target+1:
		// Shed the excess, smallest partition identifiers first.
		plan.Release = mine[:len(mine)-target]
	}

	return plan
}

// pickVictim returns the live owner holding the most leases among those
// holding at least minHeld, or "" when none qualifies. Ties are broken by
// the lowest partition ID among the tied owners' leases, which keeps
// multi-instance tests deterministic.
func pickVictim(heldCount map[string]int, heldBy map[string][]types.Lease, minHeld int) string {
	victim := ""
	best := 0
	bestPartition := ""

	for owner, count := range heldCount {
		if count < minHeld {
			continue
		}
		leases := heldBy[owner]
		sortByPartition(leases)
		lowest := leases[0].PartitionID

		if count > best || (count == best && (victim == "" || lowest < bestPartition)) {
			victim = owner
			best = count
			bestPartition = lowest
		}
	}

	return victim
}

func sortByPartition(leases []types.Lease) {
	slices.SortFunc(leases, func(a, b types.Lease) int {
		switch {
		case a.PartitionID < b.PartitionID:
			return -1
		case a.PartitionID > b.PartitionID:
			return 1
		default:
			return 0
		}
	})
}
