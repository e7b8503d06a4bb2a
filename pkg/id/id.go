// Package id mints the opaque <kind>-<epoch>-<counter> identifiers (for
// example F-1-1) the master assigns to frameworks, slaves, tasks, and offers (C2). Minting is owned
// exclusively by the master: slaves and frameworks only ever echo back
// identifiers they were given.
package id

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Kind distinguishes identifier namespaces. Counters are independent per
// kind, matching the source's separate FrameworkID/SlaveID/TaskID/OfferID
// counters.
type Kind string

// The identifier namespaces the master mints.
const (
	Framework Kind = "F"
	Slave     Kind = "S"
	Task      Kind = "T"
	Offer     Kind = "O"
)

// Mint generates identifiers for a single master term (epoch). A new Mint
// should be constructed each time a process becomes leading, so that
// counters restart at zero for the new epoch; see OfferID's epoch-tie in
// spec.md section 3.
type Mint struct {
	epoch int64

	mu       sync.Mutex
	counters map[Kind]int64
}

// NewMint returns a Mint stamping every identifier with the given epoch.
func NewMint(epoch int64) *Mint {
	return &Mint{epoch: epoch, counters: make(map[Kind]int64)}
}

// Epoch returns the epoch this Mint stamps onto identifiers.
func (m *Mint) Epoch() int64 {
	return m.epoch
}

// Next mints the next identifier of the given kind.
func (m *Mint) Next(kind Kind) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[kind]++
	return fmt.Sprintf("%s-%d-%d", kind, m.epoch, m.counters[kind])
}

// OfferEpoch extracts the epoch a given OfferID (or any mint-produced
// identifier) was stamped with. The master itself does not call it: it
// rejects any OfferID missing from its own offer table.
func OfferEpoch(id string) (int64, error) {
	parts := strings.SplitN(id, "-", 3)
	if len(parts) != 3 {
		return 0, fmt.Errorf("id: malformed identifier %q", id)
	}
	epoch, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id: malformed identifier %q: %w", id, err)
	}
	return epoch, nil
}
