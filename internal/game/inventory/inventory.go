// Package inventory models a character's item bag and the fixed loot a victory yields.
package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidEntry is returned when an inventory entry has an empty item or a quantity below one.
var ErrInvalidEntry = errors.New("invalid inventory entry")

// Entry is one item stack as exchanged with clients.
type Entry struct {
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

// Inventory maps an item identifier to the quantity held.
//
// Invariant: every stored quantity is >= 1.
type Inventory map[string]int

// Add increases the quantity of item by qty.
//
// Precondition: item must be non-empty; qty must be >= 1.
// Postcondition: inv[item] is increased by qty, or an error is returned and inv is unchanged.
func (inv Inventory) Add(item string, qty int) error {
	item = strings.TrimSpace(item)
	if item == "" || qty < 1 {
		return fmt.Errorf("%w: item %q quantity %d", ErrInvalidEntry, item, qty)
	}
	inv[item] += qty
	return nil
}

// Replace overwrites the inventory with entries. Entries naming the same item are merged.
// Every entry is validated before anything is changed.
//
// Postcondition: on success inv holds exactly the merged entries; on error inv is unchanged.
func (inv Inventory) Replace(entries []Entry) error {
	next := make(map[string]int, len(entries))
	for i, e := range entries {
		item := strings.TrimSpace(e.Item)
		if item == "" || e.Quantity < 1 {
			return fmt.Errorf("%w: entry[%d] item %q quantity %d", ErrInvalidEntry, i, e.Item, e.Quantity)
		}
		next[item] += e.Quantity
	}
	for k := range inv {
		delete(inv, k)
	}
	for k, v := range next {
		inv[k] = v
	}
	return nil
}

// Entries returns the inventory as a slice sorted by item name.
func (inv Inventory) Entries() []Entry {
	out := make([]Entry, 0, len(inv))
	for item, qty := range inv {
		out = append(out, Entry{Item: item, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

// Clone returns an independent copy. A nil inventory clones to an empty one.
func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	for k, v := range inv {
		out[k] = v
	}
	return out
}
