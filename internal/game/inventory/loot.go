package inventory

import "fmt"

// LootTable is the fixed reward granted on every victory. There is no randomness.
type LootTable struct {
	Items []Entry
	Gold  int
}

// DefaultLoot is one health potion and a handful of gold.
var DefaultLoot = LootTable{
	Items: []Entry{{Item: "Health Potion", Quantity: 1}},
	Gold:  10,
}

// Validate checks that the loot table satisfies its invariants.
//
// Postcondition: Returns nil iff gold >= 0 and every item has a name and quantity >= 1.
func (lt LootTable) Validate() error {
	if lt.Gold < 0 {
		return fmt.Errorf("loot table: gold must be >= 0, got %d", lt.Gold)
	}
	for i, it := range lt.Items {
		if it.Item == "" {
			return fmt.Errorf("loot table: item[%d] must have a non-empty item id", i)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("loot table: item[%d] quantity must be >= 1, got %d", i, it.Quantity)
		}
	}
	return nil
}

// Grant adds every item of lt to inv and returns the gold to credit.
//
// Precondition: lt must have passed Validate().
// Postcondition: each item's quantity in inv grows by the table's quantity.
func (lt LootTable) Grant(inv Inventory) (int, error) {
	for _, it := range lt.Items {
		if err := inv.Add(it.Item, it.Quantity); err != nil {
			return 0, fmt.Errorf("granting loot: %w", err)
		}
	}
	return lt.Gold, nil
}
