package core

import "context"

// DuplicateGuard finds batch keys that already exist in storage.
type DuplicateGuard struct {
	lookup KeyLookup
}

// NewDuplicateGuard creates a guard over the given lookup. If the lookup also
// implements BatchKeyLookup, keys are resolved in a single round trip.
func NewDuplicateGuard(lookup KeyLookup) *DuplicateGuard {
	return &DuplicateGuard{lookup: lookup}
}

// Check returns the keys already present in storage, in input order.
// A key repeated in the input is reported once per occurrence.
func (g *DuplicateGuard) Check(ctx context.Context, keys []Key) ([]Key, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	if batch, ok := g.lookup.(BatchKeyLookup); ok {
		existing, err := batch.ExistingKeys(ctx, keys)
		if err != nil {
			return nil, wrapStorage("check existing keys", err)
		}
		found := make(map[Key]bool, len(existing))
		for _, k := range existing {
			found[normalizeKey(k)] = true
		}
		var conflicts []Key
		for _, k := range keys {
			if found[normalizeKey(k)] {
				conflicts = append(conflicts, k)
			}
		}
		return conflicts, nil
	}

	var conflicts []Key
	for _, k := range keys {
		exists, err := g.lookup.Exists(ctx, k)
		if err != nil {
			return nil, wrapStorage("check existing key", err)
		}
		if exists {
			conflicts = append(conflicts, k)
		}
	}
	return conflicts, nil
}

// normalizeKey makes keys comparable as map keys regardless of the time
// location the store scanned them in.
func normalizeKey(k Key) Key {
	return Key{Date: dateOnly(k.Date), SKU: k.SKU}
}
