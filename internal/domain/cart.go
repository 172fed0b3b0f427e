package domain

// CartLine is one purchasable line in the cart: a product, optionally bound
// to a recipient group (a sheltered animal). The same product may appear on
// several lines under different groups; those lines are fully independent.
type CartLine struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	MaxQuantity int    `json:"max_quantity,omitempty"`
	GroupID     string `json:"group_id,omitempty"`
	GroupLabel  string `json:"group_label,omitempty"`
}

// SameLine reports whether this line has the given identity. Line identity is
// the (product, group) pair; an empty group ID means the line is ungrouped.
func (l CartLine) SameLine(productID, groupID string) bool {
	return l.ProductID == productID && l.GroupID == groupID
}

// Bounded reports whether the line carries an upper quantity bound.
// A zero MaxQuantity means unbounded.
func (l CartLine) Bounded() bool {
	return l.MaxQuantity > 0
}

// Subtotal returns the line value in minor currency units.
func (l CartLine) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Lines is an ordered cart. Order is insertion order; it carries no meaning
// but must stay stable across a read-modify-write cycle.
type Lines []CartLine

// FindIndex returns the index of the line matching the given identity, or -1.
func (ls Lines) FindIndex(productID, groupID string) int {
	for i := range ls {
		if ls[i].SameLine(productID, groupID) {
			return i
		}
	}
	return -1
}

// Total returns the cart value in minor units. Derived, never stored.
func (ls Lines) Total() int64 {
	var total int64
	for _, l := range ls {
		total += l.Subtotal()
	}
	return total
}

// Count returns the summed quantity across all lines. Derived, never stored.
func (ls Lines) Count() int {
	var count int
	for _, l := range ls {
		count += l.Quantity
	}
	return count
}

// Clone returns a deep copy so callers can hand lines across goroutine
// boundaries without sharing the backing array.
func (ls Lines) Clone() Lines {
	if ls == nil {
		return nil
	}
	out := make(Lines, len(ls))
	copy(out, ls)
	return out
}

// GroupQuantityValue sums quantity and value over all lines in a group.
func (ls Lines) GroupQuantityValue(groupID string) (int, int64) {
	var qty int
	var value int64
	for _, l := range ls {
		if l.GroupID == groupID {
			qty += l.Quantity
			value += l.Subtotal()
		}
	}
	return qty, value
}

// WithoutGroup returns the lines that do not belong to the given group,
// preserving order.
func (ls Lines) WithoutGroup(groupID string) Lines {
	out := make(Lines, 0, len(ls))
	for _, l := range ls {
		if l.GroupID != groupID {
			out = append(out, l)
		}
	}
	return out
}
