package domain

// OutcomeKind classifies the user-facing result of a cart mutation.
type OutcomeKind string

const (
	// OutcomeSuccess means the mutation applied as requested.
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeLimitReached means a quantity bound blocked or truncated the
	// mutation; Limit carries the violated bound.
	OutcomeLimitReached OutcomeKind = "limit_reached"
	// OutcomeNothingToDo means the mutation had no effect (empty bulk input,
	// absent line, absent group).
	OutcomeNothingToDo OutcomeKind = "nothing_to_do"
	// OutcomeRemoved means one or more lines were removed.
	OutcomeRemoved OutcomeKind = "removed"
)

// Outcome is the structured result every cart mutation produces for the UI
// to render as a notification. It is the only wire format the engine owns.
type Outcome struct {
	Kind            OutcomeKind `json:"kind"`
	ProductName     string      `json:"product_name,omitempty"`
	GroupLabel      string      `json:"group_label,omitempty"`
	Limit           int         `json:"limit,omitempty"`
	RemovedQuantity int         `json:"removed_quantity,omitempty"`
	RemovedValue    int64       `json:"removed_value,omitempty"`

	// Silent suppresses the UI notification; the mutation still applied.
	Silent bool `json:"silent,omitempty"`
}

// Added reports a successful add of the named product.
func Added(productName string) Outcome {
	return Outcome{Kind: OutcomeSuccess, ProductName: productName}
}

// LimitReached reports a quantity bound violation naming the bound.
func LimitReached(productName string, limit int) Outcome {
	return Outcome{Kind: OutcomeLimitReached, ProductName: productName, Limit: limit}
}

// NothingToDo reports a no-op mutation.
func NothingToDo(groupLabel string) Outcome {
	return Outcome{Kind: OutcomeNothingToDo, GroupLabel: groupLabel}
}

// Removed reports removal of a single line.
func Removed(productName string) Outcome {
	return Outcome{Kind: OutcomeRemoved, ProductName: productName}
}

// GroupRemoved reports removal of a whole group with its aggregates.
func GroupRemoved(groupLabel string, quantity int, value int64) Outcome {
	return Outcome{
		Kind:            OutcomeRemoved,
		GroupLabel:      groupLabel,
		RemovedQuantity: quantity,
		RemovedValue:    value,
	}
}
