package model

type Transaction struct {
	ID      string   `json:"id"`
	Input   *Input   `json:"input"`
	Outputs []Output `json:"outputs"`
}

// OutputFor returns the first output paying address.
func (t Transaction) OutputFor(address string) (Output, bool) {
	for _, out := range t.Outputs {
		if out.Address == address {
			return out, true
		}
	}
	return Output{}, false
}

// Clone returns a deep copy so callers can derive a new transaction without touching t.
func (t Transaction) Clone() Transaction {
	c := Transaction{ID: t.ID}
	if t.Input != nil {
		in := *t.Input
		c.Input = &in
	}
	c.Outputs = append([]Output(nil), t.Outputs...)
	return c
}
