package series

import "sort"

// Capabilities is the set of columns a series can serve.
type Capabilities map[string]struct{}

// NewCapabilities builds a set from column names.
func NewCapabilities(cols ...string) Capabilities {
	c := make(Capabilities, len(cols))
	for _, col := range cols {
		c.add(col)
	}
	return c
}

func (c Capabilities) add(col string) {
	c[col] = struct{}{}
}

// Has reports whether col is available.
func (c Capabilities) Has(col string) bool {
	_, ok := c[col]
	return ok
}

// Requirements declares the columns a detector reads.
// Required columns gate the whole detector; optional columns gate individual checks.
type Requirements struct {
	Required []string
	Optional []string
}

// Satisfied reports whether every required column is available.
func (r Requirements) Satisfied(c Capabilities) bool {
	for _, col := range r.Required {
		if !c.Has(col) {
			return false
		}
	}
	return true
}

// Missing returns the required columns that are unavailable, sorted.
func (r Requirements) Missing(c Capabilities) []string {
	var missing []string
	for _, col := range r.Required {
		if !c.Has(col) {
			missing = append(missing, col)
		}
	}
	sort.Strings(missing)
	return missing
}

// All returns required and optional columns together.
func (r Requirements) All() []string {
	out := make([]string, 0, len(r.Required)+len(r.Optional))
	out = append(out, r.Required...)
	return append(out, r.Optional...)
}
