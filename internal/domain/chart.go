package domain

import (
	"fmt"
	"sort"
)

// Chart is an arena of accounts indexed by id and code. Parent links are
// resolved by id lookups, never by pointers between accounts.
type Chart struct {
	accounts []*Account
	byID     map[int64]int
	byCode   map[string]int
}

// NewChart indexes accounts and rejects duplicate ids/codes and parent cycles.
func NewChart(accounts []*Account) (*Chart, error) {
	c := &Chart{
		accounts: make([]*Account, 0, len(accounts)),
		byID:     make(map[int64]int, len(accounts)),
		byCode:   make(map[string]int, len(accounts)),
	}

	for _, a := range accounts {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, ok := c.byID[a.ID]; ok {
			return nil, fmt.Errorf("%w: id %d", ErrDuplicateAccount, a.ID)
		}
		if _, ok := c.byCode[a.Code]; ok {
			return nil, fmt.Errorf("%w: code %s", ErrDuplicateAccount, a.Code)
		}

		c.byID[a.ID] = len(c.accounts)
		c.byCode[a.Code] = len(c.accounts)
		c.accounts = append(c.accounts, a)
	}

	if err := c.detectCycles(); err != nil {
		return nil, err
	}

	return c, nil
}

// detectCycles walks every parent chain iteratively with three-colour marking.
func (c *Chart) detectCycles() error {
	const (
		unvisited = 0
		inPath    = 1
		done      = 2
	)

	state := make([]uint8, len(c.accounts))

	for start := range c.accounts {
		if state[start] != unvisited {
			continue
		}

		var path []int
		idx := start
		for {
			if state[idx] == done {
				break
			}
			if state[idx] == inPath {
				return fmt.Errorf("%w: through account %s", ErrAccountCycle, c.accounts[idx].Code)
			}

			state[idx] = inPath
			path = append(path, idx)

			parentID := c.accounts[idx].ParentAccountID
			if parentID == nil {
				break
			}
			next, ok := c.byID[*parentID]
			if !ok {
				// Dangling parent references are treated as roots.
				break
			}
			idx = next
		}

		for _, p := range path {
			state[p] = done
		}
	}

	return nil
}

// Get returns the account with the given id.
func (c *Chart) Get(id int64) (*Account, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return c.accounts[idx], true
}

// ByCode returns the account with the given code.
func (c *Chart) ByCode(code string) (*Account, bool) {
	idx, ok := c.byCode[code]
	if !ok {
		return nil, false
	}
	return c.accounts[idx], true
}

// Parent returns the parent of the account, if it is present in the chart.
func (c *Chart) Parent(a *Account) (*Account, bool) {
	if a.ParentAccountID == nil {
		return nil, false
	}
	return c.Get(*a.ParentAccountID)
}

// EffectiveSubCategory returns the account's sub-category, inheriting from
// the nearest ancestor that sets one.
func (c *Chart) EffectiveSubCategory(a *Account) string {
	// NewChart rejects cycles, so the walk terminates.
	for cur := a; cur != nil; {
		if cur.SubCategory != "" {
			return cur.SubCategory
		}
		parent, ok := c.Parent(cur)
		if !ok {
			return ""
		}
		cur = parent
	}
	return ""
}

// Active returns active accounts matching any of the categories, ordered by code.
func (c *Chart) Active(categories ...Category) []*Account {
	want := make(map[Category]bool, len(categories))
	for _, cat := range categories {
		want[cat] = true
	}

	var out []*Account
	for _, a := range c.accounts {
		if a.IsActive && want[a.Category] {
			out = append(out, a)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len returns the number of accounts in the chart.
func (c *Chart) Len() int {
	return len(c.accounts)
}
