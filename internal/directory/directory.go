// Package directory keeps the sorted set of expense categories and the
// category currently selected in the expense form.
package directory

import (
	"slices"

	"expensetracker/internal/core"
)

// Directory is not safe for concurrent use; callers guard it.
type Directory struct {
	categories []string
	selected   string
	hasSel     bool
}

func New() *Directory {
	return &Directory{}
}

// Refresh rebuilds the category list from expenses and selects the first one.
func (d *Directory) Refresh(expenses []core.Expense) {
	seen := make(map[string]struct{}, len(expenses))
	cats := make([]string, 0, len(expenses))
	for _, e := range expenses {
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		cats = append(cats, e.Category)
	}
	slices.Sort(cats)

	d.categories = cats
	if len(cats) == 0 {
		d.selected, d.hasSel = "", false
		return
	}
	d.selected, d.hasSel = cats[0], true
}

// Select records the user's choice. The list is not re-sorted and the value
// is not checked against it; the lookup against the store decides.
func (d *Directory) Select(category string) {
	d.selected, d.hasSel = category, true
}

// Selected returns the current selection. ok is false before the first
// non-empty Refresh.
func (d *Directory) Selected() (category string, ok bool) {
	return d.selected, d.hasSel
}

// Categories returns a copy of the sorted category list.
func (d *Directory) Categories() []string {
	return slices.Clone(d.categories)
}

// Len returns the number of distinct categories.
func (d *Directory) Len() int {
	return len(d.categories)
}
