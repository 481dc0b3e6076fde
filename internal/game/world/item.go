package world

import (
	"slices"
	"strings"

	"github.com/cory-johannsen/textcamp/internal/game/entity"
	"github.com/cory-johannsen/textcamp/internal/game/update"
)

// Item is a portable object. Items live only inside an Inventory.
type Item struct {
	ID          entity.Identifier `json:"id"`
	Prototype   string            `json:"prototype"`
	Name        string            `json:"name"`
	Description update.Markup     `json:"description"`
}

// Describe returns the item's markup.
func (i Item) Describe() update.Markup {
	return cloneMarkup(i.Description)
}

// Inventory is a collection of items kept sorted by name.
type Inventory struct {
	Items []Item `json:"items"`
}

// Add inserts item, keeping the inventory sorted by name.
func (inv *Inventory) Add(item Item) {
	i, _ := slices.BinarySearchFunc(inv.Items, item.Name, func(it Item, name string) int {
		return strings.Compare(it.Name, name)
	})
	inv.Items = slices.Insert(inv.Items, i, item)
}

// Remove takes out the first item whose name matches, case-insensitively.
//
// Postcondition: Returns (item, true) and the inventory no longer holds it,
// or (Item{}, false) and the inventory is unchanged.
func (inv *Inventory) Remove(name string) (Item, bool) {
	i := inv.find(name)
	if i < 0 {
		return Item{}, false
	}
	item := inv.Items[i]
	inv.Items = slices.Delete(inv.Items, i, i+1)
	return item, true
}

// Find returns the first item whose name matches, case-insensitively.
func (inv *Inventory) Find(name string) (Item, bool) {
	i := inv.find(name)
	if i < 0 {
		return Item{}, false
	}
	return inv.Items[i], true
}

func (inv *Inventory) find(name string) int {
	return slices.IndexFunc(inv.Items, func(it Item) bool {
		return strings.EqualFold(it.Name, name)
	})
}

// Count returns the number of items created from prototype.
func (inv *Inventory) Count(prototype string) int {
	n := 0
	for _, it := range inv.Items {
		if it.Prototype == prototype {
			n++
		}
	}
	return n
}

// Len returns the number of items.
func (inv *Inventory) Len() int { return len(inv.Items) }

// Names returns the item names in order.
func (inv *Inventory) Names() []string {
	names := make([]string, len(inv.Items))
	for i, it := range inv.Items {
		names[i] = it.Name
	}
	return names
}

// Clone returns a deep copy.
func (inv Inventory) Clone() Inventory {
	out := Inventory{Items: make([]Item, len(inv.Items))}
	for i, it := range inv.Items {
		it.Description = cloneMarkup(it.Description)
		out.Items[i] = it
	}
	return out
}

// Population is the sorted, duplicate-free set of characters at a location.
type Population struct {
	Members []entity.Identifier `json:"members"`
}

// Add inserts id if absent.
func (p *Population) Add(id entity.Identifier) {
	i, found := slices.BinarySearch(p.Members, id)
	if !found {
		p.Members = slices.Insert(p.Members, i, id)
	}
}

// Remove deletes id and reports whether it was present.
func (p *Population) Remove(id entity.Identifier) bool {
	i, found := slices.BinarySearch(p.Members, id)
	if found {
		p.Members = slices.Delete(p.Members, i, i+1)
	}
	return found
}

// Contains reports whether id is present.
func (p *Population) Contains(id entity.Identifier) bool {
	_, found := slices.BinarySearch(p.Members, id)
	return found
}

// IDs returns a copy of the members in ascending order.
func (p *Population) IDs() []entity.Identifier {
	return slices.Clone(p.Members)
}

// Len returns the number of members.
func (p *Population) Len() int { return len(p.Members) }

// Clone returns a deep copy.
func (p Population) Clone() Population {
	return Population{Members: slices.Clone(p.Members)}
}

func cloneMarkup(m update.Markup) update.Markup {
	out := update.Markup{Text: m.Text}
	if m.Clicks != nil {
		out.Clicks = make(map[string]string, len(m.Clicks))
		for k, v := range m.Clicks {
			out.Clicks[k] = v
		}
	}
	return out
}
