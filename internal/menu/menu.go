// Package menu holds the fixed menu catalog and promo codes.
package menu

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Item is a menu entry.
type Item struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Price          decimal.Decimal `json:"price"`
	Sizes          []string        `json:"sizes"`
	Customizations []string        `json:"customizations"`
}

// Promo is a promotional code.
type Promo struct {
	Code            string `json:"code"`
	DiscountPercent int    `json:"discount_percent"`
	FreeDelivery    bool   `json:"free_delivery"`
	Description     string `json:"description"`
}

// Catalog is an ordered, read-only menu.
type Catalog struct {
	items  []Item
	byID   map[string]Item
	promos map[string]Promo
}

// NewCatalog builds the default menu.
func NewCatalog() *Catalog {
	items := []Item{
		{
			ID:             "pizza_pepperoni",
			Name:           "Pepperoni Pizza",
			Category:       "pizza",
			Price:          decimal.RequireFromString("15.99"),
			Sizes:          []string{"small", "medium", "large"},
			Customizations: []string{"extra_cheese", "no_onions", "thin_crust"},
		},
		{
			ID:             "pizza_margherita",
			Name:           "Margherita Pizza",
			Category:       "pizza",
			Price:          decimal.RequireFromString("14.99"),
			Sizes:          []string{"small", "medium", "large"},
			Customizations: []string{"extra_cheese", "no_basil", "thin_crust"},
		},
		{
			ID:             "burger_cheese",
			Name:           "Cheeseburger",
			Category:       "burgers",
			Price:          decimal.RequireFromString("12.99"),
			Sizes:          []string{"regular", "double"},
			Customizations: []string{"no_onions", "no_pickles", "extra_cheese"},
		},
		{
			ID:             "burger_chicken",
			Name:           "Chicken Burger",
			Category:       "burgers",
			Price:          decimal.RequireFromString("13.99"),
			Sizes:          []string{"regular"},
			Customizations: []string{"spicy", "no_mayo", "extra_sauce"},
		},
		{
			ID:             "salad_caesar",
			Name:           "Caesar Salad",
			Category:       "salads",
			Price:          decimal.RequireFromString("9.99"),
			Sizes:          []string{"regular", "large"},
			Customizations: []string{"no_croutons", "extra_dressing", "add_chicken"},
		},
		{
			ID:       "drink_coke",
			Name:     "Coca-Cola",
			Category: "drinks",
			Price:    decimal.RequireFromString("2.99"),
			Sizes:    []string{"regular", "large"},
		},
		{
			ID:       "drink_water",
			Name:     "Bottled Water",
			Category: "drinks",
			Price:    decimal.RequireFromString("1.99"),
			Sizes:    []string{"regular"},
		},
	}

	byID := make(map[string]Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	return &Catalog{
		items: items,
		byID:  byID,
		promos: map[string]Promo{
			"WELCOME10": {Code: "WELCOME10", DiscountPercent: 10, Description: "10% off first order"},
			"SAVE20":    {Code: "SAVE20", DiscountPercent: 20, Description: "20% off"},
			"FREESHIP":  {Code: "FREESHIP", FreeDelivery: true, Description: "Free delivery"},
		},
	}
}

// Get looks up an item by id.
func (c *Catalog) Get(id string) (Item, bool) {
	item, ok := c.byID[id]
	return item, ok
}

// Items returns the catalog in menu order, optionally filtered by category.
func (c *Catalog) Items(category string) []Item {
	if category == "" {
		out := make([]Item, len(c.items))
		copy(out, c.items)
		return out
	}
	var out []Item
	for _, item := range c.items {
		if item.Category == category {
			out = append(out, item)
		}
	}
	return out
}

// Promo validates a promo code, case-insensitively.
func (c *Catalog) Promo(code string) (Promo, bool) {
	promo, ok := c.promos[strings.ToUpper(code)]
	return promo, ok
}

// ParsedItem is a menu match extracted from free text.
type ParsedItem struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

var quantityPattern = regexp.MustCompile(`(\d+)\s+(\w+)`)

// ParseItems extracts menu items from a natural language order. Quantities
// like "2 pizzas" match a word against item names; with no quantities it
// falls back to full item name mentions, defaulting quantity to one.
func (c *Catalog) ParseItems(text string) []ParsedItem {
	lowered := strings.ToLower(text)
	var parsed []ParsedItem

	for _, match := range quantityPattern.FindAllStringSubmatch(lowered, -1) {
		qty, err := strconv.Atoi(match[1])
		if err != nil || qty <= 0 {
			continue
		}
		word := strings.TrimSuffix(match[2], "s")
		for _, item := range c.items {
			if strings.Contains(strings.ToLower(item.Name), word) {
				parsed = append(parsed, ParsedItem{
					ItemID:    item.ID,
					Name:      item.Name,
					Quantity:  qty,
					UnitPrice: item.Price,
				})
				break
			}
		}
	}

	if len(parsed) == 0 {
		for _, item := range c.items {
			if strings.Contains(lowered, strings.ToLower(item.Name)) {
				parsed = append(parsed, ParsedItem{
					ItemID:    item.ID,
					Name:      item.Name,
					Quantity:  1,
					UnitPrice: item.Price,
				})
			}
		}
	}

	return parsed
}
