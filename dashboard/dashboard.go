// Package dashboard aggregates an inventory listing into the figures the
// dashboard view shows.
package dashboard

import (
	"context"
	"sort"

	"github.com/goliatone/go-stockroom/inventory"
)

const (
	DefaultLowStockThreshold = 10
	DefaultLowStockLimit     = 5
	UncategorizedLabel       = "Uncategorized"
)

// CategoryStock is the total quantity held under one category
type CategoryStock struct {
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

// Summary is the dashboard data contract.
type Summary struct {
	TotalItems      int              `json:"totalItems"`
	TotalValue      float64          `json:"totalValue"`
	LowStockCount   int              `json:"lowStockCount"`
	OutOfStockCount int              `json:"outOfStockCount"`
	CategoryCount   int              `json:"categoryCount"`
	Categories      []CategoryStock  `json:"categories"`
	LowStockItems   []inventory.Item `json:"lowStockItems"`
}

type options struct {
	threshold int
	limit     int
}

// Option customizes Summarize.
type Option func(*options)

// WithLowStockThreshold sets the exclusive upper bound for low stock.
// Non-positive values are ignored.
func WithLowStockThreshold(threshold int) Option {
	return func(o *options) {
		if threshold > 0 {
			o.threshold = threshold
		}
	}
}

// WithLowStockLimit caps how many low stock items are listed in the summary.
// It does not affect LowStockCount.
func WithLowStockLimit(limit int) Option {
	return func(o *options) {
		if limit >= 0 {
			o.limit = limit
		}
	}
}

// Summarize computes the dashboard figures. An item is low on stock when
// 0 < quantity < threshold and out of stock when quantity == 0. Categories
// are ordered by stock descending; ties keep first appearance order.
func Summarize(items []inventory.Item, opts ...Option) Summary {
	o := options{
		threshold: DefaultLowStockThreshold,
		limit:     DefaultLowStockLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	summary := Summary{
		TotalItems:    len(items),
		Categories:    []CategoryStock{},
		LowStockItems: []inventory.Item{},
	}

	index := map[string]int{}
	for _, item := range items {
		summary.TotalValue += item.Value()

		switch {
		case item.Quantity == 0:
			summary.OutOfStockCount++
		case item.Quantity > 0 && item.Quantity < o.threshold:
			summary.LowStockCount++
			if len(summary.LowStockItems) < o.limit {
				summary.LowStockItems = append(summary.LowStockItems, item)
			}
		}

		name := categoryName(item.Category)
		pos, ok := index[name]
		if !ok {
			pos = len(summary.Categories)
			index[name] = pos
			summary.Categories = append(summary.Categories, CategoryStock{Name: name})
		}
		summary.Categories[pos].Stock += item.Quantity
	}

	sort.SliceStable(summary.Categories, func(i, j int) bool {
		return summary.Categories[i].Stock > summary.Categories[j].Stock
	})
	summary.CategoryCount = len(summary.Categories)

	return summary
}

// Lister is satisfied by *inventory.Client
type Lister interface {
	List(ctx context.Context) ([]inventory.Item, error)
}

// Load fetches the listing and summarizes it.
func Load(ctx context.Context, lister Lister, opts ...Option) (Summary, error) {
	items, err := lister.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(items, opts...), nil
}

func categoryName(category string) string {
	if category == "" {
		return UncategorizedLabel
	}
	return category
}
