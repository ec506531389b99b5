package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/dukerupert/larder/internal/client"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/projection"
	"github.com/shopspring/decimal"
)

func watchSettings(opts docopt.Opts) (projection.Settings, error) {
	set := projection.DefaultSettings(time.Now())
	set.Filter, _ = opts.String("--filter")
	set.SortKey, _ = opts.String("--sort")
	if v, _ := opts.String("--threshold"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return set, fmt.Errorf("--threshold must be a number")
		}
		set.LowStockThreshold = d
	}
	if v, _ := opts.String("--days"); v != "" {
		n, err := fmt.Sscanf(v, "%d", &set.ExpiringDays)
		if err != nil || n != 1 || set.ExpiringDays < 0 {
			return set, fmt.Errorf("--days must be a non-negative integer")
		}
	}
	return set, nil
}

func watch(ctx context.Context, opts docopt.Opts) error {
	name, _ := opts.String("<collection>")
	c, err := model.ParseCollection(name)
	if err != nil {
		return err
	}
	set, err := watchSettings(opts)
	if err != nil {
		return err
	}
	cl, err := newClient()
	if err != nil {
		return err
	}

	switch c {
	case model.CollectionShopping:
		return watchLens(ctx, cl, projection.Shopping(), set, shoppingLine)
	case model.CollectionInventory:
		return watchLens(ctx, cl, projection.Inventory(), set, inventoryLine)
	case model.CollectionBudget:
		return watchLens(ctx, cl, projection.Budget(), set, budgetLine)
	default:
		return watchLens(ctx, cl, projection.Prices(), set, priceLine)
	}
}

func watchLens[T model.Record](ctx context.Context, cl *client.Client, lens projection.Lens[T], set projection.Settings, line func(T) string) error {
	if set.SortKey != "" && !lens.HasSortKey(set.SortKey) {
		return fmt.Errorf("cannot sort %s by %q (try %s)", lens.Collection, set.SortKey, strings.Join(lens.SortKeys(), ", "))
	}
	p := projection.NewProjector(lens, set, func(s projection.State[T]) {
		render(os.Stdout, lens.Collection, s, line)
	})
	return client.Watch(ctx, cl, p)
}

func render[T model.Record](out io.Writer, c model.Collection, s projection.State[T], line func(T) string) {
	v := s.Views
	fmt.Fprintf(out, "\n== %s  %d shown, total %s  (%s)\n", c, len(v.Items), v.Total.StringFixed(2), time.Now().Format("15:04:05"))
	if s.Degraded() {
		fmt.Fprintf(out, "!! live updates failed, showing last known data: %v\n", s.Err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range v.Items {
		fmt.Fprintln(tw, line(r))
	}
	tw.Flush()

	if len(v.Buckets) > 0 {
		parts := make([]string, len(v.Buckets))
		for i, b := range v.Buckets {
			parts[i] = fmt.Sprintf("%s %s", b.Key, b.Total.StringFixed(2))
		}
		fmt.Fprintf(out, "by category: %s\n", strings.Join(parts, ", "))
	}
	if len(v.LowStock) > 0 {
		fmt.Fprintf(out, "low stock: %s\n", names(v.LowStock, line))
	}
	if len(v.ExpiringSoon) > 0 {
		fmt.Fprintf(out, "expiring soon: %s\n", names(v.ExpiringSoon, line))
	}
}

func names[T model.Record](records []T, line func(T) string) string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i], _, _ = strings.Cut(line(r), "\t")
	}
	return strings.Join(out, ", ")
}

func shoppingLine(i model.ShoppingItem) string {
	status := ""
	switch {
	case i.AddedToInventory:
		status = "in pantry"
	case i.Purchased:
		status = "bought"
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s", i.Name, i.Quantity, i.Category, i.LineTotal().StringFixed(2), status, i.ID)
}

func inventoryLine(i model.InventoryItem) string {
	expires := i.ExpirationDate
	if expires == "" {
		expires = "-"
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s", i.Name, i.Quantity, i.Category, expires, i.ID)
}

func budgetLine(e model.BudgetExpense) string {
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s", e.Name, e.Date, e.Category, e.Amount.StringFixed(2), e.ID)
}

func priceLine(p model.PriceEntry) string {
	return fmt.Sprintf("%s\t%s\t%s\t%s", p.Item, p.Store, p.Price.StringFixed(2), p.ID)
}
