package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/petrijr/quest"
)

type order struct {
	SKU       string
	Quantity  int
	UnitCents int
}

type invoice struct {
	SKU        string
	TotalCents int
}

var errEmptyOrder = errors.New("order quantity must be positive")

// parseOrder reads "SKU:quantity:unitCents".
func parseOrder(_ context.Context, raw string) (order, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return order{}, fmt.Errorf("malformed order %q", raw)
	}
	qty, err := strconv.Atoi(parts[1])
	if err != nil {
		return order{}, fmt.Errorf("order %q: quantity: %w", raw, err)
	}
	unit, err := strconv.Atoi(parts[2])
	if err != nil {
		return order{}, fmt.Errorf("order %q: unit price: %w", raw, err)
	}
	return order{SKU: parts[0], Quantity: qty, UnitCents: unit}, nil
}

func validateOrder(_ context.Context, o order) error {
	if o.Quantity <= 0 {
		return errEmptyOrder
	}
	return nil
}

func priceOrder(_ context.Context, o order) (invoice, error) {
	return invoice{SKU: o.SKU, TotalCents: o.Quantity * o.UnitCents}, nil
}

// newPipeline returns the stages every order message goes through. Invoices
// are printed to out once they are final.
func newPipeline(logger *slog.Logger, out io.Writer) func(context.Context, *quest.Quest[string]) error {
	return func(ctx context.Context, q *quest.Quest[string]) error {
		parsed, err := quest.SelectAsync(ctx, q, parseOrder)
		if err != nil {
			return err
		}
		parsed, err = quest.TapAsync(ctx, parsed, func(ctx context.Context, o order) error {
			logger.DebugContext(ctx, "order_parsed",
				slog.String("quest_id", q.ID()),
				slog.String("sku", o.SKU),
				slog.Int("quantity", o.Quantity),
			)
			return nil
		})
		if err != nil {
			return err
		}
		if _, err := quest.TapAsync(ctx, parsed, validateOrder); err != nil {
			return err
		}
		priced, err := quest.SelectAsync(ctx, parsed, priceOrder)
		if err != nil {
			return err
		}
		return quest.CompleteAsync(ctx, priced, func(_ context.Context, inv invoice) error {
			_, err := fmt.Fprintf(out, "invoice %s: %d.%02d\n", inv.SKU, inv.TotalCents/100, inv.TotalCents%100)
			return err
		})
	}
}
