package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hitoshi/ecofinds/internal/config"
	"github.com/hitoshi/ecofinds/internal/localcart"
)

const cartUsage = "usage: ecofinds cart <list|add <productId> [quantity]|remove <productId>|set <productId> <quantity>|clear|sync>"

// syncTimeout はcart syncのHTTPタイムアウト。
const syncTimeout = 15 * time.Second

// errCartUsage はcartサブコマンドの引数が不正であることを示す。
var errCartUsage = errors.New(cartUsage)

// runCart はLOCAL_CART_PATHのローカルカートを開き、cartサブコマンドを実行する。
func runCart(ctx context.Context, w io.Writer, cfg *config.Config, args []string) error {
	store, err := localcart.OpenSQLite(cfg.LocalCartPath)
	if err != nil {
		return fmt.Errorf("failed to open local cart: %w", err)
	}
	defer store.Close()

	cache := localcart.NewCache(store)
	return execCart(ctx, w, cache, cfg, args)
}

// execCart はcartサブコマンドを解釈して実行する。
func execCart(ctx context.Context, w io.Writer, cache *localcart.Cache, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return errCartUsage
	}

	switch args[0] {
	case "list":
		return printCart(ctx, w, cache)

	case "add":
		if len(args) < 2 || len(args) > 3 {
			return errCartUsage
		}
		quantity := 1
		if len(args) == 3 {
			q, err := parseQuantity(args[2])
			if err != nil {
				return err
			}
			quantity = q
		}
		if err := cache.Add(ctx, args[1], quantity); err != nil {
			return err
		}
		return printCount(ctx, w, cache)

	case "remove":
		if len(args) != 2 {
			return errCartUsage
		}
		if err := cache.Remove(ctx, args[1]); err != nil {
			return err
		}
		return printCount(ctx, w, cache)

	case "set":
		if len(args) != 3 {
			return errCartUsage
		}
		q, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[2])
		}
		if err := cache.SetQuantity(ctx, args[1], q); err != nil {
			return err
		}
		return printCount(ctx, w, cache)

	case "clear":
		if err := cache.Clear(ctx); err != nil {
			return err
		}
		return printCount(ctx, w, cache)

	case "sync":
		if cfg.APIToken == "" {
			return errors.New("ECOFINDS_TOKEN is required for cart sync")
		}
		client := localcart.NewSyncClient(cfg.APIBaseURL, cfg.APIToken, syncTimeout)
		res, err := client.Merge(ctx, cache)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "merged %d lines, server cart now has %d items\n", res.Merged, res.ItemCount)
		if len(res.Skipped) > 0 {
			fmt.Fprintf(w, "skipped (no longer listed): %s\n", strings.Join(res.Skipped, ", "))
		}
		return nil

	default:
		return errCartUsage
	}
}

func parseQuantity(s string) (int, error) {
	q, err := strconv.Atoi(s)
	if err != nil || q < 1 {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	return q, nil
}

func printCart(ctx context.Context, w io.Writer, cache *localcart.Cache) error {
	lines, err := cache.Lines(ctx)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		fmt.Fprintln(w, "cart is empty")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tQUANTITY\tADDED")
	total := 0
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", l.ProductID, l.Quantity, l.AddedAt.Format(time.RFC3339))
		total += l.Quantity
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d items\n", total)
	return nil
}

func printCount(ctx context.Context, w io.Writer, cache *localcart.Cache) error {
	n, err := cache.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d items\n", n)
	return nil
}
