package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/MdanzDev/nickstore/internal/config"
	"github.com/MdanzDev/nickstore/internal/fulfillment"
	"github.com/MdanzDev/nickstore/internal/storage"
	"github.com/MdanzDev/nickstore/internal/store"
	"github.com/MdanzDev/nickstore/internal/validation"
)

const closeTimeout = 10 * time.Second

// session is the store opened for one command invocation.
type session struct {
	m  *store.Manager
	wa *fulfillment.WhatsApp
}

func newApp(log *logrus.Logger) *cli.App {
	s := &session{}

	return &cli.App{
		Name:  "nickstore",
		Usage: "manage the local top-up cart, order history and theme",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Value:   ".nickstore",
				Usage:   "directory holding the store state",
				EnvVars: []string{"NICKSTORE_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "whatsapp",
				Value:   fulfillment.DefaultWhatsAppNumber,
				Usage:   "order line number for checkout links",
				EnvVars: []string{"NICKSTORE_WHATSAPP_NUMBER"},
			},
			&cli.StringFlag{
				Name:    "tz",
				Value:   "Asia/Kuala_Lumpur",
				Usage:   "time zone for order dates",
				EnvVars: []string{"NICKSTORE_TIME_ZONE"},
			},
		},
		Before: func(c *cli.Context) error { return s.open(c, log) },
		After:  func(c *cli.Context) error { return s.close() },
		Commands: []*cli.Command{
			cartCommand(s),
			checkoutCommand(s),
			historyCommand(s),
			themeCommand(s),
		},
	}
}

func (s *session) open(c *cli.Context, log *logrus.Logger) error {
	kv, err := storage.NewFile(c.String("data-dir"))
	if err != nil {
		return fmt.Errorf("open data dir: %w", err)
	}
	loc := config.Config{TimeZone: c.String("tz")}.Location()

	s.wa = fulfillment.NewWhatsApp(c.String("whatsapp"), loc, log)
	// the link is printed by the checkout command
	s.wa.Open = func(context.Context, string, string) error { return nil }

	s.m = store.New(kv,
		store.WithLogger(log),
		store.WithLocation(loc),
		store.WithFulfiller(fulfillment.Handoff{Channel: s.wa}),
	)
	return s.m.Load(c.Context)
}

func (s *session) close() error {
	if s.m == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := s.m.Close(ctx); err != nil {
		return fmt.Errorf("save store state: %w", err)
	}
	if err := s.m.PersistErr(); err != nil {
		return fmt.Errorf("save store state: %w", err)
	}
	return nil
}

func cartCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:  "cart",
		Usage: "show and edit the cart",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list cart items with the total",
				Action: func(c *cli.Context) error { return printCart(c.App.Writer, s.m.Snapshot()) },
			},
			{
				Name:  "add",
				Usage: "add a top-up package",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "game", Required: true},
					&cli.StringFlag{Name: "slug", Required: true, Usage: "game slug, e.g. mobile-legends"},
					&cli.StringFlag{Name: "denom", Required: true, Usage: "package label"},
					&cli.StringFlag{Name: "price", Required: true, Usage: "price in RM"},
					&cli.StringFlag{Name: "user", Required: true, Usage: "player user id"},
					&cli.StringFlag{Name: "zone", Usage: "player zone id"},
					&cli.StringFlag{Name: "icon"},
					&cli.StringFlag{Name: "product", Required: true, Usage: "product id"},
				},
				Action: func(c *cli.Context) error {
					price, err := decimal.NewFromString(c.String("price"))
					if err != nil {
						return fmt.Errorf("invalid price %q", c.String("price"))
					}
					req := validation.AddToCartRequest{
						Game:      c.String("game"),
						GameSlug:  c.String("slug"),
						Denom:     c.String("denom"),
						Price:     price,
						UserID:    c.String("user"),
						ZoneID:    c.String("zone"),
						Icon:      c.String("icon"),
						ProductID: c.String("product"),
					}
					if err := validation.Validate(validation.New(), &req); err != nil {
						return fmt.Errorf("invalid item: %v", validation.ErrorsToMap(err))
					}
					id := s.m.AddToCart(req.Item())
					fmt.Fprintf(c.App.Writer, "added %d\n", id)
					return nil
				},
			},
			{
				Name:      "remove",
				Usage:     "remove an item by id",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := strconv.ParseInt(c.Args().First(), 10, 64)
					if err != nil {
						return fmt.Errorf("invalid item id %q", c.Args().First())
					}
					if !s.m.RemoveFromCart(id) {
						fmt.Fprintf(c.App.Writer, "no item %d\n", id)
						return nil
					}
					fmt.Fprintf(c.App.Writer, "removed %d\n", id)
					return nil
				},
			},
			{
				Name:  "clear",
				Usage: "empty the cart",
				Action: func(c *cli.Context) error {
					s.m.ClearCart()
					return nil
				},
			},
		},
	}
}

func checkoutCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:  "checkout",
		Usage: "turn the cart into an order and print the WhatsApp link",
		Action: func(c *cli.Context) error {
			id, err := s.m.Checkout(c.Context)
			if id == "" && err == nil {
				fmt.Fprintln(c.App.Writer, "cart is empty")
				return nil
			}
			if err != nil && !errors.Is(err, store.ErrHandoffFailed) {
				return err
			}
			order, _ := s.m.Order(id)
			fmt.Fprintf(c.App.Writer, "order %s  RM %s\n", id, order.Total.StringFixed(2))
			fmt.Fprintln(c.App.Writer, s.wa.Link(fulfillment.NewPayload(order)))
			return err
		},
	}
}

func historyCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "show past orders",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list orders, newest first",
				Action: func(c *cli.Context) error {
					for _, o := range s.m.History() {
						fmt.Fprintf(c.App.Writer, "%s  %s  %d items  RM %s  %s\n",
							o.ID, o.Date, len(o.Items), o.Total.StringFixed(2), o.Status)
					}
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "print one order",
				ArgsUsage: "<order id>",
				Action: func(c *cli.Context) error {
					o, ok := s.m.Order(c.Args().First())
					if !ok {
						return fmt.Errorf("order %q not found", c.Args().First())
					}
					fmt.Fprint(c.App.Writer, fulfillment.NewPayload(o).Message(s.wa.Location))
					fmt.Fprintln(c.App.Writer)
					return nil
				},
			},
			{
				Name:  "clear",
				Usage: "delete all orders",
				Action: func(c *cli.Context) error {
					s.m.ClearHistory()
					return nil
				},
			},
		},
	}
}

func themeCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:  "theme",
		Usage: "show or change the display theme",
		Subcommands: []*cli.Command{
			{
				Name: "get",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, s.m.Theme())
					return nil
				},
			},
			{
				Name:      "set",
				ArgsUsage: "dark|light",
				Action: func(c *cli.Context) error {
					t, ok := store.ParseTheme(c.Args().First())
					if !ok {
						return fmt.Errorf("unknown theme %q", c.Args().First())
					}
					return s.m.SetTheme(t)
				},
			},
			{
				Name: "toggle",
				Action: func(c *cli.Context) error {
					t := s.m.Theme().Toggle()
					if err := s.m.SetTheme(t); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, t)
					return nil
				},
			},
		},
	}
}

func printCart(w io.Writer, snap store.Snapshot) error {
	if snap.CartCount == 0 {
		_, err := fmt.Fprintln(w, "cart is empty")
		return err
	}
	for _, it := range snap.Cart {
		player := it.UserID
		if it.HasZone() {
			player += " (" + it.ZoneID + ")"
		}
		fmt.Fprintf(w, "%d  %s  %s  %s  RM %s\n", it.ID, it.Game, it.Denom, player, it.Price.StringFixed(2))
	}
	_, err := fmt.Fprintf(w, "%d items  total RM %s\n", snap.CartCount, snap.CartTotal.StringFixed(2))
	return err
}
