// Command cartctl drives a user's cart from the terminal through the same
// sync engine the mini-app uses.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"lingxian-cart/internal/cart"
	"lingxian-cart/internal/client"
	"lingxian-cart/internal/config"
	"lingxian-cart/internal/domain"
	"lingxian-cart/internal/logger"
	"lingxian-cart/internal/metrics"
	"lingxian-cart/internal/session"
)

const usage = `usage: cartctl [flags] <command> [args]

commands:
  login <userId>                      obtain a token via development login and keep
                                      it in the session store (needs SESSION_BACKEND=redis)
  list                                show the cart
  add <productId> [quantity]          add a product (quantity defaults to 1)
  qty <lineId> <quantity>             set a line quantity (below 1 removes it)
  rm <lineId>                         remove a line
  select <lineId> <true|false>        select or deselect a line
  select-merchant <merchantId> <bool> select or deselect a merchant group
  select-all <true|false>             select or deselect everything
  clear                               empty the cart

With the default in-process session store the token is gone when cartctl
exits: pass -as <userId> on every call, export CART_TOKEN, or set
SESSION_BACKEND=redis to keep it between calls.

flags:
`

func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr}).With(zap.String("app", "cartctl"))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdout, log); err != nil {
		fmt.Fprintln(os.Stderr, "cartctl:", err)
		os.Exit(1)
	}
}

type app struct {
	out      io.Writer
	session  session.Store
	caller   *client.Client
	store    *cart.Store
	notifier *cart.LogNotifier
	stats    *metrics.Registry
}

func run(ctx context.Context, cfg config.Config, args []string, out io.Writer, log *zap.Logger) error {
	fs := flag.NewFlagSet("cartctl", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprint(out, usage)
		fs.PrintDefaults()
	}
	as := fs.String("as", "", "dev-login as this user id before running the command")
	baseURL := fs.String("api", cfg.Client.BaseURL, "API base URL")
	showStats := fs.Bool("metrics", false, "print cart operation counters after the command")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	if cmd == "login" && !persistentSession(cfg) {
		return errors.New("login would not outlive this process with the memory session backend; " +
			"use -as <userId>, CART_TOKEN, or SESSION_BACKEND=redis")
	}

	sess, closeSession, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSession()
	if cfg.Client.Token != "" {
		if err := sess.Set(ctx, session.KeyToken, cfg.Client.Token); err != nil {
			return err
		}
	}

	caller, err := client.New(client.Config{
		BaseURL:   *baseURL,
		Timeout:   cfg.Client.Timeout,
		RateLimit: cfg.Client.RateLimit,
		Retry:     client.DefaultRetryConfig(),
		UserAgent: "cartctl",
	}, sess, log)
	if err != nil {
		return err
	}

	a := &app{out: out, session: sess, caller: caller, notifier: cart.NewLogNotifier(log), stats: metrics.NewRegistry()}

	if *as != "" {
		if err := a.login(ctx, *as); err != nil {
			return err
		}
	}
	if cmd == "login" {
		if len(rest) != 1 {
			return errors.New("login needs <userId>")
		}
		return a.login(ctx, rest[0])
	}

	a.store = cart.NewStore(client.NewCartAPI(caller, cfg.Client.CartRoot), a.notifier,
		cart.WithLogger(log), cart.WithObserver(a.stats))
	if err := a.store.FetchList(ctx); err != nil {
		return a.explain(err)
	}
	if err := a.dispatch(ctx, cmd, rest); err != nil {
		return a.explain(err)
	}
	a.print()
	if *showStats {
		return a.printStats()
	}
	return nil
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list":
		return nil
	case "add":
		if len(args) < 1 || len(args) > 2 {
			return errors.New("add needs <productId> [quantity]")
		}
		quantity := 1
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity: %w", err)
			}
			quantity = n
		}
		return a.store.Add(ctx, args[0], quantity)
	case "qty":
		if len(args) != 2 {
			return errors.New("qty needs <lineId> <quantity>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("quantity: %w", err)
		}
		return a.store.UpdateQuantity(ctx, args[0], n)
	case "rm":
		if len(args) != 1 {
			return errors.New("rm needs <lineId>")
		}
		return a.store.Remove(ctx, args[0])
	case "select", "select-merchant":
		if len(args) != 2 {
			return fmt.Errorf("%s needs <id> <true|false>", cmd)
		}
		selected, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("selected: %w", err)
		}
		if cmd == "select" {
			return a.store.Select(ctx, args[0], selected)
		}
		return a.store.SelectMerchant(ctx, args[0], selected)
	case "select-all":
		if len(args) != 1 {
			return errors.New("select-all needs <true|false>")
		}
		selected, err := strconv.ParseBool(args[0])
		if err != nil {
			return fmt.Errorf("selected: %w", err)
		}
		return a.store.SelectAll(ctx, selected)
	case "clear":
		return a.store.Clear(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) login(ctx context.Context, userID string) error {
	res, err := client.Login(ctx, a.caller, a.session, userID)
	if err != nil {
		return a.explain(err)
	}
	fmt.Fprintf(a.out, "logged in as %s\ntoken: %s\n", userID, res.Token)
	return nil
}

// explain prefixes err with the text a user would have seen as a toast.
func (a *app) explain(err error) error {
	if domain.IsSessionExpired(err) {
		return fmt.Errorf("session expired, log in again with -as <userId>: %w", err)
	}
	return fmt.Errorf("%s: %w", domain.UserMessage(err), err)
}

func (a *app) print() {
	c := a.store.Snapshot()
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if len(c.Groups) == 0 {
		fmt.Fprintln(tw, "cart is empty")
	}
	for _, g := range c.Groups {
		mark := " "
		if g.AllSelected {
			mark = "x"
		}
		fmt.Fprintf(tw, "[%s] %s\t(%s)\n", mark, g.MerchantName, g.MerchantID)
		for _, item := range g.Items {
			sel := " "
			if item.Selected {
				sel = "x"
			}
			fmt.Fprintf(tw, "  [%s] %s\t%s\tx%d\t%s\n", sel, item.Name, item.ID, item.Quantity, item.Price.StringFixed(2))
		}
	}
	fmt.Fprintf(tw, "total\t%d items\t%s\n", c.TotalCount, c.TotalPrice.StringFixed(2))
	fmt.Fprintf(tw, "selected\t%d items\t%s\n", c.SelectedCount, c.SelectedPrice.StringFixed(2))
	if badge := a.notifier.Badge(); badge != "" {
		fmt.Fprintf(tw, "badge\t%s\n", badge)
	}
	if toast := a.notifier.LastToast(); toast != "" {
		fmt.Fprintf(tw, "message\t%s\n", toast)
	}
}

func (a *app) printStats() error {
	counts, err := a.stats.MutationCounts()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(a.out, "%s %g\n", k, counts[k])
	}
	return nil
}

func persistentSession(cfg config.Config) bool {
	return cfg.Client.SessionBackend == "redis"
}

func openSession(ctx context.Context, cfg config.Config) (session.Store, func(), error) {
	switch cfg.Client.SessionBackend {
	case "", "memory":
		return session.NewMemory(0), func() {}, nil
	case "redis":
		r, err := session.NewRedis(ctx, session.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.Client.SessionBackend)
	}
}
