package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-stockroom/config"
	"github.com/goliatone/go-stockroom/dashboard"
	"github.com/goliatone/go-stockroom/inventory"
)

type runner func(ctx context.Context, a *App) error

// Run parses args, wires the application, restores the previous session and
// executes the command.
func Run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	cmd, rest := ParseCommand(args)
	if cmd == CommandHelp {
		fmt.Fprint(out, usage)
		return nil
	}

	run, opts, err := prepare(cmd, rest, in, out)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := buildApp(ctx, cfg, opts)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer a.Close()

	state := a.Manager.RestoreSession(ctx)
	a.Logger.Debug("session state after restore: %s", state)

	return run(ctx, a)
}

// prepare parses the command flags before anything is wired, so usage
// errors never touch the network.
func prepare(cmd Command, args []string, in io.Reader, out io.Writer) (runner, buildOptions, error) {
	var opts buildOptions
	prompt := newPrompter(in, out)

	switch cmd {
	case CommandLogin:
		fs := newFlagSet(cmd)
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		if err := fs.Parse(args); err != nil {
			return nil, opts, err
		}
		return func(ctx context.Context, a *App) error {
			secret, err := prompt.secret(*password, "Password: ")
			if err != nil {
				return err
			}
			if err := a.Manager.Login(ctx, *email, secret); err != nil {
				return err
			}
			return printWhoAmI(out, a)
		}, opts, nil

	case CommandLogout:
		fs := newFlagSet(cmd)
		global := fs.Bool("global", false, "also revoke tokens at the identity provider")
		if err := fs.Parse(args); err != nil {
			return nil, opts, err
		}
		opts.globalSignOut = *global
		return func(ctx context.Context, a *App) error {
			a.Manager.Logout(ctx)
			fmt.Fprintln(out, "signed out")
			return nil
		}, opts, nil

	case CommandSignUp:
		fs := newFlagSet(cmd)
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		if err := fs.Parse(args); err != nil {
			return nil, opts, err
		}
		return func(ctx context.Context, a *App) error {
			secret, err := prompt.secret(*password, "Password: ")
			if err != nil {
				return err
			}
			result, err := a.Manager.SignUp(ctx, *email, secret)
			if err != nil {
				return err
			}
			if result.ConfirmationRequired() {
				fmt.Fprintln(out, "check your email for a confirmation code, then run confirm-signup")
			}
			return printJSON(out, result)
		}, opts, nil

	case CommandConfirmSignUp:
		fs := newFlagSet(cmd)
		email := fs.String("email", "", "account email")
		code := fs.String("code", "", "confirmation code")
		if err := fs.Parse(args); err != nil {
			return nil, opts, err
		}
		return func(ctx context.Context, a *App) error {
			if err := a.Manager.ConfirmSignUp(ctx, *email, *code); err != nil {
				return err
			}
			fmt.Fprintln(out, "account confirmed, you can now log in")
			return nil
		}, opts, nil

	case CommandForgotPassword:
		fs := newFlagSet(cmd)
		email := fs.String("email", "", "account email")
		if err := fs.Parse(args); err != nil {
			return nil, opts, err
		}
		return func(ctx context.Context, a *App) error {
			delivery, err := a.Manager.ForgotPassword(ctx, *email)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "a reset code was sent, then run confirm-password")
			if delivery != nil {
				return printJSON(out, delivery)
			}
			return nil
		}, opts, nil

	case CommandConfirmPassword:
		fs := newFlagSet(cmd)
		email := fs.String("email", "", "account email")
		code := fs.String("code", "", "reset code")
		password := fs.String("new-password", "", "new password")
		if err := fs.Parse(args); err != nil {
			return nil, opts, err
		}
		return func(ctx context.Context, a *App) error {
			secret, err := prompt.secret(*password, "New password: ")
			if err != nil {
				return err
			}
			if err := a.Manager.ConfirmPassword(ctx, *email, *code, secret); err != nil {
				return err
			}
			fmt.Fprintln(out, "password updated")
			return nil
		}, opts, nil

	case CommandWhoAmI:
		return func(ctx context.Context, a *App) error {
			return printWhoAmI(out, a)
		}, opts, nil

	case CommandItems:
		run, err := prepareItems(args, out)
		return run, opts, err

	case CommandDashboard:
		fs := newFlagSet(cmd)
		threshold := fs.Int("threshold", 0, "low stock threshold, defaults to config")
		if err := fs.Parse(args); err != nil {
			return nil, opts, err
		}
		return func(ctx context.Context, a *App) error {
			dashOpts := a.DashboardOptions()
			if *threshold > 0 {
				dashOpts = append(dashOpts, dashboard.WithLowStockThreshold(*threshold))
			}
			summary, err := dashboard.Load(ctx, a.Inventory, dashOpts...)
			if err != nil {
				return err
			}
			return printJSON(out, summary)
		}, opts, nil

	case CommandServe:
		fs := newFlagSet(cmd)
		addr := fs.String("addr", "", "listen address, defaults to config")
		if err := fs.Parse(args); err != nil {
			return nil, opts, err
		}
		return func(ctx context.Context, a *App) error {
			listen := *addr
			if listen == "" {
				listen = a.Config.ListenAddr
			}
			return serve(ctx, a, listen)
		}, opts, nil
	}

	return nil, opts, fmt.Errorf("unknown command %q", cmd)
}

func prepareItems(args []string, out io.Writer) (runner, error) {
	if len(args) == 0 {
		return nil, errors.New("items: expected list, get, create, update or delete")
	}

	action, rest := args[0], args[1:]
	switch action {
	case "list":
		return func(ctx context.Context, a *App) error {
			items, err := a.Inventory.List(ctx)
			if err != nil {
				return err
			}
			return printJSON(out, items)
		}, nil

	case "get", "delete":
		if len(rest) == 0 {
			return nil, fmt.Errorf("items %s: item id is required", action)
		}
		id := rest[0]
		if action == "get" {
			return func(ctx context.Context, a *App) error {
				item, err := a.Inventory.Get(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(out, item)
			}, nil
		}
		return func(ctx context.Context, a *App) error {
			result, err := a.Inventory.Delete(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(out, result)
		}, nil

	case "create":
		input, err := parseItemInput(rest)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, a *App) error {
			item, err := a.Inventory.Create(ctx, input)
			if err != nil {
				return err
			}
			return printJSON(out, item)
		}, nil

	case "update":
		if len(rest) == 0 {
			return nil, errors.New("items update: item id is required")
		}
		patch, err := parseItemPatch(rest[0], rest[1:])
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, a *App) error {
			item, err := a.Inventory.Update(ctx, patch)
			if err != nil {
				return err
			}
			return printJSON(out, item)
		}, nil
	}

	return nil, fmt.Errorf("items: unknown action %q", action)
}

func parseItemInput(args []string) (inventory.ItemInput, error) {
	fs := newFlagSet("items create")
	input := inventory.ItemInput{}
	fs.StringVar(&input.Name, "name", "", "item name")
	fs.StringVar(&input.Category, "category", "", "item category")
	fs.Float64Var(&input.Price, "price", 0, "unit price")
	fs.IntVar(&input.Quantity, "quantity", 0, "quantity in stock")
	if err := fs.Parse(args); err != nil {
		return input, err
	}
	return input, nil
}

// parseItemPatch only sets the fields whose flags were given.
func parseItemPatch(id string, args []string) (inventory.ItemPatch, error) {
	fs := newFlagSet("items update")
	name := fs.String("name", "", "item name")
	category := fs.String("category", "", "item category")
	price := fs.Float64("price", 0, "unit price")
	quantity := fs.Int("quantity", 0, "quantity in stock")

	patch := inventory.ItemPatch{ItemID: id}
	if err := fs.Parse(args); err != nil {
		return patch, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			patch.Name = name
		case "category":
			patch.Category = category
		case "price":
			patch.Price = price
		case "quantity":
			patch.Quantity = quantity
		}
	})
	return patch, nil
}

func serve(ctx context.Context, a *App, addr string) error {
	srv := a.NewServer()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("listening on %s", addr)
		errCh <- srv.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type whoAmI struct {
	State         string `json:"state"`
	Authenticated bool   `json:"authenticated"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
}

func printWhoAmI(out io.Writer, a *App) error {
	view := whoAmI{
		State:         a.Manager.State().String(),
		Authenticated: a.Manager.IsAuthenticated(),
	}
	if user, ok := a.Manager.User(); ok {
		view.Name = user.Name
		view.Email = user.Email
	}
	return printJSON(out, view)
}

func printJSON(out io.Writer, value any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func newFlagSet(name Command) *flag.FlagSet {
	fs := flag.NewFlagSet(string(name), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	if in == nil {
		in = strings.NewReader("")
	}
	return &prompter{in: bufio.NewReader(in), out: out}
}

// secret returns value, then STOCKROOM_PASSWORD, then a line read from in.
func (p *prompter) secret(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	if env := os.Getenv("STOCKROOM_PASSWORD"); env != "" {
		return env, nil
	}

	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
