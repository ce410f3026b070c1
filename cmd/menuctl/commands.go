package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"

	"github.com/example/menuboard/internal/qrcode"
	"github.com/example/menuboard/pkg/apitypes"
	"github.com/example/menuboard/pkg/guard"
	"github.com/example/menuboard/pkg/session"
)

// runner opens an app for one command and tears it down afterwards.
type runner func(ctx context.Context, fn func(ctx context.Context, a *app) error) error

func registerCommands(r *CommandRegistry, run runner, out io.Writer) {
	r.Register(&Command{
		Name:        "whoami",
		Description: "Sign in and show the account, restaurant and subscription",
		Usage:       "menuctl whoami",
		Examples:    []string{"MENUBOARD_EMAIL=owner@example.com MENUBOARD_PASSWORD=secret menuctl whoami"},
		Run: func(args []string) error {
			return run(context.Background(), func(ctx context.Context, a *app) error {
				st, err := a.signIn(ctx)
				if err != nil {
					return err
				}
				printState(out, st)
				return nil
			})
		},
	})

	navigate := &Command{
		Name:        "navigate",
		Description: "Evaluate the route guards for a path",
		Usage:       "menuctl navigate <path> [--anonymous]",
		Examples: []string{
			"menuctl navigate /dashboard",
			"menuctl navigate '/dashboard?tab=menu'",
			"menuctl navigate /admin --anonymous",
		},
	}
	navigate.Run = func(args []string) error {
		fs := navigate.NewFlagSet()
		anonymous := fs.Bool("anonymous", false, "evaluate without signing in")
		target, rest := splitPositional(args)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if target == "" {
			target = fs.Arg(0)
		}
		if target == "" {
			navigate.PrintUsage(os.Stderr)
			return errors.New("navigate requires a path")
		}
		return run(context.Background(), func(ctx context.Context, a *app) error {
			if !*anonymous {
				if _, err := a.signIn(ctx); err != nil {
					return err
				}
			}
			d, err := a.nav.Resolve(ctx, target)
			printDecision(out, target, d)
			return err
		})
	}
	r.Register(navigate)

	r.Register(&Command{
		Name:        "admin-login",
		Description: "Sign in through the admin login and verify the admin role",
		Usage:       "menuctl admin-login",
		Run: func(args []string) error {
			return run(context.Background(), func(ctx context.Context, a *app) error {
				email, password, err := a.cfg.credentials()
				if err != nil {
					return err
				}
				snap, err := a.session.AdminLogin(ctx, email, password)
				if err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(out, "✓ Signed in as administrator %s\n", snap.User.Email)
				return nil
			})
		},
	})

	setup := &Command{
		Name:        "setup",
		Description: "Create the signed-in user's restaurant",
		Usage:       "menuctl setup --name <name> [--slug <slug>] [--description <text>] [--address <text>] [--phone <phone>]",
		Examples: []string{
			"menuctl setup --name 'Cafe Luna'",
			"menuctl setup --name 'Cafe Luna' --slug cafe-luna --phone '+1 555 0100'",
		},
	}
	setup.Run = func(args []string) error {
		fs := setup.NewFlagSet()
		var req apitypes.SetupRestaurantRequest
		fs.StringVar(&req.Name, "name", "", "restaurant name")
		fs.StringVar(&req.Slug, "slug", "", "public menu slug (derived from the name when empty)")
		fs.StringVar(&req.Description, "description", "", "short description")
		fs.StringVar(&req.LogoURL, "logo", "", "logo URL")
		fs.StringVar(&req.Address, "address", "", "street address")
		fs.StringVar(&req.Phone, "phone", "", "contact phone")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if req.Name == "" {
			setup.PrintUsage(os.Stderr)
			return errors.New("--name is required")
		}
		return run(context.Background(), func(ctx context.Context, a *app) error {
			st, err := a.signIn(ctx)
			if err != nil {
				return err
			}
			if st.Snapshot.Onboarded() {
				return fmt.Errorf("restaurant %q is already set up", st.Snapshot.Restaurant.Name)
			}
			rest, err := a.api.SetupRestaurant(ctx, req)
			if err != nil {
				return err
			}
			green := color.New(color.FgGreen)
			green.Fprintf(out, "✓ Created %s\n", rest.Name)
			fmt.Fprintf(out, "  Menu: %s\n", rest.QRTarget)
			return nil
		})
	}
	r.Register(setup)

	qr := &Command{
		Name:        "qrcode",
		Description: "Regenerate the restaurant QR code and save it as PNG",
		Usage:       "menuctl qrcode [--out <file>]",
		Examples:    []string{"menuctl qrcode --out menu.png"},
	}
	qr.Run = func(args []string) error {
		fs := qr.NewFlagSet()
		outPath := fs.String("out", "menu-qr.png", "PNG output path")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return run(context.Background(), func(ctx context.Context, a *app) error {
			if _, err := a.signIn(ctx); err != nil {
				return err
			}
			resp, err := a.api.RegenerateQRCode(ctx)
			if err != nil {
				return err
			}
			png, err := qrcode.DecodeDataURI(resp.QRCode)
			if err != nil {
				return err
			}
			if err := os.WriteFile(*outPath, png, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", *outPath, err)
			}
			color.New(color.FgGreen).Fprintf(out, "✓ QR code for %s written to %s\n", resp.QRTarget, *outPath)
			return nil
		})
	}
	r.Register(qr)

	fb := &Command{
		Name:        "feedback",
		Description: "List customer feedback for the restaurant",
		Usage:       "menuctl feedback [--page <n>] [--limit <n>]",
		Examples:    []string{"menuctl feedback --page 2 --limit 20"},
	}
	fb.Run = func(args []string) error {
		fs := fb.NewFlagSet()
		page := fs.Int("page", 1, "page number")
		limit := fs.Int("limit", 10, "items per page")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return run(context.Background(), func(ctx context.Context, a *app) error {
			if _, err := a.signIn(ctx); err != nil {
				return err
			}
			fp, err := a.api.ListFeedback(ctx, *page, *limit)
			if err != nil {
				return err
			}
			printFeedback(out, fp)
			return nil
		})
	}
	r.Register(fb)

	r.Register(&Command{
		Name:        "users",
		Description: "List all users (administrators only)",
		Usage:       "menuctl users",
		Run: func(args []string) error {
			return run(context.Background(), func(ctx context.Context, a *app) error {
				email, password, err := a.cfg.credentials()
				if err != nil {
					return err
				}
				if _, err := a.session.AdminLogin(ctx, email, password); err != nil {
					return err
				}
				users, err := a.api.ListUsers(ctx)
				if err != nil {
					return err
				}
				printUsers(out, users)
				return nil
			})
		},
	})
}

// splitPositional pulls a leading non-flag argument off args so that
// "navigate /admin --anonymous" parses the same as "navigate --anonymous /admin".
func splitPositional(args []string) (string, []string) {
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		return args[0], args[1:]
	}
	return "", args
}

func printState(w io.Writer, st session.State) {
	cyan := color.New(color.FgCyan)
	if !st.Authenticated() {
		color.New(color.FgYellow).Fprintln(w, "Not signed in")
		return
	}
	if st.Snapshot == nil {
		color.New(color.FgYellow).Fprintf(w, "Signed in as %s, account details unavailable\n", st.User.Email)
		return
	}
	u := st.Snapshot.User
	cyan.Fprintln(w, "Account")
	fmt.Fprintf(w, "  UID:   %s\n", u.ID)
	fmt.Fprintf(w, "  Email: %s\n", u.Email)
	fmt.Fprintf(w, "  Role:  %s\n", u.Role)

	cyan.Fprintln(w, "Restaurant")
	if r := st.Snapshot.Restaurant; r != nil {
		fmt.Fprintf(w, "  Name:  %s\n", r.Name)
		fmt.Fprintf(w, "  Slug:  %s\n", r.Slug)
		fmt.Fprintf(w, "  Views: %d\n", r.Views)
	} else {
		fmt.Fprintln(w, "  not set up (run 'menuctl setup')")
	}

	if s := st.Snapshot.Subscription; s != nil {
		cyan.Fprintln(w, "Subscription")
		status := color.New(color.FgGreen).Sprint("active")
		if !s.Active {
			status = color.New(color.FgRed).Sprint("inactive")
		}
		fmt.Fprintf(w, "  Plan:    %s (%s)\n", s.Plan, status)
		fmt.Fprintf(w, "  Expires: %s (%d days left)\n", s.ExpiresAt.Format(time.RFC3339), s.DaysRemaining)
	}
}

func printDecision(w io.Writer, target string, d guard.Decision) {
	switch d.Action {
	case guard.Allow:
		color.New(color.FgGreen).Fprintf(w, "allow    %s", target)
	case guard.Redirect:
		color.New(color.FgYellow).Fprintf(w, "redirect %s -> %s", target, d.Target)
	default:
		fmt.Fprintf(w, "%s %s", d.Action, target)
	}
	if d.State != "" {
		fmt.Fprintf(w, " [%s]", d.State)
	}
	fmt.Fprintln(w)
}

func printFeedback(w io.Writer, fp *apitypes.FeedbackPage) {
	fmt.Fprintf(w, "Page %d of %d, %d reviews, average %.1f\n", fp.Page, fp.TotalPages, fp.Total, fp.AverageRating)
	if len(fp.Items) == 0 {
		return
	}
	table := NewTableWriter([]string{"DATE", "RATING", "CUSTOMER", "COMMENT"})
	for _, f := range fp.Items {
		table.AddRow([]string{
			f.CreatedAt.Format("2006-01-02"),
			strconv.Itoa(f.Rating),
			f.CustomerName,
			truncate(f.Comment, 60),
		})
	}
	table.Print(w)
}

func printUsers(w io.Writer, users []apitypes.User) {
	table := NewTableWriter([]string{"UID", "EMAIL", "ROLE", "STATUS"})
	for _, u := range users {
		status := "active"
		if u.Disabled {
			status = "disabled"
		}
		table.AddRow([]string{u.ID, u.Email, string(u.Role), status})
	}
	table.Print(w)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
