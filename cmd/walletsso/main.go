package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/layer-3/walletsso/config"
	"github.com/layer-3/walletsso/core"
	transport "github.com/layer-3/walletsso/transport/http"
)

func main() {
	app := cli.NewApp()
	app.Name = "walletsso"
	app.Usage = "Wallet based sign-in against a WalletSSO backend"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "Config file",
			Value:  "walletsso.yaml",
			EnvVar: "WALLETSSO_CONFIG",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:  "wallets",
			Usage: "List known wallets and whether they were detected",
			Flags: []cli.Flag{
				cli.StringSliceFlag{
					Name:  "chain",
					Usage: "Only list wallets of this chain (repeatable)",
				},
			},
			Action: withApp(listWallets),
		},
		{
			Name:   "status",
			Usage:  "Show the stored session as seen by the backend",
			Action: withApp(showStatus),
		},
		{
			Name:   "refresh",
			Usage:  "Exchange the stored token for a fresh one",
			Action: withApp(refresh),
		},
		{
			Name:   "logout",
			Usage:  "End the stored session",
			Action: withApp(logout(false)),
		},
		{
			Name:   "logout-all",
			Usage:  "End every session of the stored user",
			Action: withApp(logout(true)),
		},
		{
			Name:  "qr",
			Usage: "Sign in by scanning a QR code with a mobile wallet",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "out, o",
					Usage: "Where to write the QR code PNG",
					Value: "walletsso-qr.png",
				},
			},
			Action: withApp(loginQR),
		},
		{
			Name:      "approve",
			Usage:     "Approve a QR session with a wallet on this host",
			ArgsUsage: "<session-id> <wallet-id>",
			Action:    withApp(approve),
		},
		{
			Name:   "oauth-url",
			Usage:  "Print the OAuth authorization URL",
			Action: withApp(oauthURL),
		},
		{
			Name:   "serve",
			Usage:  "Serve the auth endpoints over HTTP",
			Action: withApp(serve),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type action func(ctx context.Context, c *cli.Context, a *app) error

// withApp loads the config, wires the engine and tears it down after fn
func withApp(fn action) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		cfg, err := config.Load(c.GlobalString("config"))
		if err != nil {
			return err
		}
		a, err := wire(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := a.svc.Restore(ctx); err != nil {
			a.log.Warn("session restore failed", map[string]any{"error": err})
		}
		return fn(ctx, c, a)
	}
}

func listWallets(ctx context.Context, c *cli.Context, a *app) error {
	chains, err := chainFilter(a.cfg, c.StringSlice("chain"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCHAIN\tINSTALLED\tDOWNLOAD")
	for _, wallet := range a.svc.Wallets(ctx) {
		if len(chains) > 0 && !slices.Contains(chains, wallet.Chain) {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", wallet.ID, wallet.Name, wallet.Chain, wallet.Installed, wallet.DownloadURL)
	}
	return w.Flush()
}

// chainFilter parses chain names, rejecting chains the config leaves out
func chainFilter(cfg config.Config, names []string) ([]core.ChainType, error) {
	var chains []core.ChainType
	for _, name := range names {
		chain, err := core.ParseChain(name)
		if err != nil {
			return nil, err
		}
		if !cfg.HasChain(chain) {
			return nil, fmt.Errorf("chain %s is not enabled in the config", chain)
		}
		chains = append(chains, chain)
	}
	return chains, nil
}

func showStatus(ctx context.Context, _ *cli.Context, a *app) error {
	if err := a.svc.Health(ctx); err != nil {
		return fmt.Errorf("backend unavailable: %w", err)
	}
	res, err := a.svc.Status(ctx)
	if err != nil {
		return err
	}
	if !res.Valid {
		fmt.Println("session is not valid:", res.Error)
		return nil
	}
	printUser(res.User, res.ExpiresAt)
	return nil
}

func refresh(ctx context.Context, _ *cli.Context, a *app) error {
	sess, err := a.svc.RefreshToken(ctx)
	if err != nil {
		return err
	}
	fmt.Println("token refreshed, expires", sess.ExpiresAt.Format(time.RFC3339))
	return nil
}

func logout(all bool) action {
	return func(ctx context.Context, _ *cli.Context, a *app) error {
		if all {
			return a.svc.LogoutAll(ctx)
		}
		return a.svc.Logout(ctx)
	}
}

func loginQR(ctx context.Context, c *cli.Context, a *app) error {
	out := c.String("out")
	user, err := a.svc.LoginWithQR(ctx, func(code core.QRCode) {
		if err := os.WriteFile(out, code.PNG, 0o644); err != nil {
			a.log.Error("failed to write QR code", map[string]any{"path": out, "error": err})
			return
		}
		fmt.Printf("scan %s or open %s\n", out, code.Content)
		fmt.Println("waiting until", code.ExpiresAt.Format(time.RFC3339))
	})
	if err != nil {
		return err
	}
	var expiresAt time.Time
	if sess := a.svc.Session(); sess != nil {
		expiresAt = sess.ExpiresAt
	}
	printUser(user, expiresAt)
	return nil
}

func approve(ctx context.Context, c *cli.Context, a *app) error {
	if c.NArg() != 2 {
		return cli.NewExitError("usage: walletsso approve <session-id> <wallet-id>", 2)
	}
	if err := a.svc.ApproveQR(ctx, c.Args().Get(0), c.Args().Get(1)); err != nil {
		return err
	}
	fmt.Println("approved")
	return nil
}

func oauthURL(ctx context.Context, _ *cli.Context, a *app) error {
	u, err := a.svc.AuthorizeURL(ctx)
	if err != nil {
		return err
	}
	fmt.Println(u)
	return nil
}

func serve(ctx context.Context, _ *cli.Context, a *app) error {
	if err := a.svc.Start(ctx); err != nil {
		a.log.Warn("auto-connect failed", map[string]any{"error": err})
	}

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           transport.SetupRouter(a.svc, a.metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		a.log.Info("listening", map[string]any{"addr": srv.Addr})
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func printUser(user *core.User, expiresAt time.Time) {
	if user == nil {
		fmt.Println("signed in")
		return
	}
	fmt.Printf("signed in as %s on %s", user.Address, user.ChainType)
	if user.Tier != "" {
		fmt.Printf(" (%s, %s points)", user.Tier, user.Points.String())
	}
	fmt.Println()
	if !expiresAt.IsZero() {
		fmt.Println("expires", expiresAt.Format(time.RFC3339))
	}
}
