// Package app wires configuration, storage, services and servers into one of
// the two daemons and runs it until a shutdown signal arrives.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/patric-chuzhbe/flatapi/internal/adminrpc"
	"github.com/patric-chuzhbe/flatapi/internal/auth"
	"github.com/patric-chuzhbe/flatapi/internal/cascade"
	"github.com/patric-chuzhbe/flatapi/internal/checker"
	"github.com/patric-chuzhbe/flatapi/internal/config"
	"github.com/patric-chuzhbe/flatapi/internal/gateway"
	"github.com/patric-chuzhbe/flatapi/internal/ipchecker"
	"github.com/patric-chuzhbe/flatapi/internal/logger"
	"github.com/patric-chuzhbe/flatapi/internal/pizza"
	"github.com/patric-chuzhbe/flatapi/internal/ratelimit"
	"github.com/patric-chuzhbe/flatapi/internal/router"
	"github.com/patric-chuzhbe/flatapi/internal/uptime"
)

// Kind selects the daemon New assembles.
type Kind int

const (
	Uptime Kind = iota
	Pizza
)

func (k Kind) String() string {
	if k == Pizza {
		return "pizza"
	}
	return "uptime"
}

const limiterSweepInterval = time.Minute

// App holds a configured daemon and its background workers.
type App struct {
	kind        Kind
	cfg         *config.Config
	db          Store
	reaper      *cascade.Reaper
	limiter     *ratelimit.Limiter
	checker     *checker.Checker
	pizza       *pizza.Service
	adminServer *grpc.Server
	httpHandler http.Handler
}

// New loads the configuration, initializes logging, opens the store and
// builds the service of the requested kind.
func New(kind Kind, configOptions ...config.InitOption) (*App, error) {
	var err error
	app := &App{kind: kind}

	app.cfg, err = config.New(configOptions...)
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel, logger.WithJSONOutput(app.cfg.LogJSON))
	if err != nil {
		return nil, err
	}

	app.db, err = OpenStore(context.Background(), app.cfg)
	if err != nil {
		return nil, err
	}

	trusted, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	app.reaper = cascade.New(app.db, app.cfg.ChannelCapacity, app.cfg.ReaperInterval)
	app.limiter = ratelimit.New(app.cfg.RateLimitRPS, app.cfg.RateLimitBurst)

	tokens := auth.NewTokens(app.db, app.cfg.TokenTTL)
	hasher := auth.NewHasher(app.cfg.HashingSecret)

	routerOptions := []router.InitOption{
		router.WithPublicDir(app.cfg.PublicDir),
		router.WithTrustedSubnet(trusted),
		router.WithRateLimiter(app.limiter),
	}

	switch kind {
	case Pizza:
		var options []pizza.Option
		if app.cfg.MenuFile != "" {
			menu, err := pizza.LoadMenu(app.cfg.MenuFile)
			if err != nil {
				return nil, err
			}
			options = append(options, pizza.WithMenu(menu))
		}

		app.pizza = pizza.New(
			app.db,
			tokens,
			hasher,
			app.reaper,
			gateway.NewStripe(
				app.cfg.StripeBaseURL,
				app.cfg.StripeSecretKey,
				app.cfg.StripeSource,
				app.cfg.StripeCurrency,
				app.cfg.GatewayTimeout,
			),
			gateway.NewMailgun(
				app.cfg.MailgunBaseURL,
				app.cfg.MailgunDomain,
				app.cfg.MailgunAPIKey,
				app.cfg.MailgunSender,
				app.cfg.GatewayTimeout,
			),
			app.cfg.MaxCarts,
			options...,
		)
		app.httpHandler = router.NewPizza(app.pizza, append(routerOptions, router.WithStats(
			app.db,
			pizza.UsersCollection,
			auth.TokensCollection,
			pizza.CartsCollection,
			pizza.PurchasesCollection,
			cascade.MarkersCollection,
		))...)

	default:
		service := uptime.New(app.db, tokens, hasher, app.reaper, app.cfg.MaxChecks)
		app.checker = checker.New(
			service,
			gateway.NewTwilio(
				app.cfg.TwilioBaseURL,
				app.cfg.TwilioAccountSID,
				app.cfg.TwilioAuthToken,
				app.cfg.TwilioFromPhone,
				app.cfg.GatewayTimeout,
			),
			app.cfg.CheckConcurrency,
		)
		app.httpHandler = router.NewUptime(service, append(routerOptions, router.WithStats(
			app.db,
			uptime.UsersCollection,
			auth.TokensCollection,
			uptime.ChecksCollection,
			cascade.MarkersCollection,
		))...)
	}

	if app.cfg.AdminRPCAddr != "" {
		app.adminServer = adminrpc.New(app.db, app.cfg.AdminKey)
	}

	return app, nil
}

// Run starts the servers and background workers and blocks until a shutdown
// signal or a server failure.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.reaper.Run(ctx)
	a.reaper.ListenErrors(func(err error) {
		logger.Log.Warnw("Error passed from the `a.reaper.ListenErrors()`", zap.Error(err))
	})
	go a.limiter.Run(ctx, limiterSweepInterval)

	stopChecker := func() {}
	if a.checker != nil {
		var err error
		stopChecker, err = a.checker.Start(ctx, a.cfg.CheckSchedule)
		if err != nil {
			return err
		}
	}

	serverErrCh := make(chan error, 3)

	servers := []*http.Server{{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}}
	logger.Log.Infow("server running", "service", a.kind.String(), "RunAddr", a.cfg.RunAddr)
	go func() {
		serverErrCh <- servers[0].ListenAndServe()
	}()

	if a.cfg.EnableHTTPS {
		secure := &http.Server{
			Addr:    a.cfg.HTTPSAddr,
			Handler: a.httpHandler,
		}
		servers = append(servers, secure)
		logger.Log.Infow("https server running", "HTTPSAddr", a.cfg.HTTPSAddr)
		go func() {
			serverErrCh <- secure.ListenAndServeTLS(a.cfg.TLSCertFile, a.cfg.TLSKeyFile)
		}()
	}

	if a.adminServer != nil {
		listener, err := adminrpc.Listen(a.cfg.AdminRPCAddr)
		if err != nil {
			stopChecker()
			return err
		}
		logger.Log.Infow("admin rpc running", "AdminRPCAddr", a.cfg.AdminRPCAddr)
		go func() {
			serverErrCh <- a.adminServer.Serve(listener)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Finishing pending work and exiting...")
	case err := <-serverErrCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	stopChecker()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	for _, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}
	if a.adminServer != nil {
		a.adminServer.GracefulStop()
	}
	if a.pizza != nil {
		a.pizza.Wait()
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Close flushes the logger.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}
