// Package checker probes every stored uptime check on a cron schedule and
// alerts owners by SMS when a check changes state.
package checker

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/robfig/cron/v3"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/patric-chuzhbe/flatapi/internal/logger"
	"github.com/patric-chuzhbe/flatapi/internal/metrics"
	"github.com/patric-chuzhbe/flatapi/internal/uptime"
)

const defaultAlertTimeout = 10 * time.Second

type checkStore interface {
	AllChecks(ctx context.Context) ([]uptime.Check, error)
	RecordOutcome(ctx context.Context, id, state string, at time.Time) (*uptime.Check, bool, error)
}

type alerter interface {
	SendSMS(ctx context.Context, phone, msg string) (string, error)
}

type Checker struct {
	store       checkStore
	alerter     alerter
	client      *resty.Client
	concurrency int
	now         func() time.Time
	log         *zap.SugaredLogger
}

type InitOption func(*Checker)

func WithClock(now func() time.Time) InitOption {
	return func(c *Checker) {
		c.now = now
	}
}

func New(store checkStore, alerter alerter, concurrency int, opts ...InitOption) *Checker {
	if concurrency < 1 {
		concurrency = 1
	}

	c := &Checker{
		store:   store,
		alerter: alerter,
		client: resty.New().SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		})),
		concurrency: concurrency,
		now:         time.Now,
		log:         logger.Named("checker"),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// probe performs one request and reports the resulting state. Redirects are
// not followed, so a 301 counts only if it is listed as a success code.
func (c *Checker) probe(ctx context.Context, check *uptime.Check) string {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(check.TimeoutSeconds)*time.Second)
	defer cancel()

	resp, err := c.client.R().SetContext(ctx).Execute(strings.ToUpper(check.Method), check.Target())
	if err != nil {
		c.log.Debugw("probe failed", "check", check.ID, "err", err)
		return uptime.StateDown
	}
	if funk.ContainsInt(check.SuccessCodes, resp.StatusCode()) {
		return uptime.StateUp
	}

	return uptime.StateDown
}

func alertMessage(check *uptime.Check) string {
	return fmt.Sprintf("Alert: Your check for %s %s is currently %s", strings.ToUpper(check.Method), check.Target(), check.State)
}

func (c *Checker) process(ctx context.Context, check uptime.Check) {
	started := c.now()
	state := c.probe(ctx, &check)
	metrics.RecordCheck(state, time.Since(started))

	stored, changed, err := c.store.RecordOutcome(ctx, check.ID, state, c.now())
	if err != nil {
		c.log.Warnw("check outcome was not stored", "check", check.ID, zap.Error(err))
		return
	}
	if !changed || c.alerter == nil {
		return
	}

	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultAlertTimeout)
	defer cancel()

	_, err = c.alerter.SendSMS(alertCtx, stored.UserPhone, alertMessage(stored))
	metrics.RecordGatewayCall("twilio", err)
	if err != nil {
		c.log.Warnw("state change alert was not sent", "check", check.ID, zap.Error(err))
		return
	}
	c.log.Infow("state change alerted", "check", check.ID, "state", stored.State)
}

// RunOnce probes every check with bounded concurrency.
func (c *Checker) RunOnce(ctx context.Context) error {
	checks, err := c.store.AllChecks(ctx)
	if err != nil {
		return fmt.Errorf("in internal/checker/checker.go/RunOnce(): error while `c.store.AllChecks()` calling: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.concurrency)
	for _, check := range checks {
		check := check
		group.Go(func() error {
			c.process(groupCtx, check)
			return nil
		})
	}

	return group.Wait()
}

// Start runs the checks on the cron spec until the returned stop function is
// called. A run that is still going when the next one is due is skipped.
func (c *Checker) Start(ctx context.Context, spec string) (stop func(), err error) {
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err = scheduler.AddFunc(spec, func() {
		if err := c.RunOnce(ctx); err != nil {
			c.log.Errorw("check run failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("in internal/checker/checker.go/Start(): error while `scheduler.AddFunc()` calling: %w", err)
	}

	scheduler.Start()

	return func() {
		<-scheduler.Stop().Done()
	}, nil
}
