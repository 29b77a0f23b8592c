package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"courtbook/internal/api"
	"courtbook/internal/booking"
	"courtbook/internal/config"
	"courtbook/internal/events"
	"courtbook/internal/export"
	"courtbook/internal/metrics"
	"courtbook/internal/model"
	"courtbook/internal/payment"
	"courtbook/internal/pricing"
	"courtbook/internal/session"
	"courtbook/internal/slots"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type options struct {
	configPath string
	date       string
	resources  string
	picks      string
	mode       string
	note       string
	book       bool
	exportPath string
	serve      bool
}

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	var opts options
	flag.StringVar(&opts.configPath, "config", os.Getenv("COURTBOOK_CONFIG_PATH"), "path to config.yaml")
	flag.StringVar(&opts.date, "date", "", "booking date YYYY-MM-DD (default today)")
	flag.StringVar(&opts.resources, "resources", "", "comma separated resource ids (default all active)")
	flag.StringVar(&opts.picks, "select", "", "comma separated slots to select, e.g. court-1@09:00")
	flag.StringVar(&opts.mode, "mode", string(model.PaymentDeposit), "payment mode: deposit or full")
	flag.StringVar(&opts.note, "note", "", "booking note")
	flag.BoolVar(&opts.book, "book", false, "submit the selection")
	flag.StringVar(&opts.exportPath, "export", "", "write the resolved day to this .xlsx path (a directory gets slots_<date>.xlsx)")
	flag.BoolVar(&opts.serve, "serve", false, "keep health and metrics servers running until interrupted")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout, &logger); err != nil {
		logger.Fatal().Err(err).Msg("courtbook failed")
	}
}

func run(ctx context.Context, opts options, out io.Writer, logger *zerolog.Logger) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	catalog, err := config.LoadResourcesConfig(cfg.Engine.ResourcesPath)
	if err != nil {
		return fmt.Errorf("load resources: %w", err)
	}
	logger.Info().Str("catalog", catalog.String()).Msg("resources loaded")

	loc := cfg.Location()
	date := time.Now().In(loc)
	if opts.date != "" {
		if date, err = time.ParseInLocation(model.DateLayout, opts.date, loc); err != nil {
			return fmt.Errorf("parse -date: %w", err)
		}
	}
	date = model.StartOfDay(date, loc)

	client := api.NewClient(cfg.API.BaseURL, cfg.API.APIKey).
		WithToken(cfg.API.Token).
		WithTimeout(cfg.APITimeout()).
		WithLogger(logger)
	client.UseRateLimit(cfg.API.RatePerSecond, cfg.API.RateBurst)

	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.CacheTTL() > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		client.UseRedisCache(rdb, cfg.CacheTTL())
	}

	calc := pricing.NewCalculator(cfg.TaxRate(), cfg.DepositRate())
	resolver := slots.NewResolver(client, slots.Options{Location: loc, MaxParallel: cfg.MaxParallelFetches()}, logger)
	orch := booking.NewOrchestrator(client, booking.Config{ProviderID: cfg.ProviderID(), Calculator: calc}, logger)
	sess := session.New(session.Deps{
		Resolver:     resolver,
		Calculator:   calc,
		Quoter:       client,
		Wallet:       client,
		Orchestrator: orch,
	}, catalog.Models(), logger)

	sess.Bus().SubscribeAll(func(e events.Event) {
		logger.Debug().Str("event", e.Type).Msg("session event")
	})

	// cancelling runCtx stops the config watchers once a one-shot run returns
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if err := config.WatchFile(gctx, opts.configPath, 30*time.Second, func(updated *config.Config) {
		calc.SetRates(updated.TaxRate(), updated.DepositRate())
		logger.Info().Float64("tax_rate", updated.TaxRate()).Float64("deposit_rate", updated.DepositRate()).Msg("pricing rates reloaded")
	}); err != nil {
		logger.Error().Err(err).Msg("config watch failed")
	}
	if err := config.WatchResources(gctx, cfg.Engine.ResourcesPath, 30*time.Second, func(updated *config.ResourcesConfig) {
		sess.SetCatalog(updated.Models())
		logger.Info().Str("catalog", updated.String()).Msg("resources reloaded")
	}); err != nil {
		logger.Error().Err(err).Msg("resources watch failed")
	}

	if opts.serve {
		port := cfg.Monitoring.HealthCheckPort
		if port == 0 {
			port = 8090
		}
		g.Go(func() error { return startHealthServer(gctx, port, client, rdb) })

		if cfg.Monitoring.PrometheusEnabled {
			mport := cfg.Monitoring.PrometheusPort
			if mport == 0 {
				mport = 9090
			}
			metrics.Register()
			g.Go(func() error { return startMetricsServer(gctx, mport) })
		}
	}

	ids := splitList(opts.resources)
	if len(ids) == 0 {
		for _, r := range catalog.Models() {
			ids = append(ids, r.ID)
		}
	}

	g.Go(func() error { return book(gctx, sess, opts, date, ids, out, logger) })

	err = g.Wait()
	sess.Close()
	return err
}

func book(ctx context.Context, sess *session.Session, opts options, date time.Time, ids []string, out io.Writer, logger *zerolog.Logger) error {
	sess.SetResources(ctx, ids)
	sess.SetDate(ctx, date)
	st := sess.Snapshot()
	printSlots(out, st)

	picks, err := parsePicks(opts.picks)
	if err != nil {
		return err
	}
	for _, p := range picks {
		key, ok := findPick(st.Slots[p.resourceID], p.start)
		if !ok || !sess.Toggle(key) {
			logger.Warn().Str("resource_id", p.resourceID).Str("start", p.start).Msg("slot not selectable")
		}
	}

	st = sess.Snapshot()
	if !st.Selection.IsEmpty() {
		if st, err = sess.EnterPayment(ctx); err != nil {
			logger.Warn().Err(err).Msg("using local price estimate")
		}
		d := sess.ChooseMode(model.PaymentMode(opts.mode))
		st = sess.Snapshot()
		printBreakdown(out, st)
		if d.Blocked() {
			fmt.Fprintf(out, "blocked: %s\n", d.Blocker)
			logger.Warn().Str("blocker", string(d.Blocker)).Msg("payment mode unavailable")
			if opts.book {
				return fmt.Errorf("payment mode %s unavailable: %s", opts.mode, d.Blocker)
			}
		}
	}

	if opts.exportPath != "" {
		if err := writeExport(opts.exportPath, st); err != nil {
			return err
		}
		logger.Info().Str("path", opts.exportPath).Msg("day exported")
	}

	if !opts.book || st.Selection.IsEmpty() {
		return nil
	}

	res := sess.Submit(ctx, opts.note)
	fmt.Fprintf(out, "booking: %s", res.Status)
	if res.BookingID != "" {
		fmt.Fprintf(out, " id=%s", res.BookingID)
	}
	if r := res.Remediation(); r != booking.RemediationNone {
		fmt.Fprintf(out, " next=%s", r)
	}
	fmt.Fprintln(out)
	if res.Err != nil && res.Status != booking.StatusConfirmed {
		return res.Err
	}
	return nil
}

func printSlots(out io.Writer, st session.State) {
	for _, id := range st.ResourceIDs {
		if err, failed := st.FetchErrors[id]; failed {
			fmt.Fprintf(out, "%s: unavailable (%v)\n", id, err)
			continue
		}
		list := st.Slots[id]
		fmt.Fprintf(out, "%s: %d slots\n", id, len(list))
		for _, s := range list {
			mark := " "
			if s.IsAvailable {
				mark = "+"
			}
			line := fmt.Sprintf("  %s %s %.2f", mark, s.DisplayTime, s.Price)
			if s.PromotionName != "" {
				line += fmt.Sprintf(" (%s, was %.2f)", s.PromotionName, s.OriginalPrice)
			}
			fmt.Fprintln(out, line)
		}
	}
}

func printBreakdown(out io.Writer, st session.State) {
	b := st.Breakdown
	source := "estimate"
	if b.Authoritative {
		source = "server"
	}
	fmt.Fprintf(out, "subtotal %.2f tax %.2f deposit %.2f total %.2f (%s)\n", b.Subtotal, b.Tax, b.MinimumDeposit, b.Total, source)
	if st.Balance != nil {
		fmt.Fprintf(out, "wallet %.2f mode %s\n", st.Balance.Amount, st.Mode)
	}
	if st.Decision.Notice != payment.NoticeNone {
		fmt.Fprintln(out, st.Decision.Notice)
	}
}

func writeExport(path string, st session.State) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = strings.TrimRight(path, "/") + "/" + export.Filename(st.Date)
	}
	w := export.NewExcelizeWriter()
	defer w.Close()

	breakdown := st.Breakdown
	if err := export.WriteDay(w, export.Day{
		Date:      st.Date,
		Slots:     st.Slots,
		Errors:    st.FetchErrors,
		Selection: st.Selection,
		Breakdown: &breakdown,
	}); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return w.SaveToFile(path)
}

type pick struct {
	resourceID string
	start      string
}

// parsePicks parses "court-1@09:00,coach-2@18:30".
func parsePicks(s string) ([]pick, error) {
	var out []pick
	for _, item := range splitList(s) {
		id, start, ok := strings.Cut(item, "@")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid slot %q, expected <resource>@HH:MM", item)
		}
		if _, err := model.ClockMinutes(start); err != nil {
			return nil, fmt.Errorf("invalid slot %q: %w", item, err)
		}
		out = append(out, pick{resourceID: id, start: model.FormatClock(start)})
	}
	return out, nil
}

func findPick(list []model.ScheduleSlot, start string) (model.SlotKey, bool) {
	for _, s := range list {
		if s.StartTime == start {
			return s.Key(), true
		}
	}
	return model.SlotKey{}, false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func startHealthServer(ctx context.Context, port int, client *api.Client, rdb *redis.Client) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := client.HealthCheck(ctxPing); err != nil {
			http.Error(w, "api not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	return serve(ctx, port, mux)
}

func startMetricsServer(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return serve(ctx, port, mux)
}

func serve(ctx context.Context, port int, handler http.Handler) error {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
