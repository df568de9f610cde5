// Package app runs scout passes and answers operator commands. Every run
// goes through one mutex, so the ledgers have a single writer.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/apperr"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/discovery"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/logger"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/metrics"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/ratelimit"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/report"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/storage"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/telegram"
)

// Replies to /start.
const (
	ReadyText   = "SAIKAT OS READY"
	CatchUpText = "Running missed scout…"
)

// Deps are the parts an App is assembled from.
type Deps struct {
	Pipeline  *discovery.Pipeline
	Formatter *report.Formatter
	Followups *storage.FollowupLedger
	State     *storage.RunStateStore
	Sender    telegram.Sender
	AdminID   int64

	Daily   discovery.Mode
	Archive discovery.Mode
	// Location decides which calendar day a run belongs to.
	Location *time.Location

	Metrics *metrics.Metrics
	// Limiter is reported by /status; nil when enrichment is off.
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
	Now     func() time.Time
}

type App struct {
	deps   Deps
	logger *slog.Logger

	mu sync.Mutex

	closers []func()
}

func New(d Deps) (*App, error) {
	switch {
	case d.Pipeline == nil:
		return nil, fmt.Errorf("app: no pipeline")
	case d.Formatter == nil:
		return nil, fmt.Errorf("app: no formatter")
	case d.Followups == nil || d.State == nil:
		return nil, fmt.Errorf("app: follow-up ledger and run state are required")
	case d.Sender == nil:
		return nil, fmt.Errorf("app: no sender")
	}
	if d.Daily.Name == "" {
		d.Daily = discovery.DailyMode()
	}
	if d.Archive.Name == "" {
		d.Archive = discovery.ArchiveMode(0)
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &App{deps: d, logger: logger.Component(d.Logger, "app")}, nil
}

// Metrics returns the counters shared by every component of the app.
func (a *App) Metrics() *metrics.Metrics { return a.deps.Metrics }

// Close releases clients opened by Build.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// DailyMode is the mode scheduled and manual runs use.
func (a *App) DailyMode() discovery.Mode { return a.deps.Daily }

// ArchiveMode returns the archive mode, with its lookback replaced when
// days is positive.
func (a *App) ArchiveMode(days int) discovery.Mode {
	m := a.deps.Archive
	if days > 0 {
		m.LookbackDays = days
	}
	return m
}

func (a *App) today() time.Time { return a.deps.Now().In(a.deps.Location) }

// Scout runs one discovery pass and delivers the report to the admin.
// The run marker is written before delivery, so a failed send never makes
// a catch-up repeat the run. A failed run is reported as text; its error is
// returned only when that report could not be delivered. res is nil when
// the run itself failed.
func (a *App) Scout(ctx context.Context, kind report.Kind, mode discovery.Mode) (*discovery.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scout(ctx, kind, mode)
}

func (a *App) scout(ctx context.Context, kind report.Kind, mode discovery.Mode) (*discovery.Result, error) {
	start := a.deps.Now()
	log := a.logger.With("kind", kind, "mode", mode.Name)

	res, runErr := a.deps.Pipeline.Run(ctx, mode)

	if kind != report.KindArchive {
		if err := a.deps.State.MarkRun(start.In(a.deps.Location)); err != nil {
			log.Error("run marker not saved", "error", err, "kind_of", apperr.KindOf(err))
		}
	}

	var text string
	if runErr != nil {
		a.deps.Metrics.SetError(runErr.Error())
		log.Error("scout run failed", "error", runErr)
		text = report.Header(kind) + "\n\nRun failed: " + runErr.Error()
	} else {
		a.deps.Metrics.RecordRun(a.deps.Now().Sub(start))
		if kind == report.KindDaily && len(res.Leads) == 0 {
			log.Info("no leads, nothing delivered", "scanned", res.Scanned)
			return res, nil
		}
		text = a.deps.Formatter.Render(ctx, report.Report{Kind: kind, Leads: res.Leads})
	}

	if err := a.deps.Sender.SendMessage(ctx, a.deps.AdminID, text); err != nil {
		a.deps.Metrics.SetError(err.Error())
		if runErr != nil {
			return res, runErr
		}
		return res, apperr.Wrap(apperr.Transport, "deliver report", err)
	}
	// A failed run that reached the operator is already reported.
	return res, nil
}

// NeedsCatchUp reports whether no run has been recorded for the calendar
// day of now.
func (a *App) NeedsCatchUp(now time.Time) bool {
	return !a.deps.State.RanOn(now.In(a.deps.Location))
}

// CatchUp runs a CATCHUP pass when today has no run yet. The check and the
// run happen under the run lock, so concurrent callers trigger at most one
// pass.
func (a *App) CatchUp(ctx context.Context, now time.Time) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.NeedsCatchUp(now) {
		return false, nil
	}
	a.logger.Info("missed run detected", "last_run", a.deps.State.LastRunDate())
	_, err := a.scout(ctx, report.KindCatchUp, a.deps.Daily)
	return true, err
}

// Register installs the operator commands on b.
func (a *App) Register(b *telegram.Bot) {
	b.Handle("start", "check in and run a missed scout", a.handleStart)
	b.Handle("scout", "run a scout now", a.handleScout)
	b.Handle("archive", "scan the last [days] of news", a.handleArchive)
	b.Handle("leads", "list the follow-up ledger", a.handleLeads)
	b.Handle("mark", "<link> <new|contacted|replied|booked> [note]", a.handleMark)
	b.Handle("status", "show run statistics", a.handleStatus)
}

func (a *App) handleStart(ctx context.Context, cmd telegram.Command) (string, error) {
	if err := a.deps.Sender.SendMessage(ctx, cmd.ChatID, ReadyText); err != nil {
		a.logger.Error("ready reply failed", "error", err)
	}
	if !a.NeedsCatchUp(a.deps.Now()) {
		return "", nil
	}
	if err := a.deps.Sender.SendMessage(ctx, cmd.ChatID, CatchUpText); err != nil {
		a.logger.Error("catch-up notice failed", "error", err)
	}
	_, err := a.CatchUp(ctx, a.deps.Now())
	return "", err
}

func (a *App) handleScout(ctx context.Context, _ telegram.Command) (string, error) {
	_, err := a.Scout(ctx, report.KindManual, a.deps.Daily)
	return "", err
}

func (a *App) handleArchive(ctx context.Context, cmd telegram.Command) (string, error) {
	days := 0
	if len(cmd.Args) > 0 {
		n, err := strconv.Atoi(cmd.Args[0])
		if err != nil || n <= 0 {
			return "Usage: /archive [days]", nil
		}
		days = n
	}
	_, err := a.Scout(ctx, report.KindArchive, a.ArchiveMode(days))
	return "", err
}

func (a *App) handleLeads(_ context.Context, _ telegram.Command) (string, error) {
	return FormatFollowups(a.deps.Followups.List()), nil
}

func (a *App) handleMark(_ context.Context, cmd telegram.Command) (string, error) {
	if len(cmd.Args) < 2 {
		return "Usage: /mark <link> <new|contacted|replied|booked> [note]", nil
	}
	status, err := storage.ParseStatus(strings.ToLower(cmd.Args[1]))
	if err != nil {
		return "", err
	}
	note := strings.Join(cmd.Args[2:], " ")

	a.mu.Lock()
	defer a.mu.Unlock()
	rec, err := a.deps.Followups.Mark(cmd.Args[0], status, note, a.today().Format(storage.DateLayout))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Marked %q as %s.", rec.Title, rec.Status), nil
}

func (a *App) handleStatus(_ context.Context, _ telegram.Command) (string, error) {
	return a.Status(), nil
}

// Status is the /status text.
func (a *App) Status() string {
	stats := a.deps.Metrics.GetStats()
	last := a.deps.State.LastRunDate()
	if last == "" {
		last = "never"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last run: %s\n", last)
	fmt.Fprintf(&b, "Runs: %v\n", stats["runs"])
	fmt.Fprintf(&b, "Items scanned: %v\n", stats["items_scanned"])
	fmt.Fprintf(&b, "Leads admitted: %v\n", stats["leads_admitted"])
	fmt.Fprintf(&b, "Duplicates filtered: %v\n", stats["duplicates_filtered"])
	fmt.Fprintf(&b, "Feed errors: %v\n", stats["feed_errors"])
	fmt.Fprintf(&b, "Summary fallbacks: %v\n", stats["summary_fallbacks"])
	fmt.Fprintf(&b, "Follow-ups: %d\n", len(a.deps.Followups.List()))
	if a.deps.Limiter != nil {
		ls := a.deps.Limiter.GetStats()
		fmt.Fprintf(&b, "Summaries today: %v/%v\n", ls["used"], ls["limit"])
	}
	if e, _ := stats["last_error"].(string); e != "" {
		fmt.Fprintf(&b, "Last error: %s\n", e)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatFollowups renders the follow-up ledger for chat.
func FormatFollowups(entries []storage.FollowupEntry) string {
	if len(entries) == 0 {
		return "No follow-ups recorded yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Follow-ups (%d)\n", len(entries))
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, e.Status, e.Title)
		fmt.Fprintf(&b, "   %s\n", e.Link)
		fmt.Fprintf(&b, "   first seen %s", e.FirstSeen)
		if e.LastContact != "" {
			fmt.Fprintf(&b, ", last contact %s", e.LastContact)
		}
		b.WriteString("\n")
		if e.Notes != "" {
			fmt.Fprintf(&b, "   %s\n", e.Notes)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
