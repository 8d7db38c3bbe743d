// Package whitelist keeps the shared site-builder whitelist in step with the
// urls customers register.
//
// The whitelist lives inside a settings option that other tools edit too.
// Lines this service never registered are foreign and always survive.
package whitelist

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sitepass/subscription-whitelist/internal/config"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/domain/whitelist"
	"github.com/sitepass/subscription-whitelist/internal/pkg/apperror"
	"github.com/sitepass/subscription-whitelist/internal/pkg/metrics"
	"github.com/sitepass/subscription-whitelist/internal/pkg/validator"
)

type Deps struct {
	URLs          whitelist.UserURLRepository
	Subscriptions subscription.SubscriptionRepository
	Options       whitelist.OptionRepository
	Config        config.WhitelistConfig
	Metrics       *metrics.Metrics
}

type reconciler struct {
	urlRepo    whitelist.UserURLRepository
	subRepo    subscription.SubscriptionRepository
	optionRepo whitelist.OptionRepository
	cfg        config.WhitelistConfig
	metrics    *metrics.Metrics
}

func NewReconciler(d Deps) whitelist.Reconciler {
	cfg := d.Config
	if cfg.CASAttempts <= 0 {
		cfg.CASAttempts = 5
	}
	if cfg.CASBaseDelay <= 0 {
		cfg.CASBaseDelay = 25 * time.Millisecond
	}
	return &reconciler{
		urlRepo:    d.URLs,
		subRepo:    d.Subscriptions,
		optionRepo: d.Options,
		cfg:        cfg,
		metrics:    d.Metrics,
	}
}

// ==================== Blob access ====================

// read loads the option and its whitelist lines. A malformed blob reads as
// empty settings. With fresh set a caching repository is bypassed.
func (r *reconciler) read(ctx context.Context, fresh bool) (whitelist.Option, whitelist.Settings, []string, error) {
	get := r.optionRepo.Get
	if fr, ok := r.optionRepo.(whitelist.FreshOptionReader); ok && fresh {
		get = fr.GetFresh
	}

	opt, err := get(ctx, r.cfg.OptionName)
	if err != nil {
		return whitelist.Option{}, whitelist.Settings{}, nil, apperror.Persistence("read whitelist option", err)
	}

	settings, err := whitelist.DecodeSettings(opt.Value, r.cfg.Field)
	if err != nil {
		slog.WarnContext(ctx, "settings option is malformed, treating as empty",
			"option", r.cfg.OptionName,
			"error", err,
		)
		settings = whitelist.EmptySettings(r.cfg.Field)
	}

	text, err := settings.Whitelist()
	if err != nil {
		slog.WarnContext(ctx, "whitelist field is malformed, treating as empty",
			"option", r.cfg.OptionName,
			"field", r.cfg.Field,
			"error", err,
		)
		text = ""
	}
	return opt, settings, whitelist.ParseLines(text), nil
}

// mutate applies fn to the current whitelist and writes the result with a
// compare-and-swap, re-reading and retrying with exponential backoff when
// another writer got in first. Nothing is written when fn changes nothing.
func (r *reconciler) mutate(ctx context.Context, op string, fn func(current []string) []string) error {
	delay := r.cfg.CASBaseDelay
	for attempt := 1; attempt <= r.cfg.CASAttempts; attempt++ {
		opt, settings, current, err := r.read(ctx, true)
		if err != nil {
			return err
		}

		next := fn(current)
		if whitelist.Equal(current, next) {
			r.countWrite(op, "unchanged")
			return nil
		}

		settings.SetWhitelist(whitelist.JoinLines(next))
		value, err := settings.Encode()
		if err != nil {
			return apperror.Persistence("encode settings option", err)
		}

		ok, err := r.optionRepo.CompareAndSwap(ctx, r.cfg.OptionName, value, opt.Version)
		if err != nil {
			r.countWrite(op, "error")
			return apperror.Persistence("write whitelist option", err)
		}
		if ok {
			r.countWrite(op, "written")
			slog.InfoContext(ctx, "whitelist updated",
				"operation", op,
				"entries", len(next),
				"attempt", attempt,
			)
			return nil
		}

		if r.metrics != nil {
			r.metrics.WhitelistCASMiss.Inc()
		}
		slog.DebugContext(ctx, "whitelist write lost a race, retrying", "operation", op, "attempt", attempt)

		if attempt < r.cfg.CASAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	r.countWrite(op, "conflict")
	return whitelist.ErrWhitelistConflict
}

func (r *reconciler) countWrite(op, result string) {
	if r.metrics != nil {
		r.metrics.WhitelistWrites.WithLabelValues(op, result).Inc()
	}
}

// ==================== Reconciliation ====================

func (r *reconciler) ReconcileFull(ctx context.Context, now time.Time) error {
	managedList, err := r.urlRepo.ManagedURLs(ctx)
	if err != nil {
		return apperror.Persistence("list managed urls", err)
	}
	wanted, err := r.urlRepo.WantedURLs(ctx, now)
	if err != nil {
		return apperror.Persistence("list wanted urls", err)
	}

	managed := make(map[string]struct{}, len(managedList))
	for _, u := range managedList {
		managed[u] = struct{}{}
	}

	return r.mutate(ctx, "reconcile", func(current []string) []string {
		return whitelist.Merge(current, managed, wanted)
	})
}

func (r *reconciler) ExpireSweep(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.urlRepo.ExpireStale(ctx, now)
	if err != nil {
		return 0, apperror.Persistence("expire stale urls", err)
	}
	if n == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "expired urls of lapsed subscriptions", "count", n)
	if err := r.ReconcileFull(ctx, now); err != nil {
		return n, err
	}
	return n, nil
}

// RemoveURLs drops urls from the whitelist, except those another live row
// still wants.
func (r *reconciler) RemoveURLs(ctx context.Context, urls []string, now time.Time) error {
	if len(urls) == 0 {
		return nil
	}
	remove, err := r.notWanted(ctx, urls, now)
	if err != nil {
		return err
	}
	if len(remove) == 0 {
		return nil
	}
	return r.mutate(ctx, "remove", func(current []string) []string {
		return whitelist.ApplyDelta(current, remove, nil)
	})
}

func (r *reconciler) RemoveURL(ctx context.Context, urlID int64, now time.Time) error {
	row, err := r.urlRepo.GetByID(ctx, urlID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return whitelist.ErrURLNotFound
		}
		return apperror.Persistence("get url", err)
	}

	if row.Status != whitelist.URLStatusRemoved {
		if err := r.urlRepo.SetStatus(ctx, urlID, whitelist.URLStatusRemoved); err != nil {
			return apperror.Persistence("mark url removed", err)
		}
		slog.InfoContext(ctx, "url removed", "url_id", urlID, "url", row.URL, "user_id", row.UserID)
	}
	return r.RemoveURLs(ctx, []string{row.URL}, now)
}

func (r *reconciler) notWanted(ctx context.Context, urls []string, now time.Time) ([]string, error) {
	wanted, err := r.urlRepo.WantedURLs(ctx, now)
	if err != nil {
		return nil, apperror.Persistence("list wanted urls", err)
	}
	wantedSet := make(map[string]struct{}, len(wanted))
	for _, w := range wanted {
		wantedSet[w] = struct{}{}
	}

	var out []string
	for _, u := range urls {
		if _, still := wantedSet[u]; !still {
			out = append(out, u)
		}
	}
	return out, nil
}

// ==================== Submission ====================

// Submit registers or replaces the url for one subscription. It never
// returns an error; failures are reported in the result.
func (r *reconciler) Submit(ctx context.Context, userID, subscriptionID int64, rawURL string, now time.Time) whitelist.SubmitResult {
	res := r.submit(ctx, userID, subscriptionID, rawURL, now)

	outcome := "ok"
	if !res.Success {
		outcome = "rejected"
		if errors.Is(res.Err, apperror.ErrPersistence) {
			outcome = "error"
		}
		level := slog.LevelWarn
		if outcome == "error" {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "url submission failed",
			"user_id", userID,
			"subscription_id", subscriptionID,
			"url", rawURL,
			"error", res.Err,
		)
	}
	if r.metrics != nil {
		r.metrics.URLSubmissions.WithLabelValues(outcome).Inc()
	}
	return res
}

const submitFailedMessage = "Could not save your URL, please try again"

// failed reports err to the user. Storage failures get a generic message.
func failed(err error) whitelist.SubmitResult {
	msg := submitFailedMessage
	if kind := apperror.KindOf(err); kind != nil && kind != apperror.ErrPersistence {
		msg = apperror.Message(err)
	}
	return whitelist.SubmitResult{Success: false, Message: msg, Err: err}
}

func (r *reconciler) submit(ctx context.Context, userID, subscriptionID int64, rawURL string, now time.Time) whitelist.SubmitResult {
	normalized, err := validator.NormalizeSiteURL(rawURL)
	if err != nil {
		return failed(err)
	}

	sub, err := r.subRepo.GetByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return failed(whitelist.ErrSubscriptionNotFound)
		}
		return failed(apperror.Persistence("get subscription", err))
	}
	if sub.UserID != userID {
		return failed(whitelist.ErrSubscriptionNotOwned)
	}
	if !sub.IsLive(now) {
		return failed(whitelist.ErrSubscriptionInactive)
	}

	holders, err := r.urlRepo.FindActiveByURL(ctx, normalized)
	if err != nil {
		return failed(apperror.Persistence("find url holders", err))
	}
	for _, h := range holders {
		if h.UserID != userID {
			return failed(whitelist.ErrURLTakenByOtherUser)
		}
	}

	existing, err := r.urlRepo.GetActive(ctx, userID, subscriptionID)
	switch {
	case err == nil:
		return r.replace(ctx, existing, normalized, now)
	case errors.Is(err, pgx.ErrNoRows):
		return r.insert(ctx, userID, subscriptionID, normalized, now)
	default:
		return failed(apperror.Persistence("get active url", err))
	}
}

func (r *reconciler) replace(ctx context.Context, existing whitelist.UserURL, normalized string, now time.Time) whitelist.SubmitResult {
	var remove []string
	if existing.URL != normalized {
		if err := r.urlRepo.UpdateURL(ctx, existing.ID, normalized); err != nil {
			return failed(apperror.Persistence("update url", err))
		}
		stale, err := r.notWanted(ctx, []string{existing.URL}, now)
		if err != nil {
			return failed(err)
		}
		remove = stale
	}

	err := r.mutate(ctx, "submit", func(current []string) []string {
		return whitelist.ApplyDelta(current, remove, []string{normalized})
	})
	if err != nil {
		return failed(err)
	}

	slog.InfoContext(ctx, "url updated",
		"url_id", existing.ID,
		"subscription_id", existing.SubscriptionID,
		"from", existing.URL,
		"to", normalized,
	)
	return whitelist.SubmitResult{Success: true, Message: "URL updated", URL: normalized}
}

func (r *reconciler) insert(ctx context.Context, userID, subscriptionID int64, normalized string, now time.Time) whitelist.SubmitResult {
	created, err := r.urlRepo.Create(ctx, whitelist.UserURL{
		UserID:         userID,
		SubscriptionID: subscriptionID,
		URL:            normalized,
		Status:         whitelist.URLStatusActive,
	})
	if err != nil {
		if errors.Is(err, whitelist.ErrActiveURLExists) {
			return failed(err)
		}
		return failed(apperror.Persistence("create url", err))
	}

	if err := r.ReconcileFull(ctx, now); err != nil {
		return failed(err)
	}

	slog.InfoContext(ctx, "url registered",
		"url_id", created.ID,
		"subscription_id", subscriptionID,
		"url", normalized,
	)
	return whitelist.SubmitResult{Success: true, Message: "URL added", URL: normalized}
}

// ==================== Reads ====================

func (r *reconciler) Whitelist(ctx context.Context) ([]string, error) {
	_, _, lines, err := r.read(ctx, false)
	return lines, err
}

func (r *reconciler) ListForUser(ctx context.Context, userID int64) ([]whitelist.UserURL, error) {
	urls, err := r.urlRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Persistence("list user urls", err)
	}
	return urls, nil
}
