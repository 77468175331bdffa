// Package services – Evaluator
//
// This file implements the trigger evaluator: one pass over every active
// switch that selects the due set, renders the stored message per recipient,
// delivers each email independently, and commits the per-cycle alert marker
// when at least one delivery succeeded.
//
// The commit is a conditional update keyed on the cycle baseline, so
// overlapping runs (an external scheduler invoking the endpoint while the
// in-process schedule fires) cannot double-alert: the first committer wins
// and the loser observes a no-op.

package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/afoster/go-switch-backend/internal/domain"
	"github.com/afoster/go-switch-backend/internal/mail"
	"github.com/afoster/go-switch-backend/internal/notify"
	"github.com/afoster/go-switch-backend/internal/repo"
)

// DefaultFailureSampleCap bounds the failure detail list carried in a Summary.
// Counters are always exact; only the per-failure sample is truncated.
const DefaultFailureSampleCap = 25

// alertStream is the delivery category stamped on outgoing alert mail.
const alertStream = "switch-alerts"

var (
	evaluationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "switch_evaluations_total",
		Help: "Total number of switches examined by evaluator runs.",
	})
	alertsSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "switch_alerts_sent_total",
		Help: "Total number of alert emails delivered.",
	})
	alertFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "switch_alert_failures_total",
		Help: "Total number of alert email deliveries that failed.",
	})
)

func init() {
	prometheus.MustRegister(evaluationsTotal, alertsSentTotal, alertFailuresTotal)
}

// DeliveryFailure describes one failed email delivery.
type DeliveryFailure struct {
	SwitchID string `json:"switchId"`
	To       string `json:"to"`
	Error    string `json:"error"`
	Code     int    `json:"code,omitempty"`
}

// Summary is the outcome of one evaluation run.
type Summary struct {
	OK           bool              `json:"ok"`
	Checked      int               `json:"checked"`
	Due          int               `json:"due"`
	EmailsSent   int               `json:"emailsSent"`
	EmailsFailed int               `json:"emailsFailed"`
	Failures     []DeliveryFailure `json:"failures"`
	Error        string            `json:"error,omitempty"`
}

// Evaluator runs trigger evaluation passes over the switch store.
type Evaluator struct {
	DB     *gorm.DB
	Mailer mail.Mailer

	// ReplyTo, when set, lets alerted recipients reach back without replying
	// to the transactional sender address.
	ReplyTo string

	// FailureSampleCap bounds Summary.Failures. Zero means
	// DefaultFailureSampleCap.
	FailureSampleCap int

	// Now is the clock; nil means time.Now. Tests pin it to exercise deadline
	// boundaries.
	Now func() time.Time
}

func (e *Evaluator) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Evaluator) sampleCap() int {
	if e.FailureSampleCap > 0 {
		return e.FailureSampleCap
	}
	return DefaultFailureSampleCap
}

// Run executes one evaluation pass and returns its summary. Fatal
// preconditions (no mail transport, unreachable store) abort the run with
// OK=false and a non-nil error; per-switch problems never do.
func (e *Evaluator) Run(ctx context.Context) (*Summary, error) {
	tr := otel.Tracer("services/Evaluator")
	ctx, span := tr.Start(ctx, "Run")
	defer span.End()

	sum := &Summary{Failures: []DeliveryFailure{}}

	// A transport that exists but is switched off must fail the run the same
	// way a missing one does: an external scheduler polling this endpoint
	// would otherwise see green passes while nothing is delivered.
	if e.Mailer == nil || !e.Mailer.Enabled() {
		sum.Error = ErrMailerNotConfigured.Error()
		return sum, ErrMailerNotConfigured
	}

	now := e.now()
	switches, err := repo.ListActiveSwitches(ctx, e.DB)
	if err != nil {
		sum.Error = "listing active switches: " + err.Error()
		return sum, err
	}

	for i := range switches {
		if err := ctx.Err(); err != nil {
			sum.Error = err.Error()
			log.Warn().Err(err).Int("checked", sum.Checked).Msg("evaluation pass interrupted")
			return sum, err
		}

		sw := &switches[i]
		sum.Checked++
		evaluationsTotal.Inc()

		if !domain.NeedsAlert(sw, now) {
			continue
		}
		sum.Due++
		e.dispatch(ctx, sw, now, sum)
	}

	span.SetAttributes(
		attribute.Int("evaluator.checked", sum.Checked),
		attribute.Int("evaluator.due", sum.Due),
		attribute.Int("evaluator.sent", sum.EmailsSent),
		attribute.Int("evaluator.failed", sum.EmailsFailed),
	)
	log.Info().
		Int("checked", sum.Checked).
		Int("due", sum.Due).
		Int("sent", sum.EmailsSent).
		Int("failed", sum.EmailsFailed).
		Msg("evaluation pass complete")

	sum.OK = true
	return sum, nil
}

// dispatch composes and delivers the alert for one due switch and commits the
// alert marker when at least one recipient was reached. Switches without a
// usable message or without recipients are skipped silently; they stay in the
// due set for later runs.
func (e *Evaluator) dispatch(ctx context.Context, sw *domain.Switch, now time.Time, sum *Summary) {
	msg, err := repo.GetMessageForSwitch(ctx, e.DB, sw.ID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			log.Warn().Err(err).Str("switch_id", sw.ID).Msg("message lookup failed; skipping switch")
		}
		return
	}
	if strings.TrimSpace(msg.Body) == "" {
		return
	}

	recipients, err := repo.ListRecipientsForSwitch(ctx, e.DB, sw.ID)
	if err != nil {
		log.Warn().Err(err).Str("switch_id", sw.ID).Msg("recipient lookup failed; skipping switch")
		return
	}
	if len(recipients) == 0 {
		return
	}

	var sent int
	for _, r := range recipients {
		rendered := notify.Render(msg.Subject, msg.Body, r.Name)
		err := e.Mailer.Send(ctx, mail.Email{
			To:      r.Email,
			ReplyTo: e.ReplyTo,
			Subject: rendered.Subject,
			Text:    rendered.Text,
			HTML:    rendered.HTML,
			Stream:  alertStream,
		})
		if err != nil {
			sum.EmailsFailed++
			alertFailuresTotal.Inc()
			e.recordFailure(sum, sw.ID, r.Email, err)
			log.Warn().Err(err).
				Str("switch_id", sw.ID).
				Str("to", r.Email).
				Msg("alert delivery failed")
			continue
		}
		sent++
		sum.EmailsSent++
		alertsSentTotal.Inc()
	}

	// At least one recipient was reached: close the cycle. Total failure
	// leaves the marker untouched so the next run retries.
	if sent == 0 {
		return
	}
	base := domain.Baseline(sw)
	won, err := repo.MarkAlerted(ctx, e.DB, sw.ID, base, now)
	if err != nil {
		log.Error().Err(err).Str("switch_id", sw.ID).Msg("alert marker commit failed")
		return
	}
	if !won {
		log.Info().Str("switch_id", sw.ID).Msg("alert marker already committed by a concurrent run")
		return
	}
	log.Info().
		Str("switch_id", sw.ID).
		Int("recipients", len(recipients)).
		Int("sent", sent).
		Msg("switch alerted")
}

// recordFailure appends a bounded failure sample; counters stay exact even
// when the sample is full.
func (e *Evaluator) recordFailure(sum *Summary, switchID, to string, err error) {
	if len(sum.Failures) >= e.sampleCap() {
		return
	}
	f := DeliveryFailure{SwitchID: switchID, To: to, Error: err.Error()}
	var se *mail.SendError
	if errors.As(err, &se) {
		f.Code = se.Code
	}
	sum.Failures = append(sum.Failures, f)
}
