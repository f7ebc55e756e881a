// Package notification fans inventory events out to WhatsApp recipients.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	"go.uber.org/zap"
)

type Event interface {
	Kind() string
	Message() string
}

// LotArrival is sent when an inbound lot is recorded.
type LotArrival struct {
	Lot model.Lot
}

func (LotArrival) Kind() string { return "lot_arrival" }

func (e LotArrival) Message() string {
	l := e.Lot
	var b strings.Builder
	b.WriteString("📦 *New lot received*\n")
	fmt.Fprintf(&b, "Lot: %s\n", l.LotID)
	fmt.Fprintf(&b, "Product: %s\n", l.Product)
	fmt.Fprintf(&b, "Quantity: %s lbs\n", trimFloat(l.QtyReceived))
	if l.Provider != "" {
		fmt.Fprintf(&b, "Provider: %s\n", l.Provider)
	}
	if l.Grade != "" {
		fmt.Fprintf(&b, "Grade: %s\n", l.Grade)
	}
	if l.Origin != "" {
		fmt.Fprintf(&b, "Origin: %s\n", l.Origin)
	}
	if l.UnitPrice > 0 {
		fmt.Fprintf(&b, "Unit price: $%.2f\n", l.UnitPrice)
	}
	if l.ExpirationDate != nil {
		fmt.Fprintf(&b, "Expires: %s\n", l.ExpirationDate.Format("2006-01-02"))
	}
	arrival := l.ArrivalDate
	if arrival.IsZero() {
		arrival = time.Now()
	}
	fmt.Fprintf(&b, "Arrived: %s", arrival.Format("2006-01-02 15:04"))
	return b.String()
}

type Recipient struct {
	Name  string
	Phone string
}

type Failure struct {
	Recipient Recipient
	Err       string
}

// Result summarizes one fan-out. Recipients without a phone are listed in
// Skipped and never counted as attempted.
type Result struct {
	Attempted int
	Sent      int
	Skipped   []Recipient
	Failures  []Failure
}

type Dispatcher interface {
	Notify(ctx context.Context, event Event, recipients []Recipient) Result
}

// Sender delivers one WhatsApp text to a normalized phone number.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

type dispatcher struct {
	sender Sender
	logger logger.ZapLogger
}

func NewDispatcher(sender Sender, log logger.ZapLogger) Dispatcher {
	return &dispatcher{sender: sender, logger: log}
}

// New returns a Twilio-backed dispatcher, or a no-op one when Twilio is not configured.
func New(cfg TwilioConfig, log logger.ZapLogger) Dispatcher {
	if !cfg.Configured() {
		return &noopDispatcher{logger: log}
	}
	return NewDispatcher(NewTwilioSender(cfg), log)
}

func (d *dispatcher) Notify(ctx context.Context, event Event, recipients []Recipient) Result {
	var res Result
	body := event.Message()

	type outcome struct {
		recipient Recipient
		err       error
	}
	var targets []Recipient
	for _, r := range recipients {
		if NormalizePhone(r.Phone) == "" {
			res.Skipped = append(res.Skipped, r)
			continue
		}
		targets = append(targets, r)
	}
	res.Attempted = len(targets)

	outcomes := make([]outcome, len(targets))
	var wg sync.WaitGroup
	for i, r := range targets {
		wg.Add(1)
		go func(i int, r Recipient) {
			defer wg.Done()
			outcomes[i] = outcome{recipient: r, err: d.sender.Send(ctx, NormalizePhone(r.Phone), body)}
		}(i, r)
	}
	wg.Wait()

	for _, o := range outcomes {
		if o.err != nil {
			d.logger.Warn("failed to send whatsapp notification",
				zap.String("kind", event.Kind()),
				zap.String("recipient", o.recipient.Name),
				zap.Error(o.err),
			)
			res.Failures = append(res.Failures, Failure{Recipient: o.recipient, Err: o.err.Error()})
			continue
		}
		res.Sent++
	}
	return res
}

type noopDispatcher struct {
	logger logger.ZapLogger
}

func (n *noopDispatcher) Notify(_ context.Context, event Event, recipients []Recipient) Result {
	n.logger.Warn("whatsapp notifications are not configured, skipping",
		zap.String("kind", event.Kind()),
		zap.Int("recipients", len(recipients)),
	)
	return Result{}
}

// NormalizePhone keeps digits and prefixes "+". Returns "" when nothing usable remains.
func NormalizePhone(phone string) string {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:")
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() < 7 {
		return ""
	}
	return "+" + digits.String()
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
