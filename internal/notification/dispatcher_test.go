package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  map[string]string
	fail  map[string]error
	delay time.Duration
}

func (f *fakeSender) Send(_ context.Context, to, body string) error {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[to]; err != nil {
		return err
	}
	if f.sent == nil {
		f.sent = map[string]string{}
	}
	f.sent[to] = body
	return nil
}

func arrival() LotArrival {
	return LotArrival{Lot: model.Lot{LotID: "L-100", Product: "Ribeye", QtyReceived: 250, Provider: "Acme"}}
}

func TestNotifySkipsPhoneless(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, logger.NewNop())

	res := d.Notify(context.Background(), arrival(), []Recipient{
		{Name: "Ana", Phone: "+1 (305) 555-0100"},
		{Name: "Ben", Phone: ""},
		{Name: "Cy", Phone: "whatsapp:+13055550102"},
	})

	assert.Equal(t, 2, res.Attempted)
	assert.Equal(t, 2, res.Sent)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "Ben", res.Skipped[0].Name)
	assert.Empty(t, res.Failures)
	assert.Contains(t, sender.sent["+13055550100"], "L-100")
	assert.Contains(t, sender.sent["+13055550102"], "Ribeye")
}

func TestNotifyIsolatesFailures(t *testing.T) {
	sender := &fakeSender{fail: map[string]error{"+13055550100": errors.New("invalid number")}}
	d := NewDispatcher(sender, logger.NewNop())

	res := d.Notify(context.Background(), arrival(), []Recipient{
		{Name: "Ana", Phone: "+13055550100"},
		{Name: "Cy", Phone: "+13055550102"},
	})

	assert.Equal(t, 2, res.Attempted)
	assert.Equal(t, 1, res.Sent)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "Ana", res.Failures[0].Recipient.Name)
	assert.Equal(t, "invalid number", res.Failures[0].Err)
}

func TestNotifyRunsInParallel(t *testing.T) {
	sender := &fakeSender{delay: 50 * time.Millisecond}
	d := NewDispatcher(sender, logger.NewNop())

	var recipients []Recipient
	for _, p := range []string{"+13055550100", "+13055550101", "+13055550102", "+13055550103"} {
		recipients = append(recipients, Recipient{Phone: p})
	}

	start := time.Now()
	res := d.Notify(context.Background(), arrival(), recipients)
	assert.Equal(t, 4, res.Sent)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestNewWithoutTwilioIsNoop(t *testing.T) {
	d := New(TwilioConfig{}, logger.NewNop())
	res := d.Notify(context.Background(), arrival(), []Recipient{{Phone: "+13055550100"}})
	assert.Equal(t, Result{}, res)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+13055550100", NormalizePhone(" +1 305-555-0100 "))
	assert.Equal(t, "+50688887777", NormalizePhone("whatsapp:+50688887777"))
	assert.Equal(t, "", NormalizePhone("n/a"))
	assert.Equal(t, "whatsapp:+13055550100", withPrefix("1 305 555 0100"))
}

func TestLotArrivalMessage(t *testing.T) {
	msg := arrival().Message()
	assert.Contains(t, msg, "Lot: L-100")
	assert.Contains(t, msg, "Quantity: 250 lbs")
	assert.Contains(t, msg, "Provider: Acme")
	assert.NotContains(t, msg, "Grade:")
}
