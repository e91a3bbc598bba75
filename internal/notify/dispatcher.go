package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/estatehub/marketplace/pkg/metrics"
)

const sendTimeout = 30 * time.Second

// Dispatcher delivers messages on a bounded worker pool. Delivery is best effort:
// failures are logged and counted, never returned to the caller.
type Dispatcher struct {
	mailer Mailer
	pool   *ants.Pool
	wg     sync.WaitGroup
}

func NewDispatcher(mailer Mailer, workers int) (*Dispatcher, error) {
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p interface{}) {
		zap.L().Error("mail worker panic", zap.String("namespace", "notify"), zap.Any("panic", p))
	}))
	if err != nil {
		return nil, err
	}
	return &Dispatcher{mailer: mailer, pool: pool}, nil
}

// Dispatch queues msg for delivery. Messages without recipients are ignored.
func (d *Dispatcher) Dispatch(msg Message) {
	msg.To = cleanRecipients(msg.To)
	if len(msg.To) == 0 {
		return
	}
	d.wg.Add(1)
	err := d.pool.Submit(func() {
		defer d.wg.Done()
		d.deliver(msg)
	})
	if err != nil {
		d.wg.Done()
		metrics.Incr("mail_failed", 1)
		zap.L().Warn("mail queue rejected message",
			zap.String("namespace", "notify"),
			zap.String("subject", msg.Subject),
			zap.Error(err))
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := d.mailer.Send(ctx, msg); err != nil {
		metrics.Incr("mail_failed", 1)
		zap.L().Warn("mail delivery failed",
			zap.String("namespace", "notify"),
			zap.String("to", strings.Join(msg.To, ",")),
			zap.String("subject", msg.Subject),
			zap.Error(err))
		return
	}
	metrics.Incr("mail_sent", 1)
}

// Wait blocks until every queued message has been attempted.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close waits for pending deliveries and releases the pool.
func (d *Dispatcher) Close() {
	d.Wait()
	d.pool.Release()
}

func cleanRecipients(to []string) []string {
	out := make([]string, 0, len(to))
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
