package outbox

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
)

// Notifier wakes the outbox sweep loop early after a commit, trimming the
// average publish→indexed latency without it being load-bearing — a missed
// or failed notify still gets picked up by the next ticker sweep. Grounded
// on components/consumer/internal/adapters/rabbitmq/producer.rabbitmq.go's
// ProducerRepository shape, built directly against amqp091-go since the
// teacher's lib-commons RabbitMQConnection wrapper is not part of this
// module's dependency surface.
type Notifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   mlog.Logger
}

// NewNotifier opens a channel on conn and declares exchange as a fanout.
// conn may be nil, in which case Notify and CheckHealth are no-ops — wiring
// RabbitMQ is optional per deployment.
func NewNotifier(conn *amqp.Connection, exchange string, logger mlog.Logger) (*Notifier, error) {
	if conn == nil {
		return &Notifier{exchange: exchange, logger: logger}, nil
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, err
	}

	return &Notifier{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

// Notify best-effort publishes an empty wake-up message. Errors are logged
// and swallowed: the periodic ticker is the source of truth.
func (n *Notifier) Notify(ctx context.Context) {
	if n.channel == nil {
		return
	}

	err := n.channel.PublishWithContext(ctx, n.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/octet-stream",
		Body:        []byte{},
	})
	if err != nil {
		n.logger.Errorf("outbox notifier: publish failed: %v", err)
	}
}

// CheckHealth reports whether the underlying connection (if any) is open.
func (n *Notifier) CheckHealth() bool {
	if n.conn == nil {
		return true
	}

	return !n.conn.IsClosed()
}
