// Package notifier delivers transactional emails. The API side enqueues
// EmailJobs on RabbitMQ; the consumer side decodes them and hands them to a
// Mailer.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/streadway/amqp"
)

// EmailJob is the message placed on the email queue.
type EmailJob struct {
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	QueuedAt time.Time `json:"queued_at"`
}

// Publisher is satisfied by *rabbitmq.Client.
type Publisher interface {
	PublishJSON(queue string, payload interface{}) error
}

// QueueNotifier sends email by enqueuing a job for the consumer.
type QueueNotifier struct {
	publisher Publisher
	queue     string
}

func NewQueueNotifier(publisher Publisher, queue string) *QueueNotifier {
	return &QueueNotifier{publisher: publisher, queue: queue}
}

// SendEmail enqueues one email.
func (n *QueueNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	job := EmailJob{To: to, Subject: subject, Body: body, QueuedAt: time.Now().UTC()}
	if err := n.publisher.PublishJSON(n.queue, job); err != nil {
		return fmt.Errorf("failed to enqueue email to %s: %w", to, err)
	}
	return nil
}

// Mailer performs the actual delivery of an email.
type Mailer interface {
	Deliver(ctx context.Context, job EmailJob) error
}

// LogMailer writes emails to the log instead of sending them.
type LogMailer struct{}

func (LogMailer) Deliver(_ context.Context, job EmailJob) error {
	log.Printf("email to=%s subject=%q body=%q", job.To, job.Subject, job.Body)
	return nil
}

// DirectNotifier delivers through a Mailer in-process. Used when no broker
// is configured.
type DirectNotifier struct {
	mailer Mailer
}

func NewDirectNotifier(mailer Mailer) *DirectNotifier {
	return &DirectNotifier{mailer: mailer}
}

func (n *DirectNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	return n.mailer.Deliver(ctx, EmailJob{To: to, Subject: subject, Body: body, QueuedAt: time.Now().UTC()})
}

// Handler returns a delivery handler for the email queue. Malformed jobs are
// logged and acknowledged since redelivering them cannot succeed.
func Handler(mailer Mailer, timeout time.Duration) func(msg amqp.Delivery) error {
	return func(msg amqp.Delivery) error {
		var job EmailJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			log.Printf("Discarding malformed email job %d: %v", msg.DeliveryTag, err)
			return nil
		}
		if job.To == "" {
			log.Printf("Discarding email job %d without recipient", msg.DeliveryTag)
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := mailer.Deliver(ctx, job); err != nil {
			return fmt.Errorf("failed to deliver email to %s: %w", job.To, err)
		}
		return nil
	}
}
