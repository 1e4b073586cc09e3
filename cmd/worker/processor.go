package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"

	"github.com/MdanzDev/nickstore/internal/fulfillment"
	"github.com/MdanzDev/nickstore/internal/storage"
)

// fulfilledPrefix keys the per-order delivery status, so a redelivered
// message is not handed to the operator twice.
const fulfilledPrefix = "nickstore-fulfilled-"

// Delivery statuses
const (
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Processor turns queued fulfillment payloads into WhatsApp order links.
type Processor struct {
	seen storage.KV
	wa   *fulfillment.WhatsApp
	log  logrus.FieldLogger
}

// NewProcessor creates a worker processor. seen records delivery status per order.
func NewProcessor(seen storage.KV, wa *fulfillment.WhatsApp, log logrus.FieldLogger) *Processor {
	return &Processor{seen: seen, wa: wa, log: log}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	p.log.Infof("received %d SQS messages", len(ev.Records))
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry. If failed too many times, message goes to DLQ.
			p.log.WithError(err).WithField("message_id", rec.MessageId).Error("worker error")
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var payload fulfillment.Payload
	if err := json.Unmarshal([]byte(rec.Body), &payload); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if payload.OrderID == "" {
		return errors.New("invalid message body: missing order_id")
	}
	if len(payload.Items) == 0 {
		return fmt.Errorf("order=%s has no items", payload.OrderID)
	}

	log := p.log.WithField("order_id", payload.OrderID)
	key := fulfilledPrefix + payload.OrderID

	// Step 1: claim the order (idempotent)
	claimed, err := storage.Claim(ctx, p.seen, key, []byte(StatusInProgress))
	if err != nil {
		return fmt.Errorf("claim order=%s: %w", payload.OrderID, err)
	}
	if !claimed {
		status, err := p.seen.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read status for order=%s: %w", payload.OrderID, err)
		}
		switch string(status) {
		case StatusDone:
			log.Info("already delivered")
			return nil
		case StatusInProgress:
			// another worker took it
			log.Info("duplicate fulfillment event")
			return nil
		case StatusFailed:
			// a previous attempt failed; only one redelivery may take the retry
			retry, err := storage.Swap(ctx, p.seen, key, []byte(StatusFailed), []byte(StatusInProgress))
			if err != nil {
				return fmt.Errorf("retry order=%s: %w", payload.OrderID, err)
			}
			if !retry {
				log.Info("retry already taken by another worker")
				return nil
			}
		default:
			return fmt.Errorf("unexpected status for order=%s: %q", payload.OrderID, status)
		}
	}

	// Step 2: hand the link to the operator
	if err := p.wa.Deliver(ctx, payload); err != nil {
		if serr := p.seen.Set(ctx, key, []byte(StatusFailed)); serr != nil {
			log.WithError(serr).Warn("failed to record delivery failure")
		}
		return fmt.Errorf("deliver order=%s: %w", payload.OrderID, err)
	}

	// Step 3: mark done
	if err := p.seen.Set(ctx, key, []byte(StatusDone)); err != nil {
		return fmt.Errorf("mark order=%s done: %w", payload.OrderID, err)
	}
	log.Info("order handed to operator")
	return nil
}
