package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MdanzDev/nickstore/internal/aws"
)

// SQS queues payloads as JSON for the fulfillment worker.
type SQS struct {
	publisher *aws.Publisher
}

func NewSQS(p *aws.Publisher) *SQS {
	return &SQS{publisher: p}
}

func (s *SQS) Deliver(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = s.publisher.SendMessage(ctx, string(body), map[string]string{
		"order_id": p.OrderID,
		"channel":  "sqs",
	})
	return err
}
