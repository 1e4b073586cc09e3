package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/MdanzDev/nickstore/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	// the worker always renders links; the configured channel is the API's
	cfg.Channel = config.ChannelWhatsApp
	local := os.Getenv("RUN_LOCAL") == "true"
	if !local {
		cfg.LogJSON = true
	}
	log := cfg.Logger()

	deps, err := config.Build(context.Background(), cfg, log)
	if err != nil {
		log.Fatalf("failed to build dependencies: %v", err)
	}
	defer deps.Close()

	p := NewProcessor(deps.KV, deps.WhatsApp, log)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if local {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"order_id":"local-order-1","items":[{"id":1,"game":"Mobile Legends","gameSlug":"mobile-legends","denom":"86 Diamonds","price":5.5,"userId":"12345678","zoneId":"1234","productId":"ml-86"}],"total":5.5,"created_at":"2026-10-16T06:30:05Z"}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{MessageId: "local-1", Body: testBody},
			},
		}
		if err := p.Handle(context.Background(), event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(p.Handle)
}
