package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MdanzDev/nickstore/internal/aws"
	"github.com/MdanzDev/nickstore/internal/store"
)

var myt = time.FixedZone("MYT", 8*60*60)

func sampleOrder() store.Order {
	return store.Order{
		ID: "order-1",
		Items: []store.CartItem{
			{ID: 1, NewCartItem: store.NewCartItem{
				Game: "Mobile Legends", GameSlug: "mobile-legends", Denom: "86 Diamonds",
				Price: store.NewMoney(decimal.RequireFromString("10.00")), UserID: "12345678", ZoneID: "1234",
			}},
			{ID: 2, NewCartItem: store.NewCartItem{
				Game: "Genshin Impact", GameSlug: "genshin-impact", Denom: "Welkin Moon",
				Price: store.NewMoney(decimal.RequireFromString("5.5")), UserID: "800123456",
			}},
		},
		Total:     store.NewMoney(decimal.RequireFromString("15.50")),
		Status:    store.StatusPending,
		CreatedAt: time.Date(2026, 10, 16, 6, 30, 5, 0, time.UTC),
	}
}

func TestPayload_Message(t *testing.T) {
	msg := NewPayload(sampleOrder()).Message(myt)

	want := "*NICKSTORE ORDER*\n" +
		"═══════════════════\n\n" +
		"*1. Mobile Legends*\n" +
		"   📦 86 Diamonds\n" +
		"   👤 ID: 12345678 (1234)\n" +
		"   💰 RM 10.00\n\n" +
		"*2. Genshin Impact*\n" +
		"   📦 Welkin Moon\n" +
		"   👤 ID: 800123456\n" +
		"   💰 RM 5.50\n\n" +
		"═══════════════════\n" +
		"*TOTAL: RM 15.50*\n\n" +
		"Payment: Bank Transfer / E-Wallet\n" +
		"Date: 16/10/2026, 2:30:05 pm"
	assert.Equal(t, want, msg)
}

func TestNewPayload_CopiesItems(t *testing.T) {
	o := sampleOrder()
	p := NewPayload(o)
	p.Items[0].Game = "changed"
	assert.Equal(t, "Mobile Legends", o.Items[0].Game)
	assert.Equal(t, o.ID, p.OrderID)
	assert.True(t, p.Total.Equal(o.Total.Decimal))
}

func TestWhatsApp_LinkRoundTrip(t *testing.T) {
	w := &WhatsApp{Number: DefaultWhatsAppNumber, Location: myt}
	p := NewPayload(sampleOrder())

	link := w.Link(p)
	require.True(t, strings.HasPrefix(link, "https://wa.me/60197661697?text="))
	assert.NotContains(t, link, "+")
	assert.NotContains(t, link, " ")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, p.Message(myt), u.Query().Get("text"))
}

func TestEncodeURIComponent(t *testing.T) {
	assert.Equal(t, "*NICKSTORE%20ORDER*", encodeURIComponent("*NICKSTORE ORDER*"))
	assert.Equal(t, "ID%3A%2012345678%20(1234)", encodeURIComponent("ID: 12345678 (1234)"))
	assert.Equal(t, "it's!~._-", encodeURIComponent("it's!~._-"))
	assert.Equal(t, "a%2Bb%26c%3Dd", encodeURIComponent("a+b&c=d"))
}

func TestWhatsApp_DeliverOpensLink(t *testing.T) {
	logger, hook := test.NewNullLogger()
	w := NewWhatsApp("", myt, logger)
	require.NoError(t, w.Deliver(context.Background(), NewPayload(sampleOrder())))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "order-1", entry.Data["order_id"])
	assert.Contains(t, entry.Data["link"], "https://wa.me/"+DefaultWhatsAppNumber)

	var got string
	w.Open = func(_ context.Context, orderID, link string) error {
		got = link
		return nil
	}
	require.NoError(t, Handoff{Channel: w}.Fulfill(context.Background(), sampleOrder()))
	assert.Equal(t, w.Link(NewPayload(sampleOrder())), got)
}

type mockSQS struct {
	bodies []string
	attrs  []map[string]string
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.bodies = append(m.bodies, *in.MessageBody)
	attrs := map[string]string{}
	for k, v := range in.MessageAttributes {
		attrs[k] = *v.StringValue
	}
	m.attrs = append(m.attrs, attrs)
	return &sqs.SendMessageOutput{}, nil
}

func TestSQS_Deliver(t *testing.T) {
	mock := &mockSQS{}
	ch := NewSQS(aws.NewPublisher(mock, "https://sqs.local/orders"))

	require.NoError(t, ch.Deliver(context.Background(), NewPayload(sampleOrder())))

	require.Len(t, mock.bodies, 1)
	var got Payload
	require.NoError(t, json.Unmarshal([]byte(mock.bodies[0]), &got))
	assert.Equal(t, "order-1", got.OrderID)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Mobile Legends", got.Items[0].Game)
	assert.Equal(t, "Genshin Impact", got.Items[1].Game)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("15.5")))
	assert.Equal(t, "order-1", mock.attrs[0]["order_id"])
}

type mockWriter struct {
	msgs []kafka.Message
	err  error
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func TestKafka_Deliver(t *testing.T) {
	w := &mockWriter{}
	require.NoError(t, NewKafka(w).Deliver(context.Background(), NewPayload(sampleOrder())))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-1", string(w.msgs[0].Key))
	var got Payload
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Len(t, got.Items, 2)

	w.err = errors.New("leader not available")
	err := NewKafka(w).Deliver(context.Background(), NewPayload(sampleOrder()))
	assert.ErrorIs(t, err, w.err)
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard{}.Deliver(context.Background(), Payload{}))
}
