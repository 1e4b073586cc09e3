package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.inputs = append(m.inputs, in)
	return &sqs.SendMessageOutput{MessageId: awsString("msg-1")}, nil
}

func TestPublisher_SendMessage(t *testing.T) {
	mock := &mockSQS{}
	p := NewPublisher(mock, "https://sqs.local/queue")

	id, err := p.SendMessage(context.Background(), `{"order_id":"o1"}`, map[string]string{
		"order_id": "o1",
		"empty":    "",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)

	require.Len(t, mock.inputs, 1)
	in := mock.inputs[0]
	assert.Equal(t, "https://sqs.local/queue", *in.QueueUrl)
	assert.Equal(t, `{"order_id":"o1"}`, *in.MessageBody)
	require.Contains(t, in.MessageAttributes, "order_id")
	assert.Equal(t, "o1", *in.MessageAttributes["order_id"].StringValue)
	assert.NotContains(t, in.MessageAttributes, "empty")
}

func TestPublisher_Errors(t *testing.T) {
	_, err := NewPublisher(&mockSQS{}, "").SendMessage(context.Background(), "{}", nil)
	assert.ErrorIs(t, err, ErrNoQueue)

	boom := errors.New("boom")
	_, err = NewPublisher(&mockSQS{err: boom}, "q").SendMessage(context.Background(), "{}", nil)
	assert.ErrorIs(t, err, boom)
}

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetrics_Count(t *testing.T) {
	mock := &mockCloudWatch{}
	m := NewMetrics(mock, "NickStore")

	require.NoError(t, m.Count(context.Background(), MetricPersistFailures, "dynamodb"))

	require.Len(t, mock.inputs, 1)
	in := mock.inputs[0]
	assert.Equal(t, "NickStore", *in.Namespace)
	require.Len(t, in.MetricData, 1)
	d := in.MetricData[0]
	assert.Equal(t, MetricPersistFailures, *d.MetricName)
	assert.Equal(t, 1.0, *d.Value)
	require.Len(t, d.Dimensions, 1)
	assert.Equal(t, "dynamodb", *d.Dimensions[0].Value)
}
