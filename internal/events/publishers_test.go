package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func testEntry(t *testing.T) OutboxEntry {
	t.Helper()
	exec := &stubExec{}
	_, err := AppendCanonicalEvent(context.Background(), exec, "clinic-1", "booking:b-1", "", BookingCreatedV1{BookingID: "b-1"})
	require.NoError(t, err)
	return OutboxEntry{
		ID:        exec.args[0].(uuid.UUID),
		OrgID:     "clinic-1",
		Type:      TypeBookingCreated,
		Payload:   exec.args[3].([]byte),
		CreatedAt: time.Now().UTC(),
	}
}

func TestSQSPublisher(t *testing.T) {
	client := &fakeSQS{}
	entry := testEntry(t)

	require.NoError(t, NewSQSPublisher(client, "https://sqs.local/queue").Handle(context.Background(), entry))
	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, string(entry.Payload), aws.ToString(in.MessageBody))
	assert.Equal(t, TypeBookingCreated, aws.ToString(in.MessageAttributes["event_type"].StringValue))
	assert.Nil(t, in.MessageGroupId)

	require.NoError(t, NewSQSPublisher(client, "https://sqs.local/queue.fifo").Handle(context.Background(), entry))
	assert.Equal(t, "clinic-1", aws.ToString(client.inputs[1].MessageGroupId))
	assert.Equal(t, entry.ID.String(), aws.ToString(client.inputs[1].MessageDeduplicationId))

	client.err = errors.New("throttled")
	assert.Error(t, NewSQSPublisher(client, "q").Handle(context.Background(), entry))
}

type fakeKafkaWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisherKeysByAggregate(t *testing.T) {
	w := &fakeKafkaWriter{}
	p := newKafkaPublisherWithWriter(w)
	entry := testEntry(t)

	require.NoError(t, p.Handle(context.Background(), entry))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "booking:b-1", string(w.msgs[0].Key))

	headers := map[string]string{}
	for _, h := range w.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, TypeBookingCreated, headers["event_type"])
	assert.Equal(t, entry.ID.String(), headers["event_id"])

	entry.Payload = []byte("not an envelope")
	require.NoError(t, p.Handle(context.Background(), entry))
	assert.Equal(t, entry.ID.String(), string(w.msgs[1].Key))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaHeaderCarrierSetOverwrites(t *testing.T) {
	c := &kafkaHeaderCarrier{}
	c.Set("traceparent", "a")
	c.Set("traceparent", "b")
	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}
