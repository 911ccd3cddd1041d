package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestTopic(t *testing.T) (*pubsub.Topic, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "builds")
	require.NoError(t, err)
	t.Cleanup(topic.Stop)
	return topic, srv
}

func TestPublisherPublishesJSON(t *testing.T) {
	t.Parallel()

	topic, srv := newTestTopic(t)
	pub := New(topic)

	id, err := pub.Publish(context.Background(), "site.generated", map[string]int{"artifacts": 3})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "site.generated", msgs[0].Attributes["event"])
	var payload map[string]int
	require.NoError(t, json.Unmarshal(msgs[0].Data, &payload))
	assert.Equal(t, 3, payload["artifacts"])
}

func TestPublisherRejectsUnmarshalablePayload(t *testing.T) {
	t.Parallel()

	topic, _ := newTestTopic(t)
	_, err := New(topic).Publish(context.Background(), "x", make(chan int))
	assert.Error(t, err)
}

func TestPublisherWithoutTopic(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "x", "payload")
	assert.Error(t, err)
	New(nil).Stop()
}

func TestCarrier(t *testing.T) {
	t.Parallel()

	c := &pubsubCarrier{attrs: map[string]string{}}
	c.Set("traceparent", "00-abc")
	assert.Equal(t, "00-abc", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}
