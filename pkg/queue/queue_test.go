package queue

import (
	"context"
	"testing"
	"time"

	"github.com/adred-codev/topicbroker/internal/broker"
	"github.com/adred-codev/topicbroker/internal/codec"
	"github.com/adred-codev/topicbroker/internal/transport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func startTestBroker(t *testing.T) string {
	t.Helper()

	engine := broker.New(zerolog.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go engine.Run(ctx)

	srv := transport.NewServer(transport.Config{Addr: "127.0.0.1:0"}, engine, nil, nil, zerolog.Nop())
	require.NoError(t, srv.Start(ctx))

	t.Cleanup(func() {
		cancel()
		srv.Shutdown(context.Background())
	})

	// Server.Start binds synchronously via net.Listen before returning, so
	// the listener address is already final by the time Start returns.
	return srv.Addr()
}

func TestPushPullRoundTrip(t *testing.T) {
	addr := startTestBroker(t)

	consumer, err := Dial(addr, "/temp", Consumer, codec.SerializerJSON)
	require.NoError(t, err)
	defer consumer.Close()

	// Synchronize: a ListTopics round trip on the consumer guarantees its
	// SUBSCRIBE has already reached the broker before we publish.
	_, err = consumer.ListTopics()
	require.NoError(t, err)

	producer, err := Dial(addr, "/temp", Producer, codec.SerializerBinary)
	require.NoError(t, err)
	defer producer.Close()

	require.NoError(t, producer.Push("42"))

	topic, value, err := consumer.Pull()
	require.NoError(t, err)
	require.Equal(t, "/temp", topic)
	require.Equal(t, "42", value)
}

func TestCancelStopsDelivery(t *testing.T) {
	addr := startTestBroker(t)

	consumer, err := Dial(addr, "/t", Consumer, codec.SerializerJSON)
	require.NoError(t, err)
	defer consumer.Close()

	require.NoError(t, consumer.Cancel())
	_, err = consumer.ListTopics()
	require.NoError(t, err)

	producer, err := Dial(addr, "/t", Producer, codec.SerializerJSON)
	require.NoError(t, err)
	defer producer.Close()

	require.NoError(t, producer.Push("ignored"))

	select {
	case m := <-consumer.incoming:
		t.Fatalf("expected no delivery after cancel, got %+v", m)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestListTopicsReportsKnownTopics(t *testing.T) {
	addr := startTestBroker(t)

	producer, err := Dial(addr, "/a", Producer, codec.SerializerJSON)
	require.NoError(t, err)
	defer producer.Close()

	require.NoError(t, producer.Push("1"))
	_, err = producer.ListTopics()
	require.NoError(t, err)

	lister, err := Dial(addr, "", Producer, codec.SerializerJSON)
	require.NoError(t, err)
	defer lister.Close()

	topics, err := lister.ListTopics()
	require.NoError(t, err)
	require.Contains(t, topics, "/a")
}
