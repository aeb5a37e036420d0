package publish

import (
	"context"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/anstrom/shodan-notifier/internal/errors"
)

func newFakePubSub(t *testing.T) (*pstest.Server, *pubsub.Client) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return srv, client
}

func TestPubSubPublish(t *testing.T) {
	srv, client := newFakePubSub(t)
	ctx := context.Background()

	topic, err := client.CreateTopic(ctx, "reports")
	require.NoError(t, err)

	p := NewPubSub(topic)
	defer p.Stop()

	require.NoError(t, p.Publish(ctx, "#security", testDocument()))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello world", string(msgs[0].Data))
	assert.Equal(t, map[string]string{
		"title":    "Shodan_Notifier",
		"channel":  "#security",
		"filename": "report.txt",
		"date":     "2024-05-01",
	}, msgs[0].Attributes)
}

func TestPubSubPublishMissingTopic(t *testing.T) {
	_, client := newFakePubSub(t)

	p := NewPubSub(client.Topic("does-not-exist"))
	defer p.Stop()

	err := p.Publish(context.Background(), "#security", testDocument())
	assert.True(t, errors.IsCode(err, errors.CodePublishFailed))
}

func TestPubSubNilTopic(t *testing.T) {
	err := NewPubSub(nil).Publish(context.Background(), "c", testDocument())

	var pubErr *errors.PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, ProviderPubSub, pubErr.Provider)
}
