package nats

import (
	"context"
	"os"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultTestImage = "nats:2.11-alpine"

// Testing is the subset of testing.TB the container helpers need, so they can
// also run outside go test (see cmd/loadtest).
type Testing interface {
	require.TestingT
	Context() context.Context
	Logf(format string, args ...any)
	Cleanup(func())
}

// StartTestServer runs a JetStream-enabled NATS container until t cleans up
// and returns its client URL. $NATS_TEST_IMAGE overrides the image.
func StartTestServer(t Testing) string {
	image := os.Getenv("NATS_TEST_IMAGE")
	if image == "" {
		image = defaultTestImage
	}

	ctx := t.Context()
	c, err := testcontainers.Run(
		ctx, image,
		testcontainers.WithCmd("-js"),
		testcontainers.WithExposedPorts("4222/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("4222/tcp"),
			wait.ForLog("Server is ready"),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			t.Errorf("failed to terminate nats container: %s", err.Error())
		}
	})

	url, err := c.PortEndpoint(ctx, "4222/tcp", "nats")
	require.NoError(t, err)
	t.Logf("nats url: %s", url)
	return url
}

// NewTestContainer is StartTestServer returning a Connector.
func NewTestContainer(t Testing) Connector {
	return ConnectURL(StartTestServer(t))
}
