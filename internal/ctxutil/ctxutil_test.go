package ctxutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanceled(t *testing.T) {
	t.Parallel()

	require.NoError(t, Canceled(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Canceled(ctx), context.Canceled)
}
