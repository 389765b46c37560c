package jobs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestClientEnqueueCompensationRatio(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	defer func() { require.NoError(t, client.Close()) }()

	info, err := client.EnqueueCompensationRatio(context.Background(),
		CompensationRatioPayload{WarehouseID: 5})
	require.NoError(t, err)
	require.Equal(t, TaskCompensationRatio, info.Type)
	require.Equal(t, QueueDefault, info.Queue)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer func() { require.NoError(t, inspector.Close()) }()

	queueInfo, err := inspector.GetQueueInfo(QueueDefault)
	require.NoError(t, err)
	require.Equal(t, 1, queueInfo.Pending)
}
