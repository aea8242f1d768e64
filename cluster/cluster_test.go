package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalystvision/core/video"
)

func TestDesiredWorkersClampsToMin(t *testing.T) {
	got := DesiredWorkers(video.Metrics{Waiting: 0, Delayed: 0}, 2, 10)
	require.Equal(t, 2, got)
}

func TestDesiredWorkersClampsToMax(t *testing.T) {
	got := DesiredWorkers(video.Metrics{Waiting: 1000}, 2, 10)
	require.Equal(t, 10, got)
}

func TestDesiredWorkersScalesWithBacklog(t *testing.T) {
	got := DesiredWorkers(video.Metrics{Waiting: 12, Delayed: 3}, 1, 20)
	require.Equal(t, 3, got) // ceil(15/5)
}

func TestDesiredWorkersDefaultsMinWhenUnset(t *testing.T) {
	got := DesiredWorkers(video.Metrics{Waiting: 0}, 0, 0)
	require.Equal(t, 1, got)
}

func TestNewClusterMemberChanIsUsableBeforeStart(t *testing.T) {
	c := NewCluster(Config{BindAddress: "127.0.0.1:0", NodeName: "test-node"})
	require.NotNil(t, c.MemberChan())
}
