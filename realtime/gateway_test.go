package realtime

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/catalystvision/core/eventbus"
	"github.com/catalystvision/core/video"
)

func newTestGateway() *Gateway {
	return NewGateway(nil, NewAuthenticator([]byte("secret"), "videoagent", 0))
}

func TestJoinRoomThenDispatchDeliversToSubscriber(t *testing.T) {
	g := newTestGateway()
	sess := newSession("s1", NamespaceJobs, nil, nil)
	g.joinRoom(sess, "job-1")

	payload, err := eventbus.MarshalJobEvent(eventbus.JobEvent{JobID: "job-1", State: video.StateActive})
	require.NoError(t, err)

	g.dispatch(eventbus.Message{Topic: eventbus.JobTopic("job-1"), Payload: payload})

	select {
	case got := <-sess.send:
		require.Equal(t, payload, got)
	default:
		t.Fatal("expected message to be delivered to subscribed session")
	}
}

func TestDispatchAlsoFansOutToVideoAgentNamespace(t *testing.T) {
	g := newTestGateway()
	jobsSess := newSession("s1", NamespaceJobs, nil, nil)
	vaSess := newSession("s2", NamespaceVideoAgent, nil, nil)
	g.joinRoom(jobsSess, "job-1")
	g.joinRoom(vaSess, "job-1")

	payload, err := eventbus.MarshalJobEvent(eventbus.JobEvent{JobID: "job-1", State: video.StateCompleted})
	require.NoError(t, err)
	g.dispatch(eventbus.Message{Topic: eventbus.JobTopic("job-1"), Payload: payload})

	require.Len(t, jobsSess.send, 1)
	require.Len(t, vaSess.send, 1)
}

func TestDispatchIgnoresUnsubscribedRoom(t *testing.T) {
	g := newTestGateway()
	sess := newSession("s1", NamespaceJobs, nil, nil)
	g.joinRoom(sess, "job-1")

	payload, err := eventbus.MarshalJobEvent(eventbus.JobEvent{JobID: "job-2", State: video.StateActive})
	require.NoError(t, err)
	g.dispatch(eventbus.Message{Topic: eventbus.JobTopic("job-2"), Payload: payload})

	require.Len(t, sess.send, 0)
}

func TestLeaveRoomRemovesSubscription(t *testing.T) {
	g := newTestGateway()
	sess := newSession("s1", NamespaceJobs, nil, nil)
	g.joinRoom(sess, "job-1")
	g.leaveRoom(sess, "job-1")
	require.False(t, sess.inRoom("job-1"))

	payload, err := eventbus.MarshalJobEvent(eventbus.JobEvent{JobID: "job-1", State: video.StateActive})
	require.NoError(t, err)
	g.dispatch(eventbus.Message{Topic: eventbus.JobTopic("job-1"), Payload: payload})
	require.Len(t, sess.send, 0)
}

func TestStatsTracksConnectionsAndEvents(t *testing.T) {
	g := newTestGateway()
	g.stats.onConnect(NamespaceJobs)
	g.stats.onConnect(NamespaceJobs)
	g.stats.onDisconnect(NamespaceJobs)
	g.stats.onEvent("job")
	g.stats.onEvent("job")

	snap := g.Stats()
	require.Equal(t, int64(1), snap.Connections[NamespaceJobs])
	require.Equal(t, int64(2), snap.TotalSince)
	require.Equal(t, int64(2), snap.EventCounts["job"])
}

func TestServeWSUpgradesReadOnlySubscriberWithoutToken(t *testing.T) {
	g := newTestGateway()
	srv := httptest.NewServer(g.ServeWS(NamespaceJobs, false))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	resp.Body.Close()

	require.Eventually(t, func() bool {
		return g.Stats().Connections[NamespaceJobs] == 1
	}, time.Second, 10*time.Millisecond)
}

func TestServeWSRejectsMissingTokenWhenAuthRequired(t *testing.T) {
	g := newTestGateway()
	srv := httptest.NewServer(g.ServeWS(NamespaceJobs, true))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 401, resp.StatusCode)
}
