package realtime

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/catalystvision/core/log"
)

// ingressFrame is the wire shape accepted on the live-stream ingress
// websocket (spec.md §6: "accepts {type: frame, frame: {...}} records").
type ingressFrame struct {
	Type  string `json:"type"`
	Frame struct {
		StreamID    string `json:"streamId"`
		ClientID    string `json:"clientId"`
		FrameNumber int64  `json:"frameNumber"`
		PTS         float64 `json:"pts"`
		Data        []byte `json:"data"`
	} `json:"frame"`
}

// Ingress upgrades the /stream endpoint and XADDs each accepted frame onto
// the append-log fabric for StreamConsumer to pick up (spec.md §4.4, §6).
// Authentication is always required here, unlike the read-only subscribe
// namespaces (spec.md §4.7).
type Ingress struct {
	gateway *Gateway
	rdb     *redis.Client
}

func NewIngress(gateway *Gateway, rdb *redis.Client) *Ingress {
	return &Ingress{gateway: gateway, rdb: rdb}
}

func (in *Ingress) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := in.gateway.authenticateRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.LogError("", "ingress websocket upgrade failed", err)
		return
	}
	defer conn.Close()

	log.Log(claims.UserID, "live-stream ingress connected")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		in.handleFrame(r.Context(), data)
	}
}

func (in *Ingress) handleFrame(ctx context.Context, data []byte) {
	var msg ingressFrame
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "frame" {
		return
	}
	if msg.Frame.StreamID == "" || msg.Frame.ClientID == "" || len(msg.Frame.Data) == 0 {
		return
	}

	streamKey := "frames:" + msg.Frame.StreamID
	err := in.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{
			"client_id":    msg.Frame.ClientID,
			"frame":        msg.Frame.Data,
			"frame_number": msg.Frame.FrameNumber,
			"pts":          msg.Frame.PTS,
		},
	}).Err()
	if err != nil {
		log.LogError(msg.Frame.ClientID, "failed to append ingress frame", err, "stream", streamKey)
	}
}
