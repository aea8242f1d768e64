// Package cluster implements the worker-pool membership and autoscaling
// signal supplementing C6 (SPEC_FULL.md §C.1): orchestrator workers join a
// gossip cluster tagged with GPU capacity, and JobQueue depth feeds a
// recommended pool size.
package cluster

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/hashicorp/memberlist"
	"github.com/hashicorp/serf/serf"

	"github.com/catalystvision/core/video"
)

// Config is the subset of process configuration the cluster needs to bind,
// advertise, and join. EncryptKey, if set, must decode to a 16/24/32-byte
// AES key (serf/memberlist's gossip encryption requirement).
type Config struct {
	BindAddress      string
	AdvertiseAddress string
	NodeName         string
	Tags             map[string]string
	RetryJoin        []string
	EncryptKey       string

	MinWorkers int
	MaxWorkers int
}

func (c Config) encryptBytes() ([]byte, error) {
	if c.EncryptKey == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(c.EncryptKey)
}

// Member is a gossip-cluster peer: an orchestrator worker tagged with its
// GPU capacity (and, for gateway nodes, its websocket listen address).
type Member struct {
	Name string            `json:"name"`
	Tags map[string]string `json:"tags"`
}

// workerFilter selects gossip members tagged as orchestrator workers,
// mirroring the teacher's mediaFilter selecting Mist media nodes.
var workerFilter = map[string]string{"role": "worker"}

// Cluster is the gossip membership facade C6 uses to discover sibling
// workers and their GPU tags. Implemented over hashicorp/serf exactly as
// the teacher wires Mist-node discovery (cluster/cluster.go), repurposed
// from stream-node resolution to worker-pool membership.
type Cluster interface {
	Start(ctx context.Context) error
	MembersFiltered(filter map[string]string, status, name string) ([]Member, error)
	MemberChan() chan []Member
}

type gossipCluster struct {
	config   Config
	serf     *serf.Serf
	eventCh  chan serf.Event
	memberCh chan []Member
}

// NewCluster builds a Cluster that joins lazily on Start.
func NewCluster(config Config) Cluster {
	return &gossipCluster{
		config:   config,
		eventCh:  make(chan serf.Event, 64),
		memberCh: make(chan []Member),
	}
}

func (c *gossipCluster) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	encryptBytes, err := c.config.encryptBytes()
	if err != nil {
		return fmt.Errorf("error decoding encryption key: %w", err)
	}
	bhost, portstr, err := net.SplitHostPort(c.config.BindAddress)
	if err != nil {
		return fmt.Errorf("error splitting bind address %s: %v", c.config.BindAddress, err)
	}
	bport, err := strconv.Atoi(portstr)
	if err != nil {
		return fmt.Errorf("error parsing port %s: %v", portstr, err)
	}
	ahost, aport := "", 0
	if c.config.AdvertiseAddress != "" {
		ahost, portstr, err = net.SplitHostPort(c.config.AdvertiseAddress)
		if err != nil {
			return fmt.Errorf("error splitting advertise address %s: %v", c.config.AdvertiseAddress, err)
		}
		aport, err = strconv.Atoi(portstr)
		if err != nil {
			return fmt.Errorf("error parsing port %s: %v", portstr, err)
		}
	}

	memberlistConfig := memberlist.DefaultWANConfig()
	memberlistConfig.BindAddr = bhost
	memberlistConfig.BindPort = bport
	memberlistConfig.AdvertiseAddr = ahost
	memberlistConfig.AdvertisePort = aport
	memberlistConfig.EnableCompression = true
	memberlistConfig.SecretKey = encryptBytes

	serfConfig := serf.DefaultConfig()
	serfConfig.MemberlistConfig = memberlistConfig
	serfConfig.NodeName = c.config.NodeName
	serfConfig.Tags = c.config.Tags
	serfConfig.EventCh = c.eventCh
	serfConfig.ProtocolVersion = 5

	c.serf, err = serf.Create(serfConfig)
	if err != nil {
		return err
	}

	go c.retryJoin(ctx)
	go func() {
		_ = c.handleEvents(ctx)
		cancel()
	}()

	<-ctx.Done()

	glog.Infof("leaving worker gossip cluster")
	if err := c.serf.Leave(); err != nil {
		glog.Infof("error leaving cluster: %s", err)
	}
	return c.serf.Shutdown()
}

func (c *gossipCluster) retryJoin(ctx context.Context) {
	if len(c.config.RetryJoin) == 0 {
		glog.Infof("no retry-join addresses configured, starting a single-node cluster")
		return
	}
	backoff := time.Second
	for {
		n, err := c.serf.Join(c.config.RetryJoin, false)
		if n > 0 {
			glog.Infof("joined %d-node worker cluster", n)
			return
		}
		if err != nil {
			glog.Errorf("error joining worker cluster: %v", err)
		}
		jitter := time.Duration(rand.Int63n(int64(backoff)))
		sleepCtx, cancel := context.WithTimeout(ctx, backoff+jitter)
		select {
		case <-ctx.Done():
			cancel()
			return
		case <-sleepCtx.Done():
			cancel()
			continue
		}
	}
}

func (c *gossipCluster) MembersFiltered(filter map[string]string, status, name string) ([]Member, error) {
	all := c.serf.Members()
	nodes := []Member{}
	for _, member := range all {
		if status != "" && status != member.Status.String() {
			continue
		}
		if name != "" && name != member.Name {
			continue
		}
		matches := true
		for k, v := range filter {
			val, ok := member.Tags[k]
			if !ok || val != v {
				matches = false
				break
			}
		}
		if matches {
			nodes = append(nodes, Member{Name: member.Name, Tags: member.Tags})
		}
	}
	return nodes, nil
}

func (c *gossipCluster) MemberChan() chan []Member {
	return c.memberCh
}

func (c *gossipCluster) handleEvents(ctx context.Context) error {
	inbox := make(chan serf.Event, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-c.eventCh:
				select {
				case <-ctx.Done():
					return
				case inbox <- e:
				default:
					// overflow event dropped; next membership poll catches up
				}
			}
		}
	}()

	for {
		select {
		case event := <-inbox:
			glog.V(3).Infof("got cluster event: %v", event)
		case <-ctx.Done():
			return nil
		}
		members, err := c.MembersFiltered(workerFilter, "alive", "")
		if err != nil {
			glog.Errorf("error listing worker members: %v", err)
			return err
		}
		c.memberCh <- members
	}
}

// DesiredWorkers recommends an orchestrator pool size from current queue
// depth, clamped to [min, max] (SPEC_FULL.md §C.1, spec.md §5: "N_w
// orchestrator workers, default 2-10, autoscaled by JobQueue depth").
// Actuation (spinning processes up or down) is left to the operator or an
// external controller; this only computes the recommendation.
func DesiredWorkers(metrics video.Metrics, min, max int) int {
	if min <= 0 {
		min = 1
	}
	if max < min {
		max = min
	}
	backlog := metrics.Waiting + metrics.Delayed
	// one worker per 5 queued jobs, rounded up, floored at min.
	desired := int((backlog + 4) / 5)
	if desired < min {
		desired = min
	}
	if desired > max {
		desired = max
	}
	return desired
}
