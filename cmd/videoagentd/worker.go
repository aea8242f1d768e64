package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/catalystvision/core/cache"
	"github.com/catalystvision/core/clients"
	"github.com/catalystvision/core/cluster"
	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/errors"
	"github.com/catalystvision/core/eventbus"
	"github.com/catalystvision/core/jobqueue"
	"github.com/catalystvision/core/metrics"
	"github.com/catalystvision/core/pipeline"
	"github.com/catalystvision/core/progressive"
	"github.com/catalystvision/core/simidx"
	"github.com/catalystvision/core/streaming"
)

// WorkerCommand runs the C6 orchestrator pool, the C4 stream ingest/batch
// pipeline, and C5's refinement scanner in one process, mirroring the
// teacher's single errgroup.WithContext-rooted main.go (cluster + balancer +
// API servers all in one group.Wait()) but scoped to this pipeline's own
// components.
type WorkerCommand struct{}

func (c *WorkerCommand) Help() string {
	return "Usage: videoagentd worker [flags]\n\nRuns the orchestrator worker pool, live-stream batching pipeline, and progressive-results scanner."
}

func (c *WorkerCommand) Synopsis() string {
	return "Run C6 orchestrator workers plus the C4/C5 live-stream pipeline"
}

func (c *WorkerCommand) Run(args []string) int {
	cli := config.Default()
	var clusterJoin string
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	commonFlags(fs, &cli)
	fs.IntVar(&cli.WorkerPoolMin, "worker-pool-min", cli.WorkerPoolMin, "Minimum orchestrator worker count")
	fs.IntVar(&cli.WorkerPoolMax, "worker-pool-max", cli.WorkerPoolMax, "Maximum orchestrator worker count")
	fs.IntVar(&cli.FrameConcurrency, "frame-concurrency", cli.FrameConcurrency, "Parallel ModelService.vision calls per job")
	fs.IntVar(&cli.BatchWorkers, "batch-workers", cli.BatchWorkers, "Live-stream batch worker count")
	fs.StringVar(&cli.ClusterBindAddr, "cluster-bind-addr", cli.ClusterBindAddr, "Address to bind the worker gossip cluster to")
	fs.StringVar(&cli.ClusterAdvertiseAddr, "cluster-advertise-addr", cli.ClusterAdvertiseAddr, "Address to advertise to other cluster members")
	fs.StringVar(&cli.NodeName, "node", cli.NodeName, "Name of this node within the worker cluster")
	fs.StringVar(&clusterJoin, "cluster-join", "", "Comma-separated list of addresses to join the worker cluster")

	if err := parseArgs("videoagentd_worker", fs, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if clusterJoin != "" {
		cli.ClusterJoin = strings.Split(clusterJoin, ",")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cli.RedisAddr, DB: cli.RedisDB})
	bus := eventbus.New(rdb)
	queue := jobqueue.New(rdb, bus)

	index, err := simidx.Dial(cli.QdrantAddr)
	if err != nil {
		glog.Errorf("error dialing qdrant: %v", err)
		return 1
	}
	defer index.Close()

	memo := cache.New(config.EmbeddingCacheTTL, config.CacheCleanupInterval)
	index.WithCache(memo)

	model := clients.NewHTTPModelService(cli.ModelServiceURL)
	deps := pipeline.Deps{
		Decoder:          clients.NewHTTPMediaDecoder(cli.ModelServiceURL),
		Model:            model,
		Store:            clients.NewHTTPJobStore(cli.JobStoreURL),
		Index:            index,
		Bus:              bus,
		Queue:            queue,
		Cache:            memo,
		FrameConcurrency: cli.FrameConcurrency,
	}
	orchestrator := pipeline.New(deps)
	m := metrics.New()
	results := progressive.New(bus, nil)

	group, ctx := errgroup.WithContext(context.Background())

	if cli.ClusterBindAddr != "" {
		cl := cluster.NewCluster(cluster.Config{
			BindAddress:      cli.ClusterBindAddr,
			AdvertiseAddress: cli.ClusterAdvertiseAddr,
			NodeName:         cli.NodeName,
			Tags:             cli.NodeTags,
			RetryJoin:        cli.ClusterJoin,
			EncryptKey:       cli.ClusterEncryptKey,
			MinWorkers:       cli.WorkerPoolMin,
			MaxWorkers:       cli.WorkerPoolMax,
		})
		group.Go(func() error { return cl.Start(ctx) })
	}

	for i := 0; i < cli.WorkerPoolMin; i++ {
		workerID := fmt.Sprintf("%s-%d", cli.NodeName, i)
		group.Go(func() error { return runOrchestratorWorker(ctx, queue, orchestrator, workerID) })
	}

	group.Go(func() error { return reportQueueDepth(ctx, queue, m) })
	group.Go(func() error { return queue.RunReaper(ctx, config.ReaperInterval) })
	group.Go(func() error { return runStreamPipeline(ctx, rdb, model, results, cli.BatchWorkers) })
	group.Go(func() error {
		results.Run(ctx)
		return nil
	})
	group.Go(func() error { return handleSignals(ctx) })

	if err := group.Wait(); err != nil {
		glog.Infof("worker shutdown: %v", err)
	}
	return 0
}

// runOrchestratorWorker is C6's claim/run/ack loop (spec.md §4.2, §4.6).
func runOrchestratorWorker(ctx context.Context, queue *jobqueue.Queue, orchestrator *pipeline.Orchestrator, workerID string) error {
	for {
		claimed, err := queue.Claim(ctx, workerID)
		if err != nil {
			return err
		}
		result, jobErr := orchestrator.Run(claimed.Ctx, claimed.Job)
		outcome := jobqueue.OutcomeCompleted
		switch {
		case jobErr == nil:
			// outcome already OutcomeCompleted
		case jobErr.Code == string(errors.CodeCancelled):
			outcome = jobqueue.OutcomeCancelled
		default:
			outcome = jobqueue.OutcomeFailed
		}
		if err := queue.Ack(ctx, claimed.Job.ID, outcome, result, jobErr); err != nil {
			glog.Errorf("error acking job %s: %v", claimed.Job.ID, err)
		}
		claimed.Release()
	}
}

// reportQueueDepth polls JobQueue.Metrics and syncs the autoscale gauge
// (SPEC_FULL.md §C.1 "JobQueue depth feeds a simple autoscale recommendation").
func reportQueueDepth(ctx context.Context, queue *jobqueue.Queue, m *metrics.Metrics) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			depth, err := queue.Metrics(ctx)
			if err != nil {
				glog.Errorf("error reading queue metrics: %v", err)
				continue
			}
			m.ObserveQueueDepth(depth.Waiting, depth.Active, depth.Completed, depth.Failed, depth.Delayed, depth.Paused)
			m.WorkerPoolRecommended.Set(float64(cluster.DesiredWorkers(depth, 2, 10)))
		}
	}
}

// runStreamPipeline wires C4's Consumer -> Batcher -> WorkerPool chain: the
// ingest loop reading records off Redis Streams and feeding the batcher is
// composition-root glue, since streaming.Consumer and streaming.Batcher are
// deliberately independent of one another (spec.md §4.4). results
// (*progressive.Results) satisfies streaming.ResultSink directly, so C5
// receives every completed stream record with no adapter needed.
func runStreamPipeline(ctx context.Context, rdb *redis.Client, model clients.ModelService, results *progressive.Results, batchWorkers int) error {
	consumer := streaming.NewConsumer(rdb, "stream-worker")
	batcher := streaming.NewBatcher(config.DefaultMaxBatchSize, config.DefaultBatchWait, 64)
	pool := streaming.NewWorkerPool(consumer, batcher, model, results, 256)

	go pool.Run(ctx, batchWorkers)

	for {
		if ctx.Err() != nil {
			return nil
		}
		records, err := consumer.ReadNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			glog.Errorf("error reading stream records: %v", err)
			continue
		}
		for _, rec := range records {
			batcher.Add(rec)
		}
	}
}

func handleSignals(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	select {
	case s := <-c:
		return fmt.Errorf("caught signal=%v", s)
	case <-ctx.Done():
		return nil
	}
}
