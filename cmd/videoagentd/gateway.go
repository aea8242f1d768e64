package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/eventbus"
	"github.com/catalystvision/core/realtime"
)

// GatewayCommand runs C7, the RealtimeGateway, relaying C1 EventBus traffic
// out to websocket subscribers and accepting live-stream frame ingress,
// following the teacher's pattern of a standalone errgroup-rooted HTTP
// server (main.go's api.ListenAndServe goroutine).
type GatewayCommand struct{}

func (c *GatewayCommand) Help() string {
	return "Usage: videoagentd gateway [flags]\n\nRuns the C7 realtime websocket gateway and live-stream ingress endpoint."
}

func (c *GatewayCommand) Synopsis() string {
	return "Run the C1 relay and C7 realtime gateway"
}

func (c *GatewayCommand) Run(args []string) int {
	cli := config.Default()
	var listenAddr string
	var clockSkew time.Duration
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	commonFlags(fs, &cli)
	fs.StringVar(&cli.JWTSigningKey, "jwt-signing-key", cli.JWTSigningKey, "HMAC secret used to verify gateway bearer tokens")
	fs.StringVar(&cli.JWTIssuer, "jwt-issuer", cli.JWTIssuer, "Expected issuer claim on gateway bearer tokens")
	fs.StringVar(&listenAddr, "listen-addr", ":8935", "Address the gateway HTTP server listens on")
	fs.DurationVar(&clockSkew, "clock-skew-tolerance", config.ClockSkewTolerance, "Allowed clock skew when validating token exp/nbf")

	if err := parseArgs("videoagentd_gateway", fs, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	rdb := redis.NewClient(&redis.Options{Addr: cli.RedisAddr, DB: cli.RedisDB})
	bus := eventbus.New(rdb)
	auth := realtime.NewAuthenticator([]byte(cli.JWTSigningKey), cli.JWTIssuer, clockSkew)
	gateway := realtime.NewGateway(bus, auth)
	ingress := realtime.NewIngress(gateway, rdb)

	mux := http.NewServeMux()
	mux.Handle("/videoagent", gateway.ServeWS(realtime.NamespaceVideoAgent, false))
	mux.Handle("/jobs", gateway.ServeWS(realtime.NamespaceJobs, false))
	mux.Handle("/progress", gateway.ServeWS(realtime.NamespaceProgress, false))
	mux.Handle("/frames", gateway.ServeWS(realtime.NamespaceFrames, false))
	mux.Handle("/scenes", gateway.ServeWS(realtime.NamespaceScenes, false))
	mux.Handle("/stream", ingress)

	srv := &http.Server{Addr: listenAddr, Handler: mux}

	group, ctx := errgroup.WithContext(context.Background())
	group.Go(func() error {
		gateway.Relay(ctx)
		return nil
	})
	group.Go(func() error {
		glog.Infof("gateway listening on %s", listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	group.Go(func() error { return handleSignals(ctx) })

	if err := group.Wait(); err != nil {
		glog.Infof("gateway shutdown: %v", err)
	}
	return 0
}
