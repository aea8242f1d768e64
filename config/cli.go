package config

import (
	"os"
	"time"
)

// Cli holds process-wide settings parsed from flags/env by each cmd/
// subcommand, following the teacher's flat Cli-struct-plus-ff pattern.
type Cli struct {
	RedisAddr  string
	RedisDB    int
	QdrantAddr string

	WorkerPoolMin     int
	WorkerPoolMax     int
	FrameConcurrency  int
	BatchWorkers      int
	MaxBatchSize      int
	BatchWait         time.Duration
	RefinementDelay   time.Duration
	FinalDelay        time.Duration

	ClusterBindAddr      string
	ClusterAdvertiseAddr string
	ClusterJoin          []string
	ClusterEncryptKey    string
	NodeName             string
	NodeTags             map[string]string

	ModelServiceURL string
	JobStoreURL     string

	JWTSigningKey string
	JWTIssuer     string

	HealthPort int
	PromPort   int
}

// Default returns the baseline Cli used when no flags are supplied, mirroring
// the defaults wired into the teacher's main.go flag declarations.
func Default() Cli {
	hostname, _ := os.Hostname()
	return Cli{
		NodeName:         hostname,
		RedisAddr:        "127.0.0.1:6379",
		QdrantAddr:       "127.0.0.1:6334",
		WorkerPoolMin:    2,
		WorkerPoolMax:    10,
		FrameConcurrency: 4,
		BatchWorkers:     DefaultBatchWorkers,
		MaxBatchSize:     DefaultMaxBatchSize,
		BatchWait:        DefaultBatchWait,
		RefinementDelay:  DefaultRefinementDelay,
		FinalDelay:       DefaultFinalDelay,
		ClusterBindAddr:  "0.0.0.0:9935",
		NodeTags:         map[string]string{"role": "worker"},
		JWTIssuer:        "videoagent",
		HealthPort:       8080,
		PromPort:         9090,
	}
}
