package main

import (
	"flag"
	"strings"

	"github.com/peterbourgon/ff/v3"

	"github.com/catalystvision/core/config"
)

// commonFlags registers the flags every subcommand shares (Redis, Qdrant,
// the external ModelService/JobStore URLs), following the teacher's
// flat-Cli-plus-ff.Parse pattern (main.go) with a per-subcommand env prefix
// instead of one shared flag.FlagSet.
func commonFlags(fs *flag.FlagSet, cli *config.Cli) {
	fs.StringVar(&cli.RedisAddr, "redis-addr", cli.RedisAddr, "Redis address backing the EventBus, JobQueue, and stream append log")
	fs.IntVar(&cli.RedisDB, "redis-db", cli.RedisDB, "Redis logical database index")
	fs.StringVar(&cli.QdrantAddr, "qdrant-addr", cli.QdrantAddr, "Qdrant gRPC address backing the SimilarityIndex")
	fs.StringVar(&cli.ModelServiceURL, "model-service-url", cli.ModelServiceURL, "Base URL of the external ModelService")
	fs.StringVar(&cli.JobStoreURL, "job-store-url", cli.JobStoreURL, "Base URL of the external JobStore")
}

func parseArgs(name string, fs *flag.FlagSet, args []string) error {
	return ff.Parse(fs, args, ff.WithEnvVarPrefix(strings.ToUpper(strings.ReplaceAll(name, "-", "_"))))
}
