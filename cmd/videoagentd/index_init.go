package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/simidx"
)

// IndexInitCommand creates the video_embeddings and scene_embeddings Qdrant
// collections (C3, spec.md §4.3). It is a one-shot operator command, run
// once per environment before the worker pool starts searching/upserting
// against the SimilarityIndex.
type IndexInitCommand struct{}

func (c *IndexInitCommand) Help() string {
	return "Usage: videoagentd index-init [flags]\n\nCreates the SimilarityIndex's Qdrant collections if they do not already exist."
}

func (c *IndexInitCommand) Synopsis() string {
	return "Create the C3 SimilarityIndex collections"
}

func (c *IndexInitCommand) Run(args []string) int {
	cli := config.Default()
	fs := flag.NewFlagSet("index-init", flag.ContinueOnError)
	fs.StringVar(&cli.QdrantAddr, "qdrant-addr", cli.QdrantAddr, "Qdrant gRPC address backing the SimilarityIndex")

	if err := parseArgs("videoagentd_index_init", fs, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	index, err := simidx.Dial(cli.QdrantAddr)
	if err != nil {
		glog.Errorf("error dialing qdrant: %v", err)
		return 1
	}
	defer index.Close()

	if err := index.InitializeCollections(context.Background()); err != nil {
		glog.Errorf("error initializing collections: %v", err)
		return 1
	}

	glog.Infof("initialized video_embeddings and scene_embeddings collections at %s", cli.QdrantAddr)
	return 0
}
