// Package simidx implements C3, the SimilarityIndex over two Qdrant
// collections (spec.md §4.3): video_embeddings and scene_embeddings.
package simidx

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/catalystvision/core/cache"
	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/errors"
	"github.com/catalystvision/core/video"
)

// Index is the Qdrant-backed SimilarityIndex (C3).
type Index struct {
	conn        *grpc.ClientConn
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient

	// cache invalidates re-ranking/embedding lookups on DeleteVideo
	// (SPEC_FULL.md §C.2); nil disables invalidation.
	cache *cache.Cacher
}

func Dial(addr string) (*Index, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial qdrant: %w", err)
	}
	return &Index{
		conn:        conn,
		points:      qdrant.NewPointsClient(conn),
		collections: qdrant.NewCollectionsClient(conn),
	}, nil
}

// WithCache attaches the shared Cacher so DeleteVideo can invalidate stale
// embedding/re-rank lookups for the deleted video (SPEC_FULL.md §C.2).
func (idx *Index) WithCache(c *cache.Cacher) *Index {
	idx.cache = c
	return idx
}

func (idx *Index) Close() error { return idx.conn.Close() }

// InitializeCollections creates video_embeddings and scene_embeddings with
// the parameters named in spec.md §4.3: vector size 1024, cosine distance,
// HNSW(M=16, efConstruct=100, fullScanThreshold=10000), on-disk payload.
func (idx *Index) InitializeCollections(ctx context.Context) error {
	for _, name := range []string{config.VideoCollection, config.SceneCollection} {
		m := uint64(config.HNSWM)
		ef := uint64(config.HNSWEfConstruct)
		fullScan := uint64(config.HNSWFullScanThresh)
		onDisk := true
		_, err := idx.collections.Create(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: &qdrant.VectorsConfig{
				Config: &qdrant.VectorsConfig_Params{
					Params: &qdrant.VectorParams{
						Size:     config.EmbeddingDimension,
						Distance: qdrant.Distance_Cosine,
						OnDisk:   &onDisk,
					},
				},
			},
			HnswConfig: &qdrant.HnswConfigDiff{
				M:                 &m,
				EfConstruct:       &ef,
				FullScanThreshold: &fullScan,
			},
			OnDiskPayload: &onDisk,
		})
		if err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	return nil
}

func vectorsOf(v []float32) (*qdrant.Vectors, error) {
	if len(v) != config.EmbeddingDimension {
		return nil, errors.Invariant(fmt.Sprintf("embedding dimension %d != %d", len(v), config.EmbeddingDimension), nil)
	}
	return &qdrant.Vectors{
		VectorsOptions: &qdrant.Vectors_Vector{
			Vector: &qdrant.Vector{Data: v},
		},
	}, nil
}

func pointIDOf(id string) *qdrant.PointId {
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}}
}

// UpsertVideo writes one video_embeddings row, enforcing the 1024-D
// invariant (spec.md §4.3, §8).
func (idx *Index) UpsertVideo(ctx context.Context, emb video.VideoEmbedding) error {
	vecs, err := vectorsOf(emb.Vector)
	if err != nil {
		return err
	}
	payload, err := videoPayloadStruct(emb.Payload)
	if err != nil {
		return err
	}
	wait := true
	_, err = idx.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: config.VideoCollection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      pointIDOf(emb.ID),
			Vectors: vecs,
			Payload: payload,
		}},
	})
	return err
}

// UpsertScene writes one scene_embeddings row.
func (idx *Index) UpsertScene(ctx context.Context, emb video.SceneEmbedding) error {
	return idx.upsertScenes(ctx, []video.SceneEmbedding{emb})
}

// UpsertScenesBatch upserts many scene embeddings, chunked at
// config.UpsertBatchChunk (spec.md §4.3).
func (idx *Index) UpsertScenesBatch(ctx context.Context, embs []video.SceneEmbedding) error {
	for start := 0; start < len(embs); start += config.UpsertBatchChunk {
		end := start + config.UpsertBatchChunk
		if end > len(embs) {
			end = len(embs)
		}
		if err := idx.upsertScenes(ctx, embs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Index) upsertScenes(ctx context.Context, embs []video.SceneEmbedding) error {
	points := make([]*qdrant.PointStruct, 0, len(embs))
	for _, emb := range embs {
		vecs, err := vectorsOf(emb.Vector)
		if err != nil {
			return err
		}
		payload, err := scenePayloadStruct(emb.Payload)
		if err != nil {
			return err
		}
		points = append(points, &qdrant.PointStruct{
			Id:      pointIDOf(emb.ID),
			Vectors: vecs,
			Payload: payload,
		})
	}
	wait := true
	_, err := idx.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: config.SceneCollection,
		Wait:           &wait,
		Points:         points,
	})
	return err
}

// SearchResult is one hit returned by searchVideos/searchScenes (spec.md
// §4.3): cosine score in [-1, 1], results sorted descending.
//
// RerankedScore is Score adjusted by SearchAPI-style tag/scene-match
// heuristics (SPEC_FULL.md §C.5, §D OQ #2); Score itself is never mutated,
// keeping the §8 cosine-score contract intact for callers that want the
// pre-rerank value.
type SearchResult struct {
	ID            string
	Score         float32
	RerankedScore float32
	Payload       map[string]*qdrant.Value
}

// Filter is an AND-of-must clauses over exact match, membership ("any"), or
// numeric range (spec.md §4.3).
type Filter struct {
	Equals map[string]string
	AnyOf  map[string][]string
	Range  map[string]RangeClause
}

type RangeClause struct {
	GTE, LTE *float64
}

func (f Filter) toQdrant() *qdrant.Filter {
	if len(f.Equals) == 0 && len(f.AnyOf) == 0 && len(f.Range) == 0 {
		return nil
	}
	var must []*qdrant.Condition
	for key, val := range f.Equals {
		must = append(must, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   key,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: val}},
				},
			},
		})
	}
	for key, vals := range f.AnyOf {
		must = append(must, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   key,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keywords{Keywords: &qdrant.RepeatedStrings{Strings: vals}}},
				},
			},
		})
	}
	for key, r := range f.Range {
		must = append(must, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   key,
					Range: &qdrant.Range{Gte: r.GTE, Lte: r.LTE},
				},
			},
		})
	}
	return &qdrant.Filter{Must: must}
}

// SearchVideos returns the nearest video_embeddings rows (spec.md §4.3).
func (idx *Index) SearchVideos(ctx context.Context, query []float32, limit int, filter Filter) ([]SearchResult, error) {
	return idx.search(ctx, config.VideoCollection, query, limit, filter)
}

// SearchScenes returns the nearest scene_embeddings rows.
func (idx *Index) SearchScenes(ctx context.Context, query []float32, limit int, filter Filter) ([]SearchResult, error) {
	return idx.search(ctx, config.SceneCollection, query, limit, filter)
}

func (idx *Index) search(ctx context.Context, collection string, query []float32, limit int, filter Filter) ([]SearchResult, error) {
	threshold := float32(config.DefaultScoreThresh)
	withPayload := true
	resp, err := idx.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         query,
		Limit:          uint64(limit),
		Filter:         filter.toQdrant(),
		ScoreThreshold: &threshold,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: withPayload}},
	})
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		payload := p.GetPayload()
		score := p.GetScore()
		results = append(results, SearchResult{
			ID:            pointIDString(p.GetId()),
			Score:         score,
			RerankedScore: rerank(score, payload, filter),
			Payload:       payload,
		})
	}
	return results, nil
}

// rerank applies the tag/scene-match heuristic multipliers (SPEC_FULL.md
// §C.5): every requested AnyOf["tags"] or AnyOf["scene_types"] value also
// present in the hit's payload nudges the score upward, proportional to how
// much of the request it satisfies. A query with no tag/scene_types filter,
// or a payload that carries neither field (e.g. scene_embeddings today),
// leaves RerankedScore equal to Score.
func rerank(score float32, payload map[string]*qdrant.Value, filter Filter) float32 {
	boost := matchBoost(payload, "tags", filter.AnyOf["tags"])
	boost += matchBoost(payload, "scene_types", filter.AnyOf["scene_types"])
	return score * (1 + boost)
}

func matchBoost(payload map[string]*qdrant.Value, key string, wanted []string) float32 {
	if len(wanted) == 0 {
		return 0
	}
	have := payloadStringSet(payload, key)
	if len(have) == 0 {
		return 0
	}
	matched := 0
	for _, w := range wanted {
		if have[w] {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return float32(config.RerankMatchBoost) * float32(matched) / float32(len(wanted))
}

func payloadStringSet(payload map[string]*qdrant.Value, key string) map[string]bool {
	v, ok := payload[key]
	if !ok {
		return nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil
	}
	set := make(map[string]bool, len(list.GetValues()))
	for _, item := range list.GetValues() {
		set[item.GetStringValue()] = true
	}
	return set
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u, ok := id.GetPointIdOptions().(*qdrant.PointId_Uuid); ok {
		return u.Uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

// DeleteVideo removes the video entry and every scene entry whose payload
// video_id matches (spec.md §4.3 cascade).
func (idx *Index) DeleteVideo(ctx context.Context, videoID string) error {
	wait := true
	_, err := idx.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: config.VideoCollection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{pointIDOf(videoID)}},
			},
		},
	})
	if err != nil {
		return err
	}

	sceneFilter := Filter{Equals: map[string]string{"video_id": videoID}}
	_, err = idx.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: config.SceneCollection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: sceneFilter.toQdrant(),
			},
		},
	})
	if err != nil {
		return err
	}

	if idx.cache != nil {
		idx.cache.InvalidateByPattern("embedding:" + videoID)
		idx.cache.InvalidateByPattern("rerank:" + videoID)
	}
	return nil
}
