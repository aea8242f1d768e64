package simidx

import (
	"github.com/qdrant/go-client/qdrant"

	"github.com/catalystvision/core/video"
)

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func doubleValue(f float64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: f}}
}

func integerValue(i int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: i}}
}

func stringListValue(items []string) *qdrant.Value {
	values := make([]*qdrant.Value, len(items))
	for i, s := range items {
		values[i] = stringValue(s)
	}
	return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
}

// videoPayloadStruct mirrors the searchable attributes of VideoPayload
// (spec.md §3) as Qdrant payload values.
func videoPayloadStruct(p video.VideoPayload) (map[string]*qdrant.Value, error) {
	payload := map[string]*qdrant.Value{
		"video_id":     stringValue(p.VideoID),
		"duration_sec": doubleValue(p.DurationSec),
		"content_hash": stringValue(p.ContentHash),
	}
	if len(p.SceneTypes) > 0 {
		payload["scene_types"] = stringListValue(p.SceneTypes)
	}
	if len(p.Tags) > 0 {
		payload["tags"] = stringListValue(p.Tags)
	}
	if len(p.DominantColors) > 0 {
		payload["dominant_colors"] = stringListValue(p.DominantColors)
	}
	if p.StartTimestamp != 0 {
		payload["start_timestamp"] = integerValue(p.StartTimestamp)
	}
	return payload, nil
}

// scenePayloadStruct mirrors ScenePayload.
func scenePayloadStruct(p video.ScenePayload) (map[string]*qdrant.Value, error) {
	return map[string]*qdrant.Value{
		"video_id":     stringValue(p.VideoID),
		"scene_id":     stringValue(p.SceneID),
		"ordinal":      integerValue(int64(p.Ordinal)),
		"start_frame":  integerValue(p.StartFrame),
		"end_frame":    integerValue(p.EndFrame),
		"duration_sec": doubleValue(p.DurationSec),
		"content_hash": stringValue(p.ContentHash),
	}, nil
}
