package pipeline

import (
	"encoding/json"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"

	"github.com/catalystvision/core/video"
)

// rawVisionShape is the loosely-typed JSON a vision model may return; field
// names are tolerant of the common variants seen across providers.
type rawVisionShape struct {
	Description string                   `mapstructure:"description"`
	Features    map[string]float64       `mapstructure:"features"`
	Objects     []map[string]interface{} `mapstructure:"objects"`
	Text        []map[string]interface{} `mapstructure:"text"`
}

// visionResponseSchemaDefinition is the JSON shape a ModelService.Vision
// call is expected to return (spec.md §9 "validate the vision JSON shape
// before parsing; schema violation triggers the description-only
// fallback"). description is the only required field — everything else is
// best-effort enrichment.
const visionResponseSchemaDefinition = `{
	"type": "object",
	"properties": {
		"description": {"type": "string"},
		"features": {"type": "object"},
		"objects": {"type": "array"},
		"text": {"type": "array"}
	},
	"required": ["description"]
}`

var visionResponseSchema = compileVisionResponseSchema()

func compileVisionResponseSchema() *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(visionResponseSchemaDefinition))
	if err != nil {
		panic(err) // fix schema text
	}
	return schema
}

// parseFrameAnalysis is the single parser function used by every vision
// call-site (spec.md §9): it parses the model's JSON-shaped response into
// FrameAnalysis, falling back to treating the raw text as the description
// with default features on any schema violation (spec.md §4.6 step 4).
func parseFrameAnalysis(raw string) video.FrameAnalysis {
	var generic map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return fallbackAnalysis(raw)
	}

	result, err := visionResponseSchema.Validate(gojsonschema.NewGoLoader(generic))
	if err != nil || !result.Valid() {
		return fallbackAnalysis(raw)
	}

	var shape rawVisionShape
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &shape,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fallbackAnalysis(raw)
	}
	if err := decoder.Decode(generic); err != nil {
		return fallbackAnalysis(raw)
	}
	if shape.Description == "" {
		return fallbackAnalysis(raw)
	}

	return video.FrameAnalysis{
		Description: shape.Description,
		Features:    shape.Features,
		Objects:     decodeObjects(shape.Objects),
		Text:        decodeTextRegions(shape.Text),
	}
}

func fallbackAnalysis(raw string) video.FrameAnalysis {
	return video.FrameAnalysis{
		Description: raw,
		Features:    map[string]float64{},
	}
}

func decodeObjects(raw []map[string]interface{}) []video.DetectedObject {
	if len(raw) == 0 {
		return nil
	}
	out := make([]video.DetectedObject, 0, len(raw))
	for _, m := range raw {
		var obj video.DetectedObject
		if err := mapstructure.Decode(m, &obj); err == nil {
			out = append(out, obj)
		}
	}
	return out
}

func decodeTextRegions(raw []map[string]interface{}) []video.TextRegion {
	if len(raw) == 0 {
		return nil
	}
	out := make([]video.TextRegion, 0, len(raw))
	for _, m := range raw {
		var region video.TextRegion
		if err := mapstructure.Decode(m, &region); err == nil {
			out = append(out, region)
		}
	}
	return out
}
