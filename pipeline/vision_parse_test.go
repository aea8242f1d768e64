package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFrameAnalysisValidJSON(t *testing.T) {
	raw := `{"description":"a red car on a highway","features":{"brightness":0.8}}`
	analysis := parseFrameAnalysis(raw)
	require.Equal(t, "a red car on a highway", analysis.Description)
	require.Equal(t, 0.8, analysis.Features["brightness"])
}

func TestParseFrameAnalysisFallsBackOnMalformedJSON(t *testing.T) {
	raw := "a red car, not JSON at all"
	analysis := parseFrameAnalysis(raw)
	require.Equal(t, raw, analysis.Description)
	require.NotNil(t, analysis.Features)
	require.Empty(t, analysis.Features)
}

func TestParseFrameAnalysisFallsBackOnMissingDescription(t *testing.T) {
	raw := `{"features":{"brightness":0.5}}`
	analysis := parseFrameAnalysis(raw)
	require.Equal(t, raw, analysis.Description)
}

func TestParseFrameAnalysisDecodesObjectsAndText(t *testing.T) {
	raw := `{"description":"a sign","objects":[{"label":"sign","confidence":0.9}],"text":[{"text":"STOP","confidence":0.95}]}`
	analysis := parseFrameAnalysis(raw)
	require.Len(t, analysis.Objects, 1)
	require.Equal(t, "sign", analysis.Objects[0].Label)
	require.Len(t, analysis.Text, 1)
	require.Equal(t, "STOP", analysis.Text[0].Text)
}
