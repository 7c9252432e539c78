package perception

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mjpegStream(t *testing.T, frames int) []byte {
	t.Helper()
	var buf bytes.Buffer
	for i := 0; i < frames; i++ {
		buf.Write(encodeJPEG(t, 16, 16))
	}
	return buf.Bytes()
}

func TestSplitJPEGFrames(t *testing.T) {
	data := mjpegStream(t, 3)
	frames := splitJPEGFrames(data)
	require.Len(t, frames, 3)
	for _, frame := range frames {
		assert.True(t, bytes.HasPrefix(frame, jpegSOI))
		assert.True(t, bytes.HasSuffix(frame, jpegEOI))
	}
}

func TestSplitJPEGFramesGarbage(t *testing.T) {
	assert.Empty(t, splitJPEGFrames([]byte("no frames here")))
}

func TestMJPEGExtractorSampling(t *testing.T) {
	data := mjpegStream(t, 10)

	// 2 fps stream sampled at 1s intervals takes every 2nd frame.
	extractor := NewMJPEGExtractor(2)
	frames, err := extractor.Extract(context.Background(), data, 1, 8)
	require.NoError(t, err)
	assert.Len(t, frames, 5)
}

func TestMJPEGExtractorMaxFramesCap(t *testing.T) {
	data := mjpegStream(t, 12)
	extractor := NewMJPEGExtractor(1)
	frames, err := extractor.Extract(context.Background(), data, 1, 4)
	require.NoError(t, err)
	assert.Len(t, frames, 4)
}

func TestMJPEGExtractorNoFrames(t *testing.T) {
	extractor := NewMJPEGExtractor(0)
	_, err := extractor.Extract(context.Background(), []byte("garbage"), 1, 8)
	assert.Error(t, err)
}

func TestAnalyzeVideoVerdict(t *testing.T) {
	client := &mockClient{multimodalResponse: `{"deepfake_score": 82, "manipulation_type": "face_swap",
		"frame_analyses": [{"frame_index": 0, "score": 80}],
		"temporal_inconsistencies": ["identity drift between frames"],
		"overall_confidence": 0.75}`}
	analyzer := NewVideoAnalyzer(client, NewMJPEGExtractor(1), nil)

	result, err := analyzer.AnalyzeVideo(context.Background(), FrameSource{Data: mjpegStream(t, 3)}, 1)
	require.NoError(t, err)

	assert.Equal(t, 82.0, result.DeepfakeScore)
	assert.Equal(t, "face_swap", result.ManipulationType)
	assert.Len(t, result.FrameAnalyses, 1)
	assert.Equal(t, []string{"identity drift between frames"}, result.TemporalInconsistencies)
	assert.Equal(t, 0.75, result.OverallConfidence)
	assert.Equal(t, 1, client.multimodalCalls)
}

func TestAnalyzeVideoEmptySource(t *testing.T) {
	analyzer := NewVideoAnalyzer(&mockClient{}, nil, nil)
	_, err := analyzer.AnalyzeVideo(context.Background(), FrameSource{}, 1)
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestAnalyzeVideoUndecodableStream(t *testing.T) {
	analyzer := NewVideoAnalyzer(&mockClient{}, nil, nil)
	_, err := analyzer.AnalyzeVideo(context.Background(), FrameSource{Data: []byte("not video")}, 1)
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestAnalyzeVideoModelFailure(t *testing.T) {
	client := &mockClient{err: errors.New("upstream down")}
	analyzer := NewVideoAnalyzer(client, NewMJPEGExtractor(1), nil)

	result, err := analyzer.AnalyzeVideo(context.Background(), FrameSource{Data: mjpegStream(t, 2)}, 1)
	require.NoError(t, err)
	assert.Zero(t, result.DeepfakeScore)
	assert.Equal(t, "unknown", result.ManipulationType)
}

func TestAnalyzeVideoFromFile(t *testing.T) {
	client := &mockClient{multimodalResponse: `{"deepfake_score": 10, "manipulation_type": "none", "overall_confidence": 0.9}`}
	analyzer := NewVideoAnalyzer(client, NewMJPEGExtractor(1), nil)

	path := filepath.Join(t.TempDir(), "clip.mjpeg")
	require.NoError(t, os.WriteFile(path, mjpegStream(t, 2), 0o600))

	result, err := analyzer.AnalyzeVideo(context.Background(), FrameSource{Path: path}, 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, result.DeepfakeScore)
}
