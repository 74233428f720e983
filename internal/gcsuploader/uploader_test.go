package gcsuploader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{"gs://perla-audio/audio/o1/note.m4a", "perla-audio", "audio/o1/note.m4a", false},
		{"gs://bucket/file", "bucket", "file", false},
		{"https://bucket/file", "", "", true},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"gs:///file", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.object, object)
		})
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	tests := map[string]string{
		"gs://bucket/folder/note.m4a": "note.m4a",
		"gs://bucket/note.m4a":        "note.m4a",
		"gs://bucket":                 "bucket",
	}
	for uri, want := range tests {
		assert.Equal(t, want, ExtractFilenameFromGCSURI(uri), uri)
	}
}

func TestAudioObjectName(t *testing.T) {
	now := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)

	got := AudioObjectName("o1", "../../etc/nota.webm", now)
	assert.Regexp(t, `^audio/o1/2024-05-01/`, got)
	assert.Regexp(t, `-nota\.webm$`, got)
	assert.NotContains(t, got, "..", "path traversal kept")

	assert.Regexp(t, `-audio$`, AudioObjectName("o1", "", now))
}
