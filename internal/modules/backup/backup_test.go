package backup

import (
	"testing"
	"time"

	"github.com/cuentacuentos/core/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2026, 8, 31, 14, 5, 9, 0, time.UTC)

	assert.Equal(t, "2026/08/backup-2026-08-31T14-05-09.zip", objectKey("", now))
	assert.Equal(t, "cuentos/2026/08/backup-2026-08-31T14-05-09.zip", objectKey("cuentos", now))
}

func TestNormalizeRows(t *testing.T) {
	rows := []map[string]interface{}{
		{"id": []byte("abc"), "score": 8.5, "title": "El río"},
	}
	out := normalizeRows(rows)
	require.Len(t, out, 1)
	assert.Equal(t, "abc", out[0]["id"])
	assert.Equal(t, 8.5, out[0]["score"])
	assert.Equal(t, "El río", out[0]["title"])
}

func TestNewS3Uploader_Validation(t *testing.T) {
	base := config.S3Options{
		Bucket:    "backups",
		Region:    "us-east-1",
		AccessKey: "AKIA",
		SecretKey: "secret",
	}

	_, err := newS3Uploader(base)
	require.NoError(t, err)

	for _, tt := range []struct {
		name   string
		mutate func(*config.S3Options)
	}{
		{"missing bucket", func(o *config.S3Options) { o.Bucket = "" }},
		{"missing region", func(o *config.S3Options) { o.Region = "" }},
		{"missing access key", func(o *config.S3Options) { o.AccessKey = "" }},
		{"missing secret key", func(o *config.S3Options) { o.SecretKey = "" }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			opts := base
			tt.mutate(&opts)
			_, err := newS3Uploader(opts)
			assert.Error(t, err)
		})
	}
}
