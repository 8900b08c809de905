package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdsgrill/kdsgrill/pkg/options"
)

func TestObjectKey(t *testing.T) {
	at := time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-09/KDS-007.png", ObjectKey("KDS-007", at))
}

func TestNewMinIO(t *testing.T) {
	opts := options.NewS3Options()
	opts.Enabled = true

	archive, err := NewMinIO(opts)
	require.NoError(t, err)
	assert.Equal(t, "kds-snapshots", archive.bucketName)

	// Presigning is computed locally and does not contact the server.
	u, err := archive.PresignedURL(context.Background(), "KDS-001", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.Contains(u, "/kds-snapshots/2025-01-02/KDS-001.png"), u)
}

func TestNewMinIORejectsBadEndpoint(t *testing.T) {
	opts := options.NewS3Options()
	opts.Endpoint = "http://127.0.0.1:9000/path"

	_, err := NewMinIO(opts)
	assert.Error(t, err)
}
