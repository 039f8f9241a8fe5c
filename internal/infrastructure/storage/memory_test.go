package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labdocs/backend/internal/infrastructure/printing"
)

func storeRequest(id string) *printing.StoreRequest {
	return &printing.StoreRequest{
		RequestID:    id,
		DocumentType: "masterSlip",
		GeneratedAt:  time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC),
		PDFData:      []byte("%PDF-1.4 test"),
	}
}

func TestNewMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	require.NotNil(t, s)
	assert.Equal(t, "memory://archive", s.BaseURL)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStorage_StoreAndGet(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	result, err := s.Store(ctx, storeRequest("req-1"))
	require.NoError(t, err)
	assert.Equal(t, "masterSlip/2024/03/req-1.pdf", result.Path)
	assert.Equal(t, "memory://archive/masterSlip/2024/03/req-1.pdf", result.URL)
	assert.Equal(t, int64(13), result.Size)

	rc, err := s.Get(ctx, result.Path)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(data))
}

func TestMemoryStorage_StoreCopiesData(t *testing.T) {
	s := NewMemoryStorage()
	req := storeRequest("req-1")
	result, err := s.Store(context.Background(), req)
	require.NoError(t, err)

	req.PDFData[0] = 'X'

	rc, err := s.Get(context.Background(), result.Path)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, byte('%'), data[0])
}

func TestMemoryStorage_StoreValidation(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	tests := []struct {
		name string
		req  *printing.StoreRequest
	}{
		{"nil request", nil},
		{"missing request id", &printing.StoreRequest{PDFData: []byte("%PDF-")}},
		{"empty data", &printing.StoreRequest{RequestID: "a"}},
		{"path traversal", &printing.StoreRequest{RequestID: "../a", PDFData: []byte("%PDF-")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Store(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, printing.ErrStorage))
		})
	}
}

func TestMemoryStorage_GetMissing(t *testing.T) {
	s := NewMemoryStorage()

	_, err := s.Get(context.Background(), "nope.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, printing.ErrStorage))

	_, err = s.Get(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage key is required")
}

func TestMemoryStorage_Delete(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	result, err := s.Store(ctx, storeRequest("req-1"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, result.Path))
	assert.Equal(t, 0, s.Len())
	require.NoError(t, s.Delete(ctx, result.Path))
	assert.Error(t, s.Delete(ctx, ""))
}

func TestMemoryStorage_CleanupOlderThan(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return now.Add(-48 * time.Hour) }
	_, err := s.Store(ctx, storeRequest("old"))
	require.NoError(t, err)

	s.now = func() time.Time { return now }
	_, err = s.Store(ctx, storeRequest("new"))
	require.NoError(t, err)

	deleted, err := s.CleanupOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, []string{"masterSlip/2024/03/new.pdf"}, s.Paths())
}
