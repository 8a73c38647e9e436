package storage

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
)

func TestSafeJoinKey(t *testing.T) {
	tests := []struct {
		prefix  string
		key     string
		want    string
		wantErr bool
	}{
		{"attachments", "7/abc.jpg", "attachments/7/abc.jpg", false},
		{"/attachments/", "//7//abc.jpg", "attachments/7/abc.jpg", false},
		{"", "7/abc.jpg", "7/abc.jpg", false},
		{"attachments", "", "", true},
		{"attachments", "/", "", true},
		{"attachments", "../secrets", "", true},
		{"attachments", "7/../../x", "", true},
		{"attachments", "7/./x", "", true},
		{"attachments", "7\\x", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.prefix+"|"+tt.key, func(t *testing.T) {
			got, err := SafeJoinKey(tt.prefix, tt.key)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestIsNotFound(t *testing.T) {
	require.True(t, IsNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	require.True(t, IsNotFound(fmt.Errorf("open: %w", minio.ErrorResponse{StatusCode: http.StatusNotFound})))
	require.False(t, IsNotFound(minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}))
	require.False(t, IsNotFound(errors.New("connection refused")))
}
