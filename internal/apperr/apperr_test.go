package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"NotFound", NotFound("op", "conversation %d", 3), ErrNotFound},
		{"PermissionDenied", PermissionDenied("op", "no"), ErrPermissionDenied},
		{"InvalidArgument", InvalidArgument("op", "bad"), ErrInvalidArgument},
		{"ConflictRetryable", ConflictRetryable("op", "race"), ErrConflictRetryable},
		{"Upstream", Upstream("op", errors.New("db down")), ErrUpstreamUnavailable},
		{"Wrapped by fmt", fmt.Errorf("outer: %w", NotFound("op", "x")), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.err, tt.target)
		})
	}

	require.False(t, errors.Is(NotFound("op", "x"), ErrPermissionDenied))
}

func TestWrapClassifiesStorageErrors(t *testing.T) {
	req := require.New(t)

	req.Nil(Wrap("op", nil))
	req.Equal(KindNotFound, KindOf(Wrap("op", gorm.ErrRecordNotFound)))
	req.Equal(KindConflictRetryable, KindOf(Wrap("op", gorm.ErrDuplicatedKey)))
	req.Equal(KindUpstreamUnavailable, KindOf(Wrap("op", errors.New("connection refused"))))

	original := PermissionDenied("inner", "nope")
	req.Equal(original, Wrap("outer", original))
	req.ErrorIs(Wrap("op", gorm.ErrRecordNotFound), gorm.ErrRecordNotFound)
}

func TestErrorMessage(t *testing.T) {
	req := require.New(t)
	req.Equal("send: empty message", InvalidArgument("send", "empty message").Error())
	req.Equal("load: upstream_unavailable: boom", Upstream("load", errors.New("boom")).Error())
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after conflicts", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 3, func() error {
			calls++
			if calls < 3 {
				return ConflictRetryable("create", "race")
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("stops on other errors", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 3, func() error {
			calls++
			return NotFound("create", "group")
		})
		require.ErrorIs(t, err, ErrNotFound)
		require.Equal(t, 1, calls)
	})

	t.Run("exhausted conflict surfaces as upstream", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 3, func() error {
			calls++
			return ConflictRetryable("create", "race")
		})
		require.ErrorIs(t, err, ErrUpstreamUnavailable)
		require.False(t, errors.Is(err, ErrConflictRetryable))
		require.Equal(t, 3, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := Retry(cctx, 3, func() error { return ConflictRetryable("create", "race") })
		require.ErrorIs(t, err, ErrUpstreamUnavailable)
	})
}
