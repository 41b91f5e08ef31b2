package oauth

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthErrorMessage(t *testing.T) {
	err := &AuthError{
		Kind:       KindTransient,
		Op:         "refresh",
		StatusCode: 503,
		Body:       `{"error":"server_error"}`,
	}
	msg := err.Error()
	assert.Contains(t, msg, "refresh failed (transient)")
	assert.Contains(t, msg, "status 503")
	assert.Contains(t, msg, "server_error")
}

func TestAuthErrorUnwrap(t *testing.T) {
	err := &AuthError{Kind: KindPermanent, Op: "refresh", Err: ErrReauthorizationRequired}
	assert.ErrorIs(t, err, ErrReauthorizationRequired)
	assert.True(t, IsReauthorizationRequired(err))

	wrapped := fmt.Errorf("ensure token: %w", err)
	assert.True(t, IsReauthorizationRequired(wrapped))
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(context.Canceled))
	assert.True(t, IsCancelled(context.DeadlineExceeded))
	assert.True(t, IsCancelled(&AuthError{Kind: KindCancelled, Op: "refresh"}))
	assert.True(t, IsCancelled(fmt.Errorf("wrapped: %w", context.Canceled)))

	assert.False(t, IsCancelled(nil))
	assert.False(t, IsCancelled(errors.New("some other error")))
	assert.False(t, IsCancelled(&AuthError{Kind: KindTransient, Op: "refresh"}))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "config", KindConfig.String())
	assert.Equal(t, "permanent", KindPermanent.String())
	assert.Equal(t, "transient", KindTransient.String())
	assert.Equal(t, "protocol", KindProtocol.String())
	assert.Equal(t, "cancelled", KindCancelled.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
