package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"qbconnect/internal/oauth"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "generic error",
			err:  errors.New("boom"),
			want: ExitCodeError,
		},
		{
			name: "reauthorization required",
			err:  &oauth.AuthError{Kind: oauth.KindPermanent, Op: "refresh", Err: oauth.ErrReauthorizationRequired},
			want: ExitCodeAuthRequired,
		},
		{
			name: "authorization not completed",
			err:  fmt.Errorf("connect: %w", oauth.ErrAuthorizationNotCompleted),
			want: ExitCodeAuthRequired,
		},
		{
			name: "explicit exit code",
			err:  &exitError{code: ExitCodeNotConnected},
			want: ExitCodeNotConnected,
		},
		{
			name: "wrapped exit code",
			err:  fmt.Errorf("status: %w", &exitError{code: ExitCodeAuthRequired}),
			want: ExitCodeAuthRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}
