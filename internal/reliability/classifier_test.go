package reliability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ent0n29/sourcebot/internal/brain"
	"github.com/ent0n29/sourcebot/internal/protocol"
)

func TestIsTransientHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsTransientHTTPStatus(tc.code), "code %d", tc.code)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Cause
	}{
		{nil, ""},
		{fmt.Errorf("openai request failed: %w", context.DeadlineExceeded), CauseTimeout},
		{context.Canceled, CauseCanceled},
		{errors.Join(brain.ErrUpstream, fmt.Errorf("%w: pills is empty", protocol.ErrSchemaViolation)), CauseSchemaViolation},
		{fmt.Errorf("%w: bad json", protocol.ErrMalformedPayload), CauseMalformed},
		{fmt.Errorf("http: %w", brain.ErrEmptyReply), CauseEmptyReply},
		{&brain.StatusError{Code: 429}, CauseRateLimited},
		{fmt.Errorf("wrapped: %w", &brain.StatusError{Code: 502}), CauseServerError},
		{&brain.StatusError{Code: 401}, CauseClientError},
		{errors.New("connection refused"), CauseOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err), "%v", tc.err)
	}
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(context.DeadlineExceeded))
	assert.True(t, Transient(&brain.StatusError{Code: 503}))
	assert.False(t, Transient(&brain.StatusError{Code: 401}))
	assert.False(t, Transient(context.Canceled))
}
