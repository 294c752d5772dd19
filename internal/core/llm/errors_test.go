package llm

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

func TestClassify_GRPCResourceExhaustedWithHint(t *testing.T) {
	st, err := status.New(codes.ResourceExhausted, "quota exceeded").
		WithDetails(&errdetails.RetryInfo{RetryDelay: durationpb.New(3 * time.Second)})
	require.NoError(t, err)
	ae, ok := apierror.FromError(st.Err())
	require.True(t, ok)

	got := classify(fmt.Errorf("call: %w", ae))

	var rl *core.RateLimitError
	require.ErrorAs(t, got, &rl)
	assert.Equal(t, 3*time.Second, rl.RetryAfter)
}

func TestClassify_GRPCResourceExhaustedNoHint(t *testing.T) {
	ae, ok := apierror.FromError(status.Error(codes.ResourceExhausted, "quota exceeded"))
	require.True(t, ok)

	var rl *core.RateLimitError
	require.ErrorAs(t, classify(ae), &rl)
	assert.Zero(t, rl.RetryAfter)
}

func TestClassify_OtherAPIErrorUnchanged(t *testing.T) {
	ae, ok := apierror.FromError(status.Error(codes.InvalidArgument, "bad image"))
	require.True(t, ok)

	got := classify(ae)
	var rl *core.RateLimitError
	assert.False(t, errors.As(got, &rl))
	assert.Same(t, ae, got)
}

func TestClassify_GoogleAPIError(t *testing.T) {
	ge := &googleapi.Error{Code: http.StatusTooManyRequests, Header: http.Header{"Retry-After": {"7"}}}

	var rl *core.RateLimitError
	require.ErrorAs(t, classify(ge), &rl)
	assert.Equal(t, 7*time.Second, rl.RetryAfter)
}

func TestClassify_PlainError(t *testing.T) {
	boom := errors.New("boom")
	assert.Same(t, boom, classify(boom))
	assert.NoError(t, classify(nil))
}
