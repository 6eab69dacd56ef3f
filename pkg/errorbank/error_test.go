package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestAppError_Mappings(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
		code   codes.Code
	}{
		{BadRequest("bad"), http.StatusBadRequest, codes.InvalidArgument},
		{NotFound("order not found"), http.StatusNotFound, codes.NotFound},
		{Conflict("cannot bill"), http.StatusConflict, codes.FailedPrecondition},
		{Unauthorized("invalid password"), http.StatusUnauthorized, codes.PermissionDenied},
		{Unavailable("store down"), http.StatusServiceUnavailable, codes.Unavailable},
		{Internal("boom"), http.StatusInternalServerError, codes.Internal},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Kind()), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode())
			assert.Equal(t, tt.code, tt.err.GRPCCode())
		})
	}
}

func TestAppError_CauseAndDetails(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Unavailable("order storage unavailable", WithCause(cause), WithDetail("backend", "database"))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "order storage unavailable: dial tcp: refused", err.Error())
	assert.Equal(t, map[string]any{"backend": "database"}, err.Details())
}

func TestFromAndIsKind(t *testing.T) {
	wrapped := fmt.Errorf("transition: %w", Conflict("order already billed"))

	assert.True(t, IsKind(wrapped, KindConflict))
	assert.False(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(errors.New("plain"), KindInternal))

	assert.Equal(t, KindConflict, From(wrapped).Kind())
	assert.Equal(t, KindInternal, From(errors.New("plain")).Kind())
	assert.Nil(t, From(nil))
}
