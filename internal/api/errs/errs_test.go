package errs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMarshalsCodeName(t *testing.T) {
	t.Parallel()

	body, err := json.Marshal(Newf(Unavailable, "worker unreachable"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"unavailable","message":"worker unreachable"}`, string(body))

	// Clients decode the code as a plain string.
	var decoded struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "unavailable", decoded.Code)
}

func TestErrCodeTextRoundTrip(t *testing.T) {
	t.Parallel()

	codes := []ErrCode{
		OK, InvalidArgument, Unauthenticated, PermissionDenied, NotFound,
		AlreadyExists, FailedPrecondition, Unavailable, DeadlineExceeded, Internal,
	}
	for _, code := range codes {
		text, err := code.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, code.String(), string(text))

		var parsed ErrCode
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, code, parsed)
	}

	var parsed ErrCode
	assert.Error(t, parsed.UnmarshalText([]byte("no_such_code")))
}
