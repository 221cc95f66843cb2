package relay

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tmeadows/scanhub/pkg/common/logger"
)

const testSecret = "webhook-test-secret"

// Digests computed independently with openssl dgst -sha256 -hmac.
const (
	pushDigest = "sha256=0b3c8c6a6f110113e970a73b010924b1dbf9784ca1ea81a70ac07b9d1321434d"
	pingDigest = "sha256=303fa056a741e9f0fd331907fc285b4c268e2b7a007bc6b296bbff8fd40b66c9"
)

func testVerifier(secret string) *SignatureVerifier {
	return NewSignatureVerifier(secret, logger.New(io.Discard, logger.LevelDebug, "relay-test", nil))
}

func TestSignatureVerify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		secret string
		body   string
		header string
		want   bool
	}{
		{
			name:   "valid push signature",
			secret: testSecret,
			body:   `{"ref":"refs/heads/main"}`,
			header: pushDigest,
			want:   true,
		},
		{
			name:   "valid ping signature",
			secret: testSecret,
			body:   `{"zen":"Design for failure."}`,
			header: pingDigest,
			want:   true,
		},
		{
			name:   "signature over different body",
			secret: testSecret,
			body:   `{"ref":"refs/heads/other"}`,
			header: pushDigest,
			want:   false,
		},
		{
			name:   "wrong secret",
			secret: "some-other-secret",
			body:   `{"ref":"refs/heads/main"}`,
			header: pushDigest,
			want:   false,
		},
		{
			name:   "missing header",
			secret: testSecret,
			body:   `{"ref":"refs/heads/main"}`,
			header: "",
			want:   false,
		},
		{
			name:   "missing scheme prefix",
			secret: testSecret,
			body:   `{"ref":"refs/heads/main"}`,
			header: "0b3c8c6a6f110113e970a73b010924b1dbf9784ca1ea81a70ac07b9d1321434d",
			want:   false,
		},
		{
			name:   "wrong scheme",
			secret: testSecret,
			body:   `{"ref":"refs/heads/main"}`,
			header: "sha1=0b3c8c6a6f110113e970a73b010924b1dbf9784ca1ea81a70ac07b9d1321434d",
			want:   false,
		},
		{
			name:   "digest not hex",
			secret: testSecret,
			body:   `{"ref":"refs/heads/main"}`,
			header: "sha256=not-a-hex-digest",
			want:   false,
		},
		{
			name:   "digest truncated",
			secret: testSecret,
			body:   `{"ref":"refs/heads/main"}`,
			header: "sha256=0b3c8c6a",
			want:   false,
		},
		{
			name:   "no secret configured accepts anything",
			secret: "",
			body:   `{"ref":"refs/heads/main"}`,
			header: "",
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := testVerifier(tt.secret)
			got := v.Verify(context.Background(), []byte(tt.body), tt.header)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSignatureConfigured(t *testing.T) {
	t.Parallel()

	assert.True(t, testVerifier(testSecret).Configured())
	assert.False(t, testVerifier("").Configured())
}
