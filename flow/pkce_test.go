package flow_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oauth-proxy/flow"
	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/oauthmodel"
)

// RFC 7636 appendix B example pair.
const (
	rfcVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	rfcChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

func TestChallengeS256(t *testing.T) {
	require.Equal(t, rfcChallenge, flow.ChallengeS256(rfcVerifier))
}

func TestVerifyChallenge(t *testing.T) {
	t.Run("s256 verifier matches", func(t *testing.T) {
		require.NoError(t, flow.VerifyChallenge(rfcChallenge, oauthmodel.CodeMethodTypeS256, rfcVerifier))
	})

	t.Run("empty method defaults to s256", func(t *testing.T) {
		require.NoError(t, flow.VerifyChallenge(rfcChallenge, "", rfcVerifier))
	})

	t.Run("plain verifier matches", func(t *testing.T) {
		require.NoError(t, flow.VerifyChallenge("plain-value", oauthmodel.CodeMethodTypePlain, "plain-value"))
	})

	t.Run("wrong verifier is rejected", func(t *testing.T) {
		err := flow.VerifyChallenge(rfcChallenge, oauthmodel.CodeMethodTypeS256, "some-other-verifier")
		require.ErrorIs(t, err, errors.ErrInvalidCodeVerifier)
	})

	t.Run("missing verifier is rejected", func(t *testing.T) {
		err := flow.VerifyChallenge(rfcChallenge, oauthmodel.CodeMethodTypeS256, "")
		require.ErrorIs(t, err, errors.ErrInvalidCodeVerifier)
	})

	t.Run("unknown method is rejected", func(t *testing.T) {
		err := flow.VerifyChallenge(rfcChallenge, "S512", rfcVerifier)
		require.ErrorIs(t, err, errors.ErrInvalidCodeVerifier)
	})
}

func TestValidateChallengeMethod(t *testing.T) {
	require.NoError(t, flow.ValidateChallengeMethod(oauthmodel.CodeMethodTypeS256))
	require.NoError(t, flow.ValidateChallengeMethod(oauthmodel.CodeMethodTypePlain))
	require.ErrorIs(t, flow.ValidateChallengeMethod("S512"), oauthmodel.ErrInvalidCodeChallengeMethod)
}
