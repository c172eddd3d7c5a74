package flow

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/oauthmodel"
)

const tokenBytes = 32

// randomToken returns a high-entropy opaque URL-safe string, used for
// proxy-minted codes, tokens, and upstream state values.
func randomToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrapf(err, "generating random token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ChallengeS256 derives the S256 PKCE challenge from a verifier.
func ChallengeS256(verifier string) string {
	digest := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// VerifyChallenge checks a presented code_verifier against the
// challenge recorded at /authorize. Comparison is constant-time.
func VerifyChallenge(challenge string, method oauthmodel.CodeMethodType, verifier string) error {
	if verifier == "" {
		return errors.Wrapf(errors.ErrInvalidCodeVerifier, "code_verifier is required")
	}

	var derived string
	switch method {
	case oauthmodel.CodeMethodTypeS256, "":
		derived = ChallengeS256(verifier)
	case oauthmodel.CodeMethodTypePlain:
		derived = verifier
	default:
		return errors.Wrapf(errors.ErrInvalidCodeVerifier, "unsupported code_challenge_method %q", method)
	}

	if subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) != 1 {
		return errors.ErrInvalidCodeVerifier
	}
	return nil
}

// ValidateChallengeMethod rejects unknown code_challenge_method values
// at /authorize time.
func ValidateChallengeMethod(method oauthmodel.CodeMethodType) error {
	switch method {
	case oauthmodel.CodeMethodTypeS256, oauthmodel.CodeMethodTypePlain:
		return nil
	default:
		return oauthmodel.ErrInvalidCodeChallengeMethod
	}
}
