package clients

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	autherrors "github.com/jrsteele09/go-oauth-proxy/internal/errors"
)

const clientSecretBytes = 32

// RegistrationRequest is the RFC 7591 subset accepted at /register.
type RegistrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// RegistrationResponse echoes the stored metadata plus the generated
// credentials. The client secret appears here and nowhere else.
type RegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

// Registrar implements Dynamic Client Registration.
type Registrar struct {
	repo    Repo
	nowTime func() time.Time
}

type RegistrarOption func(*Registrar)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) RegistrarOption {
	return func(r *Registrar) {
		r.nowTime = nowFunc
	}
}

func NewRegistrar(repo Repo, options ...RegistrarOption) (*Registrar, error) {
	if repo == nil {
		return nil, errors.New("[NewRegistrar] client repo is required")
	}
	registrar := &Registrar{repo: repo, nowTime: time.Now}
	for _, opt := range options {
		opt(registrar)
	}
	return registrar, nil
}

// Register validates the request, generates credentials, and stores
// the registration.
func (reg *Registrar) Register(ctx context.Context, req RegistrationRequest) (*RegistrationResponse, error) {
	if err := validateRedirectURIs(req.RedirectURIs); err != nil {
		return nil, err
	}

	authMethod := req.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = "client_secret_post"
	}
	if authMethod != "client_secret_post" && authMethod != "none" {
		return nil, errors.Wrap(autherrors.ErrInvalidRequest, "unsupported token_endpoint_auth_method")
	}

	client := &Client{
		ID:           uuid.NewString(),
		Name:         req.ClientName,
		RedirectURIs: append([]string(nil), req.RedirectURIs...),
		CreatedAt:    reg.nowTime(),
	}

	var secret string
	if authMethod == "none" {
		client.Type = ClientTypePublic
	} else {
		client.Type = ClientTypeConfidential
		generated, err := randomSecret()
		if err != nil {
			return nil, errors.Wrap(err, "[Register] generating client secret")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(generated), bcrypt.DefaultCost)
		if err != nil {
			return nil, errors.Wrap(err, "[Register] hashing client secret")
		}
		secret = generated
		client.SecretHash = string(hash)
	}

	if err := reg.repo.Upsert(ctx, client); err != nil {
		return nil, errors.Wrap(err, "[Register] storing client registration")
	}

	return &RegistrationResponse{
		ClientID:                client.ID,
		ClientSecret:            secret,
		ClientIDIssuedAt:        client.CreatedAt.Unix(),
		ClientName:              client.Name,
		RedirectURIs:            client.RedirectURIs,
		TokenEndpointAuthMethod: authMethod,
	}, nil
}

func validateRedirectURIs(uris []string) error {
	if len(uris) == 0 {
		return errors.Wrap(autherrors.ErrInvalidRedirectURI, "at least one redirect_uri is required")
	}
	for _, raw := range uris {
		parsed, err := url.Parse(raw)
		if err != nil || !parsed.IsAbs() || parsed.Host == "" {
			return errors.Wrapf(autherrors.ErrInvalidRedirectURI, "redirect_uri %q must be absolute", raw)
		}
	}
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, clientSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
