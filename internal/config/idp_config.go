package config

import "strings"

type IdP struct{}

var _ IdPConfig = IdP{}

// GetIdPIssuerURL returns the OIDC issuer of the enterprise IdP,
// e.g. "https://login.microsoftonline.com/<tenant>/v2.0".
func (IdP) GetIdPIssuerURL() string {
	return GetEnv("IDP_ISSUER_URL", "")
}

func (IdP) GetIdPClientID() string {
	return GetEnv("IDP_CLIENT_ID", "")
}

func (IdP) GetIdPClientSecret() string {
	return GetEnv("IDP_CLIENT_SECRET", "")
}

func (IdP) GetIdPScopes() []string {
	scopes := GetEnv("IDP_SCOPES", "openid profile email")
	return strings.Fields(scopes)
}

// GetIdPJWKSURL returns the IdP signing-key set URL, used to validate
// edge-forwarded JWTs. Empty disables the edge-header strategy.
func (IdP) GetIdPJWKSURL() string {
	return GetEnv("IDP_JWKS_URL", "")
}

// GetOfficerGroupID returns the IdP group object ID that grants the
// elevated role. Empty means no one is elevated (safe default).
func (IdP) GetOfficerGroupID() string {
	return GetEnv("OFFICER_GROUP_ID", "")
}
