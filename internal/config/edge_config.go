package config

type Edge struct{}

var _ EdgeConfig = Edge{}

// GetEdgeSharedSecret returns the secret the edge-authentication layer
// stamps on forwarded requests. Empty disables the edge-header
// credential strategy entirely.
func (Edge) GetEdgeSharedSecret() string {
	return GetEnv("EDGE_SHARED_SECRET", "")
}

// GetEdgeTokenHeader returns the header the edge layer uses to forward
// the user's IdP-issued identity token.
func (Edge) GetEdgeTokenHeader() string {
	return GetEnv("EDGE_TOKEN_HEADER", "X-Forwarded-Access-Token")
}
