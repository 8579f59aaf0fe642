package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"authrelay/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests against the
// authorization server.
const DefaultHTTPTimeout = 30 * time.Second

// Exchanger is the opaque code-exchange capability. It is trusted to reject
// replayed codes and mismatched verifiers internally.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// ExchangerFactory reconstructs an Exchanger from a resume context. The
// callback context may have no memory of the attempt, so reconstruction from
// the durable record is mandatory, not an optimization.
type ExchangerFactory func(resume ResumeContext) Exchanger

// serverMetadata is the subset of OAuth/OIDC server metadata (RFC 8414) the
// relay needs.
type serverMetadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
}

// discoverMetadata fetches server metadata from the issuer's well-known
// endpoints, trying the OIDC location first and the plain OAuth one second.
func discoverMetadata(ctx context.Context, client *http.Client, issuer string) (*serverMetadata, error) {
	base := strings.TrimSuffix(issuer, "/")
	paths := []string{
		base + "/.well-known/openid-configuration",
		base + "/.well-known/oauth-authorization-server",
	}

	var lastErr error
	for _, metadataURL := range paths {
		md, err := fetchMetadata(ctx, client, metadataURL)
		if err != nil {
			lastErr = err
			continue
		}
		return md, nil
	}
	return nil, fmt.Errorf("failed to discover server metadata for %s: %w", issuer, lastErr)
}

func fetchMetadata(ctx context.Context, client *http.Client, metadataURL string) (*serverMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata response: %w", err)
	}

	var md serverMetadata
	if err := json.Unmarshal(body, &md); err != nil {
		return nil, fmt.Errorf("failed to parse metadata response: %w", err)
	}
	if md.TokenEndpoint == "" {
		return nil, fmt.Errorf("metadata from %s has no token endpoint", metadataURL)
	}
	return &md, nil
}

// codeExchanger performs the authorization-code exchange against the token
// endpoint named in (or discovered from) the resume context.
type codeExchanger struct {
	resume     ResumeContext
	httpClient *http.Client
}

// NewExchanger reconstructs the production code-exchange capability from a
// resume context.
func NewExchanger(resume ResumeContext) Exchanger {
	return &codeExchanger{
		resume:     resume,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
	}
}

func (e *codeExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tokenEndpoint := e.resume.TokenEndpoint
	if tokenEndpoint == "" {
		md, err := discoverMetadata(ctx, e.httpClient, e.resume.Issuer)
		if err != nil {
			return nil, err
		}
		tokenEndpoint = md.TokenEndpoint
	}

	cfg := oauth2.Config{
		ClientID:    e.resume.ClientID,
		RedirectURL: e.resume.RedirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL: tokenEndpoint,
		},
	}
	if e.resume.Scope != "" {
		cfg.Scopes = strings.Fields(e.resume.Scope)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(e.resume.CodeVerifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	logging.Debug("Exchange", "Exchanged authorization code (endpoint=%s, expires=%v)",
		tokenEndpoint, token.Expiry)
	return token, nil
}
