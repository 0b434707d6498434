package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrFederatedRejected indicates the identity backend refused the session.
var ErrFederatedRejected = errors.New("auth: federated session rejected")

// HTTPIdentityClient verifies federated sessions against the identity
// backend's verification endpoint.
type HTTPIdentityClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPIdentityClient constructs a client for the given backend base URL.
func NewHTTPIdentityClient(baseURL string) *HTTPIdentityClient {
	return &HTTPIdentityClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// VerifyFederatedSession asks the identity backend to verify a federated
// token. The raw token is sent in the body, never logged.
func (c *HTTPIdentityClient) VerifyFederatedSession(ctx context.Context, token string) (FederatedIdentity, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return FederatedIdentity{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions/verify", bytes.NewReader(body))
	if err != nil {
		return FederatedIdentity{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return FederatedIdentity{}, fmt.Errorf("auth: identity backend: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
		var id FederatedIdentity
		if err := json.NewDecoder(res.Body).Decode(&id); err != nil {
			return FederatedIdentity{}, fmt.Errorf("auth: identity backend response: %w", err)
		}
		if id.UserID == "" {
			return FederatedIdentity{}, ErrFederatedRejected
		}
		return id, nil
	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		return FederatedIdentity{}, ErrFederatedRejected
	default:
		return FederatedIdentity{}, fmt.Errorf("auth: identity backend status %d", res.StatusCode)
	}
}

var _ IdentityVerifier = (*HTTPIdentityClient)(nil)
