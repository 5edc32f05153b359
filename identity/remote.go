package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// RemoteClient resolves tokens by asking the hosted auth service who the bearer is.
type RemoteClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

type remoteUser struct {
	ID string `json:"id"`
}

func NewRemoteClient(baseURL, apiKey string) *RemoteClient {
	return &RemoteClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Authenticate calls GET /auth/v1/user with the caller's token.
func (c *RemoteClient) Authenticate(ctx context.Context, accessToken string) (string, error) {
	url := fmt.Sprintf("%s/auth/v1/user", c.BaseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if c.APIKey != "" {
		req.Header.Set("apikey", c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth service request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		log.Printf("[AUTH] /auth/v1/user returned %d: %s", resp.StatusCode, string(body))
		return "", fmt.Errorf("%w: auth service returned %d", ErrInvalidCredentials, resp.StatusCode)
	}

	var out remoteUser
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode auth service response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: empty user id", ErrInvalidCredentials)
	}
	return out.ID, nil
}
