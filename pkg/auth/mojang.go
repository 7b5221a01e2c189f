package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// SessionServerURL is the production Mojang session server.
const SessionServerURL = "https://sessionserver.mojang.com"

// MojangClient queries the Mojang session server.
type MojangClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewMojangClient() *MojangClient {
	return NewMojangClientWithURL(SessionServerURL)
}

// NewMojangClientWithURL uses a custom base URL, for tests.
func NewMojangClientWithURL(baseURL string) *MojangClient {
	return &MojangClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type hasJoinedResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// HasJoined asks the session server whether the named player started a login
// handshake with the given server id, and returns the player's uuid.
func (c *MojangClient) HasJoined(ctx context.Context, username, serverID string) (uuid.UUID, error) {
	u := fmt.Sprintf("%s/session/minecraft/hasJoined?username=%s&serverId=%s",
		c.baseURL, url.QueryEscape(username), url.QueryEscape(serverID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return uuid.Nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hasJoined request: %w", err)
	}
	defer resp.Body.Close()

	// 204 means the player never initiated this handshake.
	if resp.StatusCode != http.StatusOK {
		return uuid.Nil, fmt.Errorf("hasJoined status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return uuid.Nil, fmt.Errorf("reading hasJoined response: %w", err)
	}
	var parsed hasJoinedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return uuid.Nil, fmt.Errorf("parsing hasJoined response: %w", err)
	}
	id, err := uuid.Parse(parsed.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing profile id: %w", err)
	}
	return id, nil
}
