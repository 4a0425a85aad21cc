package clerk

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// PublicMetadata is written back to Clerk after a user is first mirrored.
// Field names are part of the frontend contract; the blog reads them from
// the Clerk session token.
type PublicMetadata struct {
	UserMongoID string `json:"userMongoId"`
	IsAdmin     bool   `json:"isAdmin"`
}

// Client talks to the Clerk Backend API.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL, secretKey string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(secretKey).
		SetTimeout(5 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{http: c}
}

// PatchPublicMetadata merges the given values into the user's
// public_metadata. Clerk performs a deep merge server-side, so keys set by
// other tooling survive.
func (c *Client) PatchPublicMetadata(ctx context.Context, clerkID string, md PublicMetadata) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"public_metadata": md}).
		SetPathParam("userID", clerkID).
		Patch("/v1/users/{userID}/metadata")
	if err != nil {
		return fmt.Errorf("clerk metadata patch: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("clerk metadata patch: %s: %s", resp.Status(), resp.String())
	}
	return nil
}
