package extracthandler

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/seal-labs/ibte/ibe"
	"github.com/seal-labs/ibte/kms"
	"github.com/seal-labs/ibte/seal"
)

// Client talks to one key server's extraction API.
type Client struct {
	// BaseURL is the server root, e.g. http://127.0.0.1:8081.
	BaseURL string

	// HTTPClient defaults to http.DefaultClient when nil.
	HTTPClient *http.Client
}

// ServerInfo fetches the server's descriptor and checks that the advertised
// server id matches the one derived from the public key share.
func (c *Client) ServerInfo(ctx context.Context) (seal.KeyServerDescriptor, error) {
	var info ServerInfoResponse
	if err := c.getJSON(ctx, c.BaseURL+"/api/v1/server-info", &info); err != nil {
		return seal.KeyServerDescriptor{}, err
	}

	pubBytes, err := hex.DecodeString(info.PublicKey)
	if err != nil {
		return seal.KeyServerDescriptor{}, fmt.Errorf("could not parse public key share: %w", err)
	}
	pub, err := ibe.PublicKeyShareFromBytes(pubBytes)
	if err != nil {
		return seal.KeyServerDescriptor{}, fmt.Errorf("could not parse public key share: %w", err)
	}

	id, err := kms.ServerIDForPublicKey(pub)
	if err != nil {
		return seal.KeyServerDescriptor{}, err
	}
	if id.Hex() != info.ServerID {
		return seal.KeyServerDescriptor{}, fmt.Errorf("server id %s does not match its public key share", info.ServerID)
	}

	return seal.KeyServerDescriptor{ID: id, PublicKey: pub}, nil
}

// Extract requests the user secret key share for a full identity.
func (c *Client) Extract(ctx context.Context, fullID ibe.FullIdentity) (ibe.UserSecretKeyShare, error) {
	reqBody, err := json.Marshal(ExtractRequest{FullID: fullID.Hex()})
	if err != nil {
		return ibe.UserSecretKeyShare{}, fmt.Errorf("could not encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/extract", bytes.NewReader(reqBody))
	if err != nil {
		return ibe.UserSecretKeyShare{}, fmt.Errorf("could not initialize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp ExtractResponse
	if err := c.doJSON(req, &resp); err != nil {
		return ibe.UserSecretKeyShare{}, err
	}

	uskBytes, err := hex.DecodeString(resp.UserSecretKey)
	if err != nil {
		return ibe.UserSecretKeyShare{}, fmt.Errorf("could not parse user secret key share: %w", err)
	}
	usk, err := ibe.UserSecretKeyShareFromBytes(uskBytes)
	if err != nil {
		return ibe.UserSecretKeyShare{}, fmt.Errorf("could not parse user secret key share: %w", err)
	}
	return usk, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("could not initialize request: %w", err)
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("could not request key server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read key server response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("key server returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("could not parse key server response: %w", err)
	}
	return nil
}
