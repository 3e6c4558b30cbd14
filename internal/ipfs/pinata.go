// Package ipfs wraps the pinning service. The rest of the system only ever
// sees the resulting ipfs:// URI as an opaque string.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PinClient talks to Pinata's pinFileToIPFS endpoint.
type PinClient struct {
	baseURL    string
	jwt        string
	gateway    string
	httpClient *http.Client
	log        *zap.Logger
}

type PinResult struct {
	CID  string
	URI  string // ipfs://<cid>
	URL  string // gateway URL
	Size int64
}

func NewPinClient(baseURL, jwt, gateway string, log *zap.Logger) *PinClient {
	if baseURL == "" {
		baseURL = "https://api.pinata.cloud"
	}
	if gateway == "" {
		gateway = "https://gateway.pinata.cloud"
	}
	return &PinClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		jwt:     jwt,
		gateway: strings.TrimRight(gateway, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
	PinSize  int64  `json:"PinSize"`
}

// PinFile uploads content under name and returns its content address.
func (c *PinClient) PinFile(ctx context.Context, name string, content io.Reader) (*PinResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, err
	}
	meta, _ := json.Marshal(map[string]string{"name": name})
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	url := c.baseURL + "/pinning/pinFileToIPFS"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pinning service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("pinning service returned %d: %s", resp.StatusCode, string(b))
	}

	var pr pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, err
	}

	c.log.Info("file pinned", zap.String("name", name), zap.String("cid", pr.IpfsHash))
	return &PinResult{
		CID:  pr.IpfsHash,
		URI:  "ipfs://" + pr.IpfsHash,
		URL:  fmt.Sprintf("%s/ipfs/%s", c.gateway, pr.IpfsHash),
		Size: pr.PinSize,
	}, nil
}
