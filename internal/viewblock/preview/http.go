package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mx-space/viewblock/internal/viewblock"
)

const maxResponseBytes = 8 << 20

// HTTPFetcher posts preview requests to the block preview endpoint. Timeouts are
// left to the supplied http.Client.
type HTTPFetcher struct {
	Endpoint string
	Action   string
	Nonce    string
	// Token is sent as a bearer token when set.
	Token  string
	Client *http.Client
}

func (f *HTTPFetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (Response, error) {
	action := f.Action
	if action == "" {
		action = viewblock.PreviewAction
	}
	form, err := viewblock.EncodePreviewForm(action, f.Nonce, req.Attributes)
	if err != nil {
		return Response{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if f.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+f.Token)
	}

	res, err := f.client().Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	return DecodeResponse(body)
}

// DecodeResponse parses a preview endpoint envelope.
func DecodeResponse(body []byte) (Response, error) {
	var env viewblock.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Response{}, fmt.Errorf("%w: decode envelope: %v", ErrTransport, err)
	}
	if !env.Success {
		var failure viewblock.PreviewFailure
		if len(env.Data) > 0 {
			// A malformed failure payload still counts as a failure.
			_ = json.Unmarshal(env.Data, &failure)
		}
		return Response{Success: false, Message: failure.Message}, nil
	}
	var data viewblock.PreviewData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return Response{}, fmt.Errorf("%w: decode data: %v", ErrTransport, err)
	}
	return Response{Success: true, Data: data}, nil
}

// LoadKnownViews fetches the published view lists from endpoint.
func LoadKnownViews(ctx context.Context, client *http.Client, endpoint string) (KnownViews, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return KnownViews{}, err
	}
	req.Header.Set("Accept", "application/json")
	res, err := client.Do(req)
	if err != nil {
		return KnownViews{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return KnownViews{}, fmt.Errorf("%w: unexpected status %d", ErrTransport, res.StatusCode)
	}
	var known KnownViews
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBytes)).Decode(&known); err != nil {
		return KnownViews{}, fmt.Errorf("%w: decode published views: %v", ErrTransport, err)
	}
	if known.Posts == nil {
		known.Posts = []KnownView{}
	}
	if known.Taxonomy == nil {
		known.Taxonomy = []KnownView{}
	}
	if known.Users == nil {
		known.Users = []KnownView{}
	}
	return known, nil
}
