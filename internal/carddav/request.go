package carddav

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Raimguzhinov/everest/internal/auth"
	"github.com/Raimguzhinov/everest/internal/domain"
	"github.com/emersion/go-webdav"
)

const (
	depthZero = "0"
	depthOne  = "1"
)

type requester struct {
	client webdav.HTTPClient
	creds  auth.CredentialProvider
}

func newRequester(client webdav.HTTPClient, creds auth.CredentialProvider) (*requester, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if creds == nil {
		return nil, fmt.Errorf("carddav: missing credential provider")
	}
	return &requester{client: client, creds: creds}, nil
}

// do builds an authenticated request, lets prepare adjust it and sends it.
// Failures are reported as transport errors for op/id.
func (rq *requester) do(
	ctx context.Context,
	op, id, method, url string,
	body io.Reader,
	prepare func(*http.Request),
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, op, id, err)
	}
	if err := auth.Apply(req, rq.creds); err != nil {
		return nil, domain.NewError(domain.KindTransport, op, id, fmt.Errorf("credentials: %w", err))
	}
	if prepare != nil {
		prepare(req)
	}

	resp, err := rq.client.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, op, id, err)
	}
	return resp, nil
}

func (rq *requester) propfind(ctx context.Context, op, id, url, depth, body string) (*http.Response, error) {
	return rq.do(ctx, op, id, MethodPropfind, url, strings.NewReader(body), func(req *http.Request) {
		req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
		req.Header.Set("Depth", depth)
	})
}

// decodeMultistatus consumes and closes resp.Body.
func decodeMultistatus[T any](resp *http.Response, op, id string) (*Multistatus[T], error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, op, id, fmt.Errorf("read body: %w", err))
	}

	ms, err := Decode[T](bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewError(domain.KindParse, op, id, err)
	}
	return ms, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func isSuccess(code int) bool {
	return code/100 == 2
}

func unexpectedStatus(resp *http.Response) error {
	return fmt.Errorf("unexpected status %s", resp.Status)
}
