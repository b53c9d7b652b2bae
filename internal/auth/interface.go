package auth

import (
	"context"
	"net/http"
)

// CredentialProvider supplies the credentials attached to an outgoing
// request. It is asked once per request, so implementations may rotate
// secrets between calls.
type CredentialProvider interface {
	Credentials(ctx context.Context) (username, password string, err error)
}

// Apply sets basic authentication on req using p.
func Apply(req *http.Request, p CredentialProvider) error {
	username, password, err := p.Credentials(req.Context())
	if err != nil {
		return err
	}
	req.SetBasicAuth(username, password)
	return nil
}
