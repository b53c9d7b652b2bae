package auth

import (
	"context"
	"fmt"
	"os"
)

type BasicAuth struct {
	clientID     string
	clientSecret string
}

// NewBasicAuth returns a static provider. Some servers (Radicale with
// auth disabled, for one) expect an empty secret, so only the username is
// mandatory.
func NewBasicAuth(username, password string) (CredentialProvider, error) {
	if username == "" {
		return nil, fmt.Errorf("missing username")
	}
	return &BasicAuth{clientID: username, clientSecret: password}, nil
}

func (b *BasicAuth) Credentials(context.Context) (string, string, error) {
	return b.clientID, b.clientSecret, nil
}

// EnvAuth reads {prefix}_USER and {prefix}_PASSWORD on every call.
type EnvAuth struct {
	prefix string
}

func NewEnvAuth(prefix string) (CredentialProvider, error) {
	if prefix == "" {
		return nil, fmt.Errorf("missing environment prefix")
	}
	return &EnvAuth{prefix: prefix}, nil
}

func (e *EnvAuth) Credentials(context.Context) (string, string, error) {
	user := os.Getenv(e.prefix + "_USER")
	if user == "" {
		return "", "", fmt.Errorf("%s_USER is not set", e.prefix)
	}
	return user, os.Getenv(e.prefix + "_PASSWORD"), nil
}
