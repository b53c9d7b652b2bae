package auth

import (
	"fmt"
	"net/url"
)

// NewFromURL builds a provider from a config string such as
// "basic://user:secret@" or "env://CARDDAV".
func NewFromURL(authURL string) (CredentialProvider, error) {
	u, err := url.Parse(authURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing auth URL: %s", err.Error())
	}

	switch u.Scheme {
	case "basic":
		if u.User == nil {
			return nil, fmt.Errorf("missing username for basic auth")
		}
		password, _ := u.User.Password()
		return NewBasicAuth(u.User.Username(), password)
	case "env":
		return NewEnvAuth(u.Host)
	default:
		return nil, fmt.Errorf("no auth provider found for %s:// URL", u.Scheme)
	}
}
