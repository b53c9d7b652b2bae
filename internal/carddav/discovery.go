package carddav

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Raimguzhinov/everest/internal/auth"
	"github.com/Raimguzhinov/everest/pkg/logger"
	"github.com/emersion/go-webdav"
)

const (
	stageCurrentUserPrincipal = "discover current-user-principal"
	stageAddressbookHomeSet   = "discover addressbook-home-set"
	stageAddressbook          = "discover addressbook"
)

// Resolver finds the addressbook collection of the authenticated user.
//
// Discovery is a chain of three PROPFIND requests: the current user
// principal, its addressbook home set, then the first addressbook found
// inside that home set. Each stage starts from the path the previous one
// produced and keeps it unchanged when the server does not report the
// property. Transport and decoding failures abort the chain.
type Resolver struct {
	rq  *requester
	log *logger.Logger
}

func NewResolver(client webdav.HTTPClient, creds auth.CredentialProvider, l *logger.Logger) (*Resolver, error) {
	rq, err := newRequester(client, creds)
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &Resolver{
		rq:  rq,
		log: l.With(slog.String("component", "carddav/discovery")),
	}, nil
}

// Resolve returns the absolute addressbook URL for host, always ending
// with a slash.
func (d *Resolver) Resolve(ctx context.Context, host string) (string, error) {
	host = strings.TrimRight(host, "/")

	path := "/"
	path, err := d.currentUserPrincipal(ctx, host, path)
	if err != nil {
		return "", err
	}
	path, err = d.addressbookHomeSet(ctx, host, path)
	if err != nil {
		return "", err
	}
	path, err = d.addressbook(ctx, host, path)
	if err != nil {
		return "", err
	}

	return host + withTrailingSlash(path), nil
}

func (d *Resolver) currentUserPrincipal(ctx context.Context, host, path string) (string, error) {
	resp, err := d.rq.propfind(ctx, stageCurrentUserPrincipal, "", host+path, depthZero, currentUserPrincipalRequest)
	if err != nil {
		return "", err
	}
	ms, err := decodeMultistatus[CurrentUserPrincipalProp](resp, stageCurrentUserPrincipal, "")
	if err != nil {
		return "", err
	}

	found := ""
	if len(ms.Responses) > 0 {
		for _, ps := range ms.Responses[0].Propstats {
			if p := ps.Prop.CurrentUserPrincipal; p != nil && p.Href.String() != "" {
				found = p.Href.Path()
				break
			}
		}
	}
	return d.next(stageCurrentUserPrincipal, path, found), nil
}

func (d *Resolver) addressbookHomeSet(ctx context.Context, host, path string) (string, error) {
	resp, err := d.rq.propfind(ctx, stageAddressbookHomeSet, "", host+path, depthZero, addressbookHomeSetRequest)
	if err != nil {
		return "", err
	}
	ms, err := decodeMultistatus[AddressbookHomeSetProp](resp, stageAddressbookHomeSet, "")
	if err != nil {
		return "", err
	}

	found := ""
	if len(ms.Responses) > 0 {
		for _, ps := range ms.Responses[0].Propstats {
			if p := ps.Prop.AddressbookHomeSet; p != nil && p.Href.String() != "" {
				found = p.Href.Path()
				break
			}
		}
	}
	return d.next(stageAddressbookHomeSet, path, found), nil
}

// addressbook lists the home set one level deep and picks the first member
// marked as an addressbook with a 200 OK propstat.
func (d *Resolver) addressbook(ctx context.Context, host, path string) (string, error) {
	resp, err := d.rq.propfind(ctx, stageAddressbook, "", host+path, depthOne, resourceTypeRequest)
	if err != nil {
		return "", err
	}
	ms, err := decodeMultistatus[ResourceTypeProp](resp, stageAddressbook, "")
	if err != nil {
		return "", err
	}

	return d.next(stageAddressbook, path, findAddressbook(ms)), nil
}

func findAddressbook(ms *Multistatus[ResourceTypeProp]) string {
	for _, resp := range ms.Responses {
		for _, ps := range resp.Propstats {
			if ps.Status.OK() && ps.Prop.ResourceType.Addressbook != nil && resp.Href.String() != "" {
				return resp.Href.Path()
			}
		}
	}
	return ""
}

func (d *Resolver) next(stage, path, found string) string {
	if found == "" {
		d.log.Debug("property not reported, keeping path",
			slog.String("stage", stage),
			slog.String("path", path),
		)
		return path
	}
	d.log.Debug("path resolved",
		slog.String("stage", stage),
		slog.String("path", found),
	)
	return found
}

func withTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
