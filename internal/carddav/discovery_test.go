package carddav

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Raimguzhinov/everest/internal/auth"
	"github.com/Raimguzhinov/everest/internal/carddav/carddavtest"
	"github.com/Raimguzhinov/everest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stagePaths struct {
	mu    sync.Mutex
	paths []string
}

func (s *stagePaths) add(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, p)
}

func (s *stagePaths) get() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// scriptedServer answers each discovery stage with a fixed multistatus
// body, keyed by the property the request asks for. Stages without an
// entry get an empty multistatus.
func scriptedServer(t *testing.T, bodies map[string][]string) (*httptest.Server, *stagePaths) {
	t.Helper()

	seen := &stagePaths{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.add(r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		for _, key := range []string{"current-user-principal", "addressbook-home-set", "resourcetype"} {
			if strings.Contains(string(body), key) {
				carddavtest.WriteMultistatus(w, bodies[key]...)
				return
			}
		}
		http.Error(w, "unexpected request", http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	creds, err := auth.NewBasicAuth("user", "")
	require.NoError(t, err)
	d, err := NewResolver(nil, creds, nil)
	require.NoError(t, err)
	return d
}

func TestResolve_HappyPath(t *testing.T) {
	srv := carddavtest.NewServer(carddavtest.Options{Username: "user"})
	defer srv.Close()

	got, err := newTestResolver(t).Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.AddressbookURL(), got)

	reqs := srv.Requests()
	require.Len(t, reqs, 3)

	assert.Equal(t, "/", reqs[0].Path)
	assert.Equal(t, "0", reqs[0].Depth)
	assert.Equal(t, currentUserPrincipalRequest, reqs[0].Body)

	assert.Equal(t, "/user/", reqs[1].Path)
	assert.Equal(t, "0", reqs[1].Depth)
	assert.Equal(t, addressbookHomeSetRequest, reqs[1].Body)

	assert.Equal(t, "/user/", reqs[2].Path)
	assert.Equal(t, "1", reqs[2].Depth)
	assert.Contains(t, reqs[2].Body, "resourcetype")

	for _, req := range reqs {
		assert.Equal(t, MethodPropfind, req.Method)
		assert.Contains(t, req.Header.Get("Content-Type"), "text/xml")
		assert.True(t, strings.HasPrefix(req.Header.Get("Authorization"), "Basic "))
	}
}

func TestResolve_AddressbookStageTargetsHomeSet(t *testing.T) {
	srv := carddavtest.NewServer(carddavtest.Options{
		PrincipalPath:   "/principals/alice/",
		HomeSetPath:     "/alice/",
		AddressbookPath: "/alice/book/",
	})
	defer srv.Close()

	got, err := newTestResolver(t).Resolve(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/alice/book/", got)

	reqs := srv.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, []string{"/", "/principals/alice/", "/alice/"},
		[]string{reqs[0].Path, reqs[1].Path, reqs[2].Path})
}

func TestResolve_GoWebDAVPrincipal(t *testing.T) {
	srv := carddavtest.NewServer(carddavtest.Options{
		PrincipalPath:         "/admin/",
		HomeSetPath:           "/admin/contacts/",
		AddressbookPath:       "/admin/contacts/default/",
		PrincipalFromGoWebDAV: true,
	})
	defer srv.Close()

	got, err := newTestResolver(t).Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.AddressbookURL(), got)
}

func TestResolve_FallbackToRoot(t *testing.T) {
	srv, seen := scriptedServer(t, nil)

	got, err := newTestResolver(t).Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/", got)
	assert.Equal(t, []string{"/", "/", "/"}, seen.get())
}

func TestResolve_AbsentPropertyKeepsPath(t *testing.T) {
	srv, seen := scriptedServer(t, map[string][]string{
		"current-user-principal": {
			carddavtest.Response("/", carddavtest.Propstat(`<D:current-user-principal/>`, "HTTP/1.1 404 Not Found")),
		},
		"addressbook-home-set": {
			carddavtest.Response("/", carddavtest.OKPropstat(`<C:addressbook-home-set><D:href>/home/</D:href></C:addressbook-home-set>`)),
		},
	})

	got, err := newTestResolver(t).Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/home/", got)
	assert.Equal(t, []string{"/", "/", "/home/"}, seen.get())
}

func TestResolve_NoAddressbookKeepsHomeSet(t *testing.T) {
	srv, _ := scriptedServer(t, map[string][]string{
		"current-user-principal": {
			carddavtest.Response("/", carddavtest.OKPropstat(`<D:current-user-principal><D:href>/p/</D:href></D:current-user-principal>`)),
		},
		"addressbook-home-set": {
			carddavtest.Response("/p/", carddavtest.OKPropstat(`<C:addressbook-home-set><D:href>/home/</D:href></C:addressbook-home-set>`)),
		},
		"resourcetype": {
			carddavtest.Response("/home/", carddavtest.OKPropstat(`<D:resourcetype><D:collection/></D:resourcetype>`)),
			carddavtest.Response("/home/forbidden/", carddavtest.Propstat(
				`<D:resourcetype><D:collection/><C:addressbook/></D:resourcetype>`, "HTTP/1.1 403 Forbidden")),
		},
	})

	got, err := newTestResolver(t).Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/home/", got)
}

func TestResolve_PicksValidAddressbookAmongMalformed(t *testing.T) {
	srv, _ := scriptedServer(t, map[string][]string{
		"resourcetype": {
			carddavtest.Response("/not-found/", carddavtest.Propstat(
				`<D:resourcetype><C:addressbook/></D:resourcetype>`, "HTTP/1.1 404 Not Found")),
			// no status at all
			`<D:response><D:href>/no-status/</D:href><D:propstat><D:prop><D:resourcetype><C:addressbook/></D:resourcetype></D:prop></D:propstat></D:response>`,
			carddavtest.Response("/plain/", carddavtest.OKPropstat(`<D:resourcetype><D:collection/></D:resourcetype>`)),
			carddavtest.Response("/book", carddavtest.OKPropstat(`<D:resourcetype><D:collection/><C:addressbook/></D:resourcetype>`)),
			carddavtest.Response("/second/", carddavtest.OKPropstat(`<D:resourcetype><C:addressbook/></D:resourcetype>`)),
		},
	})

	got, err := newTestResolver(t).Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/book/", got)
}

func TestResolve_ParseFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "current-user-principal") {
			carddavtest.WriteMultistatus(w)
			return
		}
		_, _ = io.WriteString(w, "<html>not dav</html>")
	}))
	defer srv.Close()

	_, err := newTestResolver(t).Resolve(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrParse))
	assert.Contains(t, err.Error(), "addressbook-home-set")
}

func TestResolve_Unauthorized(t *testing.T) {
	srv := carddavtest.NewServer(carddavtest.Options{Username: "someone-else"})
	defer srv.Close()

	_, err := newTestResolver(t).Resolve(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrParse)
	assert.Contains(t, err.Error(), "current-user-principal")
}

func TestResolve_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestResolver(t).Resolve(context.Background(), url)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, domain.KindTransport, domain.KindOf(err))
}

type failingCreds struct{}

func (failingCreds) Credentials(context.Context) (string, string, error) {
	return "", "", errors.New("vault sealed")
}

func TestResolve_CredentialFailure(t *testing.T) {
	srv := carddavtest.NewServer(carddavtest.Options{})
	defer srv.Close()

	d, err := NewResolver(nil, failingCreds{}, nil)
	require.NoError(t, err)

	_, err = d.Resolve(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Contains(t, err.Error(), "vault sealed")
	assert.Empty(t, srv.Requests())
}

func TestNewResolver_MissingCredentials(t *testing.T) {
	_, err := NewResolver(nil, nil, nil)
	require.Error(t, err)
}
