// Package carddavtest provides an in-memory CardDAV server for tests.
package carddavtest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Raimguzhinov/everest/pkg/etag"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/carddav"
	"github.com/go-chi/chi/v5"
)

func init() {
	chi.RegisterMethod("PROPFIND")
}

type Options struct {
	// Username enables basic auth when set. Password may be empty.
	Username string
	Password string

	PrincipalPath   string
	HomeSetPath     string
	AddressbookPath string

	// PrincipalFromGoWebDAV answers the principal and home-set queries with
	// webdav.ServePrincipal instead of the built-in responses.
	PrincipalFromGoWebDAV bool
}

// Request is a request as seen by the server.
type Request struct {
	Method string
	Path   string
	Depth  string
	Body   string
	Header http.Header
}

type card struct {
	data    []byte
	etag    string
	modTime time.Time
}

type Server struct {
	*httptest.Server

	opts Options

	mu       sync.Mutex
	cards    map[string]card
	ctag     int
	requests []Request
}

func NewServer(opts Options) *Server {
	if opts.PrincipalPath == "" {
		opts.PrincipalPath = "/user/"
	}
	if opts.HomeSetPath == "" {
		opts.HomeSetPath = opts.PrincipalPath
	}
	if opts.AddressbookPath == "" {
		opts.AddressbookPath = opts.HomeSetPath + "contacts/"
	}

	s := &Server{
		opts:  opts,
		cards: make(map[string]card),
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.basicAuth)
	r.MethodFunc("PROPFIND", "/*", s.propfind)
	r.Get("/*", s.get)
	r.Put("/*", s.put)
	r.Delete("/*", s.deleteCard)

	s.Server = httptest.NewServer(r)
	return s
}

// AddressbookURL is the URL discovery is expected to resolve to.
func (s *Server) AddressbookURL() string {
	return s.URL + s.opts.AddressbookPath
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Card returns the stored body of id and whether it exists.
func (s *Server) Card(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[s.opts.AddressbookPath+id+".vcf"]
	return string(c.data), ok
}

// ETag returns the entity tag of id, empty when absent.
func (s *Server) ETag(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cards[s.opts.AddressbookPath+id+".vcf"].etag
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Depth:  r.Header.Get("Depth"),
			Body:   string(body),
			Header: r.Header.Clone(),
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Username != "" {
			user, password, ok := r.BasicAuth()
			if !ok || user != s.opts.Username || password != s.opts.Password {
				w.Header().Add("WWW-Authenticate", `Basic realm="carddavtest", charset="UTF-8"`)
				http.Error(w, "HTTP Basic auth is required", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) propfind(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))
	query := string(body)

	switch {
	case strings.Contains(query, "current-user-principal"), strings.Contains(query, "addressbook-home-set"):
		if s.opts.PrincipalFromGoWebDAV {
			webdav.ServePrincipal(w, r, &webdav.ServePrincipalOptions{
				CurrentUserPrincipalPath: s.opts.PrincipalPath,
				HomeSets: []webdav.BackendSuppliedHomeSet{
					carddav.NewAddressBookHomeSet(s.opts.HomeSetPath),
				},
				Capabilities: []webdav.Capability{carddav.CapabilityAddressBook},
			})
			return
		}
		if strings.Contains(query, "current-user-principal") {
			WriteMultistatus(w, Response(r.URL.Path, OKPropstat(
				`<D:current-user-principal><D:href>`+s.opts.PrincipalPath+`</D:href></D:current-user-principal>`,
			)))
			return
		}
		WriteMultistatus(w, Response(r.URL.Path, OKPropstat(
			`<C:addressbook-home-set><D:href>`+s.opts.HomeSetPath+`</D:href></C:addressbook-home-set>`,
		)))
	case strings.Contains(query, "resourcetype"):
		s.propfindResourceType(w, r)
	case strings.Contains(query, "getctag"):
		s.propfindCtag(w, r)
	case strings.Contains(query, "getetag"):
		s.propfindCard(w, r)
	default:
		http.Error(w, "unsupported PROPFIND", http.StatusBadRequest)
	}
}

func (s *Server) propfindResourceType(w http.ResponseWriter, r *http.Request) {
	var resps []string
	switch r.URL.Path {
	case s.opts.HomeSetPath:
		resps = append(resps, Response(r.URL.Path, OKPropstat(`<D:resourcetype><D:collection/></D:resourcetype>`)))
		if r.Header.Get("Depth") == "1" {
			resps = append(resps, Response(s.opts.AddressbookPath, OKPropstat(
				`<D:resourcetype><D:collection/><C:addressbook/></D:resourcetype>`,
			)))
		}
	case s.opts.AddressbookPath:
		resps = append(resps, Response(r.URL.Path, OKPropstat(
			`<D:resourcetype><D:collection/><C:addressbook/></D:resourcetype>`,
		)))
	default:
		resps = append(resps, Response(r.URL.Path, OKPropstat(`<D:resourcetype><D:collection/></D:resourcetype>`)))
	}
	WriteMultistatus(w, resps...)
}

func (s *Server) propfindCtag(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.opts.AddressbookPath {
		WriteMultistatus(w, Response(r.URL.Path, Propstat(`<CS:getctag/>`, "HTTP/1.1 404 Not Found")))
		return
	}
	s.mu.Lock()
	ctag := s.ctag
	s.mu.Unlock()
	WriteMultistatus(w, Response(r.URL.Path, OKPropstat(fmt.Sprintf(`<CS:getctag>"ctag-%d"</CS:getctag>`, ctag))))
}

func (s *Server) propfindCard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	c, ok := s.cards[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	WriteMultistatus(w, Response(r.URL.Path, OKPropstat(
		`<D:getetag>`+xmlEscape(c.etag)+`</D:getetag>`+
			`<D:getlastmodified>`+c.modTime.Format(http.TimeFormat)+`</D:getlastmodified>`,
	)))
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	c, ok := s.cards[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/vcard; charset=utf-8")
	w.Header().Set("ETag", c.etag)
	w.Header().Set("Last-Modified", c.modTime.Format(http.TimeFormat))
	_, _ = w.Write(c.data)
}

func (s *Server) put(w http.ResponseWriter, r *http.Request) {
	if !s.inAddressbook(r.URL.Path) {
		http.Error(w, "not an addressbook member", http.StatusForbidden)
		return
	}
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/vcard") {
		http.Error(w, "unsupported content type "+ct, http.StatusUnsupportedMediaType)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, existed := s.cards[r.URL.Path]
	c := card{
		data:    data,
		etag:    etag.FromData(data),
		modTime: time.Now().UTC().Truncate(time.Second),
	}
	s.cards[r.URL.Path] = c
	s.ctag++
	s.mu.Unlock()

	w.Header().Set("ETag", c.etag)
	if existed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) deleteCard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cards[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if ifMatch := r.Header.Get("If-Match"); ifMatch != "" && !etag.Match(ifMatch, c.etag) {
		http.Error(w, "entity tag mismatch", http.StatusPreconditionFailed)
		return
	}
	delete(s.cards, r.URL.Path)
	s.ctag++
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) inAddressbook(p string) bool {
	rest := strings.TrimPrefix(p, s.opts.AddressbookPath)
	return rest != p && rest != "" && !strings.Contains(rest, "/")
}

// IDs lists stored card ids in order.
func (s *Server) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.cards))
	for p := range s.cards {
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(p, s.opts.AddressbookPath), ".vcf"))
	}
	sort.Strings(ids)
	return ids
}

func OKPropstat(prop string) string {
	return Propstat(prop, "HTTP/1.1 200 OK")
}

func Propstat(prop, status string) string {
	return `<D:propstat><D:prop>` + prop + `</D:prop><D:status>` + status + `</D:status></D:propstat>`
}

func Response(href string, propstats ...string) string {
	return `<D:response><D:href>` + href + `</D:href>` + strings.Join(propstats, "") + `</D:response>`
}

// WriteMultistatus writes a 207 response wrapping the given response
// elements. The D, C and CS prefixes are declared on the root.
func WriteMultistatus(w http.ResponseWriter, responses ...string) {
	w.Header().Set("Content-Type", `application/xml; charset="utf-8"`)
	w.WriteHeader(http.StatusMultiStatus)
	_, _ = io.WriteString(w, `<?xml version="1.0" encoding="utf-8"?>`+
		`<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav" xmlns:CS="http://calendarserver.org/ns/">`+
		strings.Join(responses, "")+
		`</D:multistatus>`)
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
