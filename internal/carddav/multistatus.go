package carddav

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/mail"
	"net/url"
	"strings"
	"time"
)

// Multistatus is a decoded WebDAV multistatus body. Only the leaf property
// type varies between queries.
//
// https://tools.ietf.org/html/rfc4918#section-14.16
type Multistatus[T any] struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	Responses []Response[T] `xml:"DAV: response"`
}

// https://tools.ietf.org/html/rfc4918#section-14.24
type Response[T any] struct {
	Href      Href          `xml:"DAV: href"`
	Propstats []Propstat[T] `xml:"DAV: propstat"`
}

// https://tools.ietf.org/html/rfc4918#section-14.22
type Propstat[T any] struct {
	Prop   T       `xml:"DAV: prop"`
	Status *Status `xml:"DAV: status"`
}

// Href is the text of a DAV:href element.
type Href string

func (h Href) String() string {
	return strings.TrimSpace(string(h))
}

// Path returns the path part of h. Servers may answer with absolute URLs.
func (h Href) Path() string {
	s := h.String()
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		return s
	}
	return u.EscapedPath()
}

// Status is an HTTP status line such as "HTTP/1.1 200 OK".
type Status string

func (s *Status) OK() bool {
	return s != nil && strings.HasSuffix(strings.TrimSpace(string(*s)), "200 OK")
}

type Etag string

func (e Etag) String() string {
	return strings.TrimSpace(string(e))
}

type Ctag string

func (c Ctag) String() string {
	return strings.TrimSpace(string(c))
}

// LastModified is a DAV:getlastmodified value. The element text must be an
// RFC 2822 date; an empty element, as sent in a 404 propstat, leaves it zero.
type LastModified struct {
	Time time.Time
}

func (lm *LastModified) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := parseDate(s)
	if err != nil {
		return fmt.Errorf("carddav: invalid getlastmodified %q: %w", s, err)
	}
	lm.Time = t
	return nil
}

func parseDate(s string) (time.Time, error) {
	t, err := mail.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Decode reads a multistatus body whose props decode into T.
func Decode[T any](r io.Reader) (*Multistatus[T], error) {
	var ms Multistatus[T]
	if err := xml.NewDecoder(r).Decode(&ms); err != nil {
		return nil, err
	}
	return &ms, nil
}

// Found returns the prop of the first propstat reporting 200 OK.
func (r *Response[T]) Found() (T, bool) {
	for i := range r.Propstats {
		if r.Propstats[i].Status.OK() {
			return r.Propstats[i].Prop, true
		}
	}
	var zero T
	return zero, false
}
