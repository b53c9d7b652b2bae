package carddav

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Raimguzhinov/everest/internal/auth"
	"github.com/Raimguzhinov/everest/internal/domain"
	"github.com/Raimguzhinov/everest/pkg/logger"
	"github.com/emersion/go-webdav"
)

const vcardContentType = "text/vcard; charset=utf-8"

var _ domain.CardRepository = (*RemoteCardRepository)(nil)

// RemoteCardRepository stores cards as {addressbook}{id}.vcf resources on a
// CardDAV server. Ids are used verbatim in URLs and must not contain "/".
//
// The addressbook URL is discovered once by NewRemoteCardRepository and
// never changes afterwards, so a repository is safe for concurrent use as
// long as its HTTP client is.
type RemoteCardRepository struct {
	addressbookPath string
	lenientStatus   bool

	rq  *requester
	log *logger.Logger
}

// CardStat holds the server-side metadata of a card.
type CardStat struct {
	Href         string
	ETag         string
	LastModified time.Time
}

type Option func(*RemoteCardRepository)

func WithLogger(l *logger.Logger) Option {
	return func(r *RemoteCardRepository) {
		if l != nil {
			r.log = l
		}
	}
}

// WithLenientStatus makes Create and Delete succeed on any completed round
// trip, whatever status the server answers with.
func WithLenientStatus() Option {
	return func(r *RemoteCardRepository) {
		r.lenientStatus = true
	}
}

// NewRemoteCardRepository discovers the addressbook of the user behind creds
// on host and returns a repository bound to it.
func NewRemoteCardRepository(
	ctx context.Context,
	host string,
	client webdav.HTTPClient,
	creds auth.CredentialProvider,
	opts ...Option,
) (*RemoteCardRepository, error) {
	rq, err := newRequester(client, creds)
	if err != nil {
		return nil, err
	}

	r := &RemoteCardRepository{
		rq:  rq,
		log: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	resolver := &Resolver{
		rq:  rq,
		log: r.log.With(slog.String("component", "carddav/discovery")),
	}
	r.addressbookPath, err = resolver.Resolve(ctx, host)
	if err != nil {
		return nil, err
	}

	r.log = r.log.With(
		slog.String("component", "carddav/repository"),
		slog.String("addressbook", r.addressbookPath),
	)
	r.log.Info("addressbook discovered")

	return r, nil
}

// AddressbookPath returns the discovered addressbook URL.
func (r *RemoteCardRepository) AddressbookPath() string {
	return r.addressbookPath
}

func (r *RemoteCardRepository) cardURL(id string) string {
	return r.addressbookPath + id + ".vcf"
}

// Create uploads card.Raw, creating or overwriting the resource.
func (r *RemoteCardRepository) Create(ctx context.Context, card domain.Card) error {
	const op = "create"

	resp, err := r.rq.do(ctx, op, card.ID, http.MethodPut, r.cardURL(card.ID), strings.NewReader(card.Raw),
		func(req *http.Request) {
			req.Header.Set("Content-Type", vcardContentType)
		},
	)
	if err != nil {
		return err
	}
	defer discard(resp)

	if !r.lenientStatus && !isSuccess(resp.StatusCode) {
		return domain.NewError(domain.KindProtocol, op, card.ID, unexpectedStatus(resp))
	}

	r.log.Debug("card created", slog.String("id", card.ID), slog.Int("status", resp.StatusCode))
	return nil
}

// Read fetches a card. Date comes from the Last-Modified header when the
// server sends a valid one, the current time otherwise.
func (r *RemoteCardRepository) Read(ctx context.Context, id string) (domain.Card, error) {
	const op = "read"

	resp, err := r.rq.do(ctx, op, id, http.MethodGet, r.cardURL(id), nil, func(req *http.Request) {
		req.Header.Set("Depth", depthOne)
	})
	if err != nil {
		return domain.Card{}, err
	}

	if resp.StatusCode != http.StatusOK {
		discard(resp)
		return domain.Card{}, domain.NewError(domain.KindProtocol, op, id, nil)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Card{}, domain.NewError(domain.KindTransport, op, id, err)
	}

	date := time.Now().UTC()
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := parseDate(lm); err == nil {
			date = t
		}
	}

	return domain.Card{
		ID:   id,
		Date: date,
		Raw:  string(content),
	}, nil
}

func (r *RemoteCardRepository) ReadAll(context.Context) ([]domain.Card, error) {
	return nil, domain.NewError(domain.KindNotImplemented, "read all cards", "", domain.ErrNotImplemented)
}

func (r *RemoteCardRepository) Update(_ context.Context, card domain.Card) error {
	return domain.NewError(domain.KindNotImplemented, "update", card.ID, domain.ErrNotImplemented)
}

// Delete removes the card unconditionally.
func (r *RemoteCardRepository) Delete(ctx context.Context, id string) error {
	const op = "delete"

	resp, err := r.rq.do(ctx, op, id, http.MethodDelete, r.cardURL(id), nil, nil)
	if err != nil {
		return err
	}
	defer discard(resp)

	if !r.lenientStatus && !isSuccess(resp.StatusCode) {
		return domain.NewError(domain.KindProtocol, op, id, unexpectedStatus(resp))
	}

	r.log.Debug("card deleted", slog.String("id", id), slog.Int("status", resp.StatusCode))
	return nil
}

// DeleteIfUnmodified removes the card only while its entity tag still
// equals etag.
//
// https://sabre.io/dav/building-a-carddav-client/#deleting-a-contact
func (r *RemoteCardRepository) DeleteIfUnmodified(ctx context.Context, id, etag string) error {
	const op = "delete"

	resp, err := r.rq.do(ctx, op, id, http.MethodDelete, r.cardURL(id), nil, func(req *http.Request) {
		req.Header.Set("If-Match", quoteETag(etag))
	})
	if err != nil {
		return err
	}
	defer discard(resp)

	switch {
	case resp.StatusCode == http.StatusPreconditionFailed:
		return domain.NewError(domain.KindPreconditionFailed, op, id, unexpectedStatus(resp))
	case !isSuccess(resp.StatusCode):
		return domain.NewError(domain.KindProtocol, op, id, unexpectedStatus(resp))
	}

	r.log.Debug("card deleted", slog.String("id", id), slog.String("etag", etag))
	return nil
}

// Stat reads the entity tag and modification time of a card. Properties the
// server does not report are left empty.
func (r *RemoteCardRepository) Stat(ctx context.Context, id string) (CardStat, error) {
	const op = "stat"

	resp, err := r.rq.propfind(ctx, op, id, r.cardURL(id), depthZero, cardStatRequest)
	if err != nil {
		return CardStat{}, err
	}
	if resp.StatusCode != http.StatusMultiStatus {
		discard(resp)
		return CardStat{}, domain.NewError(domain.KindProtocol, op, id, unexpectedStatus(resp))
	}

	ms, err := decodeMultistatus[AddressDataProp](resp, op, id)
	if err != nil {
		return CardStat{}, err
	}
	if len(ms.Responses) == 0 {
		return CardStat{}, nil
	}

	stat := CardStat{Href: ms.Responses[0].Href.Path()}
	if prop, ok := ms.Responses[0].Found(); ok {
		stat.ETag = prop.Etag.String()
		if prop.LastModified != nil {
			stat.LastModified = prop.LastModified.Time
		}
	}
	return stat, nil
}

// Ctag reads the change tag of the addressbook collection. An empty string
// means the server does not support it.
func (r *RemoteCardRepository) Ctag(ctx context.Context) (string, error) {
	const op = "read addressbook ctag"

	resp, err := r.rq.propfind(ctx, op, "", r.addressbookPath, depthZero, ctagRequest)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusMultiStatus {
		discard(resp)
		return "", domain.NewError(domain.KindProtocol, op, "", unexpectedStatus(resp))
	}

	ms, err := decodeMultistatus[CtagProp](resp, op, "")
	if err != nil {
		return "", err
	}
	for i := range ms.Responses {
		if prop, ok := ms.Responses[i].Found(); ok && prop.Ctag.String() != "" {
			return prop.Ctag.String(), nil
		}
	}
	return "", nil
}

func quoteETag(etag string) string {
	if strings.HasPrefix(etag, `"`) || strings.HasPrefix(etag, "W/") {
		return etag
	}
	return `"` + etag + `"`
}
