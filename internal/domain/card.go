package domain

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
)

// Card is a single contact resource. Raw holds the vCard text as stored on
// the server and is transported without being parsed.
type Card struct {
	ID   string
	Date time.Time
	Raw  string
}

// CardRepository is the capability contract shared by card stores.
type CardRepository interface {
	Create(ctx context.Context, card Card) error
	Read(ctx context.Context, id string) (Card, error)
	ReadAll(ctx context.Context) ([]Card, error)
	Update(ctx context.Context, card Card) error
	Delete(ctx context.Context, id string) error
}

// NewCard encodes vc and wraps it into a Card with the given id.
func NewCard(id string, vc vcard.Card) (Card, error) {
	if id == "" {
		return Card{}, fmt.Errorf("domain - NewCard: empty id")
	}
	if strings.Contains(id, "/") {
		return Card{}, fmt.Errorf("domain - NewCard: id %q contains a path separator", id)
	}

	var buf bytes.Buffer
	if err := vcard.NewEncoder(&buf).Encode(vc); err != nil {
		return Card{}, fmt.Errorf("domain - NewCard - vcard.Encode: %w", err)
	}

	return Card{
		ID:   id,
		Date: time.Now().UTC(),
		Raw:  buf.String(),
	}, nil
}

// VCard decodes Raw. It is meant for presentation code; repositories never
// look inside Raw.
func (c Card) VCard() (vcard.Card, error) {
	vc, err := vcard.NewDecoder(strings.NewReader(c.Raw)).Decode()
	if err != nil {
		return nil, fmt.Errorf("domain - Card.VCard - vcard.Decode: %w", err)
	}
	return vc, nil
}
