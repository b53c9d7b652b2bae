package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Raimguzhinov/everest/internal/domain"
	"github.com/Raimguzhinov/everest/pkg/logger"
	"github.com/emersion/go-vcard"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// put uploads every vCard found in the given files. A card without UID gets
// a random one.
func (a *App) put(ctx context.Context, paths []string) error {
	for _, path := range paths {
		cards, err := readCards(path)
		if err != nil {
			return err
		}
		for _, card := range cards {
			if err := a.repo.Create(ctx, card); err != nil {
				return err
			}
			a.log.Info("card uploaded", slog.String("id", card.ID), slog.String("file", path))
			fmt.Fprintln(a.out, card.ID)
		}
	}
	return nil
}

func readCards(path string) ([]domain.Card, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cards []domain.Card
	dec := vcard.NewDecoder(f)
	for {
		vc, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		id := vc.Value(vcard.FieldUID)
		if id == "" {
			id = uuid.NewString()
			vc.SetValue(vcard.FieldUID, id)
		}
		card, err := domain.NewCard(id, vc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cards = append(cards, card)
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("%s: no vCard found", path)
	}
	return cards, nil
}

// get reads the ids concurrently and prints the cards in argument order.
func (a *App) get(ctx context.Context, ids []string) error {
	cards := make([]domain.Card, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			card, err := a.repo.Read(ctx, id)
			if err != nil {
				return err
			}
			cards[i] = card
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, card := range cards {
		a.log.Debug("card fetched", slog.String("id", card.ID), slog.Time("date", card.Date))
		if _, err := io.WriteString(a.out, card.Raw); err != nil {
			return err
		}
	}
	return nil
}

// delete removes the ids one by one and stops at the first failure.
func (a *App) delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := a.repo.Delete(ctx, id); err != nil {
			if errors.Is(err, domain.ErrProtocol) {
				a.log.Warn("card not deleted", slog.String("id", id), logger.Err(err))
			}
			return err
		}
		a.log.Info("card deleted", slog.String("id", id))
	}
	return nil
}

func (a *App) ctag(ctx context.Context, _ []string) error {
	ctag, err := a.repo.Ctag(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, ctag)
	return nil
}
