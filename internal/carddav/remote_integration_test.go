package carddav

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/Raimguzhinov/everest/internal/auth"
	"github.com/Raimguzhinov/everest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// EnvIntegrationHost points the test at a live server, e.g. a local
// Radicale on http://localhost:5232.
const (
	EnvIntegrationHost = "EVEREST_CARDDAV_HOST"
	EnvIntegrationAuth = "EVEREST_CARDDAV_AUTH"
)

func TestRemoteCardRepository_Integration(t *testing.T) {
	host := os.Getenv(EnvIntegrationHost)
	if host == "" {
		t.Skipf("%s is not set", EnvIntegrationHost)
	}
	authURL := os.Getenv(EnvIntegrationAuth)
	if authURL == "" {
		authURL = "basic://user@"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	creds, err := auth.NewFromURL(authURL)
	require.NoError(t, err)

	repo, err := NewRemoteCardRepository(ctx, host, &http.Client{Timeout: 10 * time.Second}, creds)
	require.NoError(t, err)

	id := "8f16d8b5-7e3a-6cd9-fa49-fc6cea65db2a"
	card := testCard(id)

	require.NoError(t, repo.Create(ctx, card))
	got, err := repo.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, card.ID, got.ID)
	assert.Equal(t, card.Raw, got.Raw)

	require.NoError(t, repo.Delete(ctx, card.ID))
	_, err = repo.Read(ctx, id)
	require.ErrorIs(t, err, domain.ErrProtocol)
	assert.Equal(t, fmt.Sprintf(`cannot read card "%s"`, id), err.Error())
}
