package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"

	"rewards-backend/core/rewards"
	"rewards-backend/handlers"
	"rewards-backend/services"
	auth "rewards-backend/storage/auth"
	store "rewards-backend/storage/rewards"
)

func wallet(seed byte) string {
	key := make([]byte, rewards.WalletKeySize)
	for i := range key {
		key[i] = seed + byte(i)
	}
	return base58.Encode(key)
}

func newServer(t *testing.T) (*httptest.Server, *rewards.Engine) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	keys := auth.NewAPIKeyStore()
	keys.Reload("config", []string{"admin"}, []string{"operator"})
	engine := rewards.NewEngine(store.NewMemoryStore(),
		rewards.WithAuthorizer(rewards.AuthorizerFunc(auth.IsAdmin)),
		rewards.WithLogger(logger),
	)
	srv := httptest.NewServer(handlers.NewRouter(handlers.RouterConfig{
		Rewards: handlers.NewRewardsHandler(engine, services.NewQRCodeService(), logger),
		Keys:    handlers.NewAPIKeyHandler(keys, logger),
		Health:  handlers.NewHealthHandler(services.NewHealthService("memory", engine.TicketGate())),
		Auth:    keys,
		Logger:  logger,
	}))
	t.Cleanup(srv.Close)
	return srv, engine
}

func TestBuildAndVerifyTickets(t *testing.T) {
	srv, engine := newServer(t)
	ctx := context.Background()
	sys := auth.System(ctx, "test")

	require.NoError(t, engine.DefineTasks(sys, []rewards.TaskDefinition{{TaskID: "T1", Reward: 25}}))
	wallets := []string{wallet(1), wallet(40), wallet(90)}
	for _, w := range wallets {
		_, err := engine.CompleteTask(ctx, w, "T1", "", 10)
		require.NoError(t, err)
	}

	admin := New(srv.URL, "admin")
	snap, err := admin.BuildEpoch(ctx, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, snap.Epoch)
	require.EqualValues(t, 3, snap.LeafCount)

	latest, err := admin.LatestEpoch(ctx)
	require.NoError(t, err)
	require.Equal(t, snap.Root, latest.Root)

	operator := New(srv.URL+"/", "operator")
	for _, w := range wallets {
		ticket, err := operator.Ticket(ctx, 1, w)
		require.NoError(t, err)
		require.EqualValues(t, 25, ticket.Amount)
		require.True(t, ticket.Verify(), "ticket for %s", w)
	}

	snaps, err := operator.ListEpochs(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
}

func TestAPIErrors(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()

	_, err := New(srv.URL, "operator").BuildEpoch(ctx, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, 403, apiErr.Status)
	require.Equal(t, "permission_denied", apiErr.Kind)

	_, err = New(srv.URL, "operator").GetEpoch(ctx, 7)
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "not_found", apiErr.Kind)

	_, err = New(srv.URL, "").ListEpochs(ctx)
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, 401, apiErr.Status)
}
