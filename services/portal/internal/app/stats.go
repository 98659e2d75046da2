package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"meridian/pkg/domain"
)

// ClientStats runs the seven dashboard counts concurrently. Each count
// re-applies the client scoping join; there is no cross-count snapshot,
// so concurrent writes may make the numbers mutually inconsistent.
// Returns (nil, nil) when the account has no client row.
func (a *App) ClientStats(ctx context.Context, userID string) (*domain.ClientStats, error) {
	client, ok, err := a.store.GetClientByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("fetch client: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var stats domain.ClientStats
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalProjects, err = a.store.CountProjects(client.ID)
		return err
	})
	g.Go(func() (err error) {
		stats.ActiveProjects, err = a.store.CountProjectsByStatus(client.ID, "active")
		return err
	})
	g.Go(func() (err error) {
		stats.TotalInvoices, err = a.store.CountInvoices(client.ID)
		return err
	})
	g.Go(func() (err error) {
		stats.PendingInvoices, err = a.store.CountInvoicesByStatus(client.ID, string(domain.InvoicePending))
		return err
	})
	g.Go(func() (err error) {
		stats.TotalAssets, err = a.store.CountAssets(client.ID)
		return err
	})
	g.Go(func() (err error) {
		stats.CompletedTasks, err = a.store.CountTasksByCompletion(client.ID, true)
		return err
	})
	g.Go(func() (err error) {
		stats.PendingTasks, err = a.store.CountTasksByCompletion(client.ID, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("count stats: %w", err)
	}
	return &stats, nil
}
