package app

import (
	"fmt"

	"meridian/pkg/domain"
	"meridian/pkg/store"
)

// Client-scoped reads. Every method takes the session user id, resolves the
// backing client row and scopes the query to it. A user with no client row
// gets empty results, not an error.

// ClientProfile returns the client row for a session, or false when the
// account has not been provisioned as a client yet.
func (a *App) ClientProfile(userID string) (domain.Client, bool, error) {
	return a.store.GetClientByUserID(userID)
}

// ClientProjects lists the client's projects, newest first.
func (a *App) ClientProjects(userID string) ([]domain.Project, error) {
	client, ok, err := a.store.GetClientByUserID(userID)
	if err != nil || !ok {
		return nil, err
	}
	return a.store.ListProjectsByClient(client.ID)
}

// ProjectDetails returns one project after an ownership check. A project
// owned by another client is indistinguishable from a missing one.
func (a *App) ProjectDetails(userID, projectID string) (domain.Project, error) {
	project, err := a.ownedProject(userID, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// ClientInvoices lists every invoice under the client's projects,
// newest issued first.
func (a *App) ClientInvoices(userID string) ([]domain.Invoice, error) {
	client, ok, err := a.store.GetClientByUserID(userID)
	if err != nil || !ok {
		return nil, err
	}
	return a.store.ListInvoicesByClient(client.ID)
}

// ProjectInvoices lists invoices for one owned project.
func (a *App) ProjectInvoices(userID, projectID string) ([]domain.Invoice, error) {
	if _, err := a.ownedProject(userID, projectID); err != nil {
		return nil, err
	}
	return a.store.ListInvoicesByProject(projectID)
}

// ClientMetrics lists metrics across the client's projects, newest first.
func (a *App) ClientMetrics(userID string) ([]domain.Metric, error) {
	client, ok, err := a.store.GetClientByUserID(userID)
	if err != nil || !ok {
		return nil, err
	}
	return a.store.ListMetricsByClient(client.ID)
}

// ProjectMetrics lists metrics for one owned project.
func (a *App) ProjectMetrics(userID, projectID string) ([]domain.Metric, error) {
	if _, err := a.ownedProject(userID, projectID); err != nil {
		return nil, err
	}
	return a.store.ListMetricsByProject(projectID)
}

// ClientTasks lists tasks across the client's projects ordered by due
// date, undated tasks last.
func (a *App) ClientTasks(userID string) ([]domain.Task, error) {
	client, ok, err := a.store.GetClientByUserID(userID)
	if err != nil || !ok {
		return nil, err
	}
	return a.store.ListTasksByClient(client.ID)
}

// ProjectTasks lists tasks for one owned project.
func (a *App) ProjectTasks(userID, projectID string) ([]domain.Task, error) {
	if _, err := a.ownedProject(userID, projectID); err != nil {
		return nil, err
	}
	return a.store.ListTasksByProject(projectID)
}

// ClientAssets lists assets across the client's projects, newest first.
func (a *App) ClientAssets(userID string) ([]domain.Asset, error) {
	client, ok, err := a.store.GetClientByUserID(userID)
	if err != nil || !ok {
		return nil, err
	}
	return a.store.ListAssetsByClient(client.ID)
}

// ProjectAssets lists assets for one owned project.
func (a *App) ProjectAssets(userID, projectID string) ([]domain.Asset, error) {
	if _, err := a.ownedProject(userID, projectID); err != nil {
		return nil, err
	}
	return a.store.ListAssetsByProject(projectID)
}

// UpdateTaskStatus toggles a task's completed flag after checking that the
// task's project belongs to the session's client.
func (a *App) UpdateTaskStatus(userID, taskID string, completed bool) (domain.Task, error) {
	task, ok, err := a.store.GetTask(taskID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("fetch task: %w", err)
	}
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	if _, err := a.ownedProject(userID, task.ProjectID); err != nil {
		return domain.Task{}, err
	}
	updated, err := a.store.SetTaskCompleted(taskID, completed)
	if err != nil {
		if err == store.ErrNotFound {
			return domain.Task{}, ErrNotFound
		}
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	return updated, nil
}

func (a *App) ownedProject(userID, projectID string) (domain.Project, error) {
	client, ok, err := a.store.GetClientByUserID(userID)
	if err != nil {
		return domain.Project{}, fmt.Errorf("fetch client: %w", err)
	}
	if !ok {
		return domain.Project{}, ErrNotFound
	}
	project, found, err := a.store.GetProject(projectID)
	if err != nil {
		return domain.Project{}, fmt.Errorf("fetch project: %w", err)
	}
	if !found || project.ClientID != client.ID {
		return domain.Project{}, ErrNotFound
	}
	return project, nil
}
