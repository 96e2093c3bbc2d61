package services

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"caseflow/internal/db/repositories"
	"caseflow/internal/workflow"
	"caseflow/pkg/models"
)

// PlaybookService manages tenant playbook templates: alternate step catalogs
// that replace the built-in succession catalog at plan generation time.
type PlaybookService struct {
	repos *repositories.Repositories
	fs    afero.Fs
}

func NewPlaybookService(repos *repositories.Repositories) *PlaybookService {
	return &PlaybookService{repos: repos, fs: afero.NewOsFs()}
}

// NewPlaybookServiceWithFs allows injecting a filesystem for tests.
func NewPlaybookServiceWithFs(repos *repositories.Repositories, fs afero.Fs) *PlaybookService {
	return &PlaybookService{repos: repos, fs: fs}
}

// LintFile parses and validates a playbook template file without touching the
// database.
func (s *PlaybookService) LintFile(path string) (*workflow.Catalog, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playbook file: %w", err)
	}
	return workflow.ParseCatalog(data)
}

// ImportFile validates a playbook template file and stores it as a new
// playbook version for the tenant. The new version is not activated
// automatically.
func (s *PlaybookService) ImportFile(ctx context.Context, tenantID int64, path string, createdBy int64) (*models.Playbook, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playbook file: %w", err)
	}

	catalog, err := workflow.ParseCatalog(data)
	if err != nil {
		return nil, err
	}

	return s.repos.Playbooks.Create(ctx, tenantID, catalog.Name, string(data), createdBy)
}

// Activate makes the given playbook the tenant's active template.
func (s *PlaybookService) Activate(ctx context.Context, tenantID, playbookID int64) error {
	playbook, err := s.repos.Playbooks.GetByID(ctx, playbookID)
	if err != nil {
		return err
	}

	// Refuse to activate a template that no longer validates.
	if _, err := workflow.ParseCatalog([]byte(playbook.Template)); err != nil {
		return err
	}

	return s.repos.Playbooks.SetActive(ctx, tenantID, playbookID)
}

// List returns all playbook versions for a tenant.
func (s *PlaybookService) List(ctx context.Context, tenantID int64) ([]*models.Playbook, error) {
	return s.repos.Playbooks.ListByTenant(ctx, tenantID)
}
