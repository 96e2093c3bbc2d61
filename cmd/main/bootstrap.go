package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"caseflow/internal/auth"
	"caseflow/internal/db"
	"caseflow/internal/db/repositories"
)

var (
	bootstrapTenantName string
	bootstrapTenantSlug string
	bootstrapAdminName  string
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create a tenant and its admin user, printing the admin API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		if err := database.Migrate(); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		ctx := context.Background()
		repos := repositories.New(database)

		tenant, err := repos.Tenants.Create(ctx, bootstrapTenantName, bootstrapTenantSlug)
		if err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}

		apiKey, err := auth.GenerateAPIKey()
		if err != nil {
			return err
		}

		admin, err := repos.Users.Create(ctx, tenant.ID, bootstrapAdminName, true, &apiKey)
		if err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		fmt.Printf("Tenant %q created (id %d)\n", tenant.Name, tenant.ID)
		fmt.Printf("Admin user %q created (id %d)\n", admin.Username, admin.ID)
		fmt.Printf("API key: %s\n", apiKey)
		return nil
	},
}

func init() {
	bootstrapCmd.Flags().StringVar(&bootstrapTenantName, "tenant", "Default Agency", "tenant display name")
	bootstrapCmd.Flags().StringVar(&bootstrapTenantSlug, "slug", "default", "tenant slug")
	bootstrapCmd.Flags().StringVar(&bootstrapAdminName, "admin", "admin", "admin username")
}
