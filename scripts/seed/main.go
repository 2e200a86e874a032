package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/vminventory/vminventory/internal/app"
	"github.com/vminventory/vminventory/internal/machines"
	"github.com/vminventory/vminventory/internal/shared"
)

func main() {
	email := flag.String("admin-email", "", "bootstrap super admin email (defaults to BOOTSTRAP_ADMIN_EMAIL)")
	password := flag.String("admin-password", "", "bootstrap super admin password (defaults to BOOTSTRAP_ADMIN_PASSWORD)")
	company := flag.String("company", "", "bootstrap company name (defaults to BOOTSTRAP_COMPANY)")
	demoMachines := flag.Int("demo-machines", 0, "number of unassigned demo machines to create")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	api := app.NewAPI(app.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Repositories: store.Repositories,
		Auditor:      store.AuditSink,
	})

	admin := app.AdminFromConfig(cfg)
	if *email != "" {
		admin.Email = *email
	}
	if *password != "" {
		admin.Password = *password
	}
	if *company != "" {
		admin.Company = *company
	}

	fmt.Println("→ Seeding roles and bootstrap admin...")
	if err := api.Bootstrapper.Run(ctx, admin); err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	if *demoMachines > 0 {
		if admin.Email == "" {
			log.Fatal("demo machines need a bootstrap admin")
		}
		fmt.Printf("→ Seeding %d demo machines...\n", *demoMachines)
		if err := seedMachines(ctx, api, admin.Email, *demoMachines); err != nil {
			log.Fatalf("seed machines: %v", err)
		}
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedMachines(ctx context.Context, api *app.API, adminEmail string, count int) error {
	user, err := api.Users.FindByEmail(ctx, adminEmail)
	if err != nil {
		return err
	}
	ctx = shared.ContextWithPrincipal(ctx, user.Principal())
	sizes := []machines.CreateMachineRequest{
		{MemorySize: 2048, DiskSize: 40},
		{MemorySize: 4096, DiskSize: 80},
		{MemorySize: 8192, DiskSize: 160},
	}
	for i := 0; i < count; i++ {
		m, err := api.Machines.CreateMachine(ctx, sizes[i%len(sizes)])
		if err != nil {
			return err
		}
		fmt.Printf("  machine %d: %d MB / %d GB\n", m.ID, m.MemorySize, m.DiskSize)
	}
	return nil
}
