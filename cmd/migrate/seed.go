package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	appintegration "github.com/uniorder/backend/internal/application/integration"
	"github.com/uniorder/backend/internal/domain/integration"
	"github.com/uniorder/backend/internal/infrastructure/delivery"
	"github.com/uniorder/backend/internal/infrastructure/persistence"
	"github.com/uniorder/backend/internal/infrastructure/secrets"
)

// seedFile is the YAML document accepted by `migrate seed`:
//
//	integrations:
//	  - partner: jahez
//	    api_key: ${JAHEZ_API_KEY}
//	    webhook_secret: ${JAHEZ_WEBHOOK_SECRET}
//	    is_active: true
type seedFile struct {
	Integrations []seedIntegration `yaml:"integrations"`
}

type seedIntegration struct {
	Partner       string        `yaml:"partner"`
	APIKey        string        `yaml:"api_key"`
	APISecret     string        `yaml:"api_secret"`
	WebhookSecret string        `yaml:"webhook_secret"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	IsActive      *bool         `yaml:"is_active"`
	WebhookEvents []string      `yaml:"webhook_events"`
}

// parseSeed decodes a seed document, expanding ${VAR} references from the
// environment so secrets need not be committed
func parseSeed(r io.Reader) (*seedFile, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	seen := make(map[integration.PartnerCode]bool, len(seed.Integrations))
	for i, in := range seed.Integrations {
		code, err := integration.ParsePartnerCode(in.Partner)
		if err != nil {
			return nil, fmt.Errorf("integrations[%d]: %w", i, err)
		}
		if seen[code] {
			return nil, fmt.Errorf("integrations[%d]: partner %s listed twice", i, code)
		}
		seen[code] = true
	}
	return &seed, nil
}

func (in seedIntegration) configureInput() appintegration.ConfigureInput {
	return appintegration.ConfigureInput{
		APIKey:         in.APIKey,
		APISecret:      in.APISecret,
		WebhookSecret:  in.WebhookSecret,
		BaseURL:        in.BaseURL,
		TimeoutSeconds: int(in.Timeout / time.Second),
		MaxRetries:     in.MaxRetries,
		IsActive:       in.IsActive,
		WebhookEvents:  in.WebhookEvents,
	}
}

// integrationConfigurer is the part of the registry the seeder needs
type integrationConfigurer interface {
	Configure(ctx context.Context, partner integration.PartnerCode, in appintegration.ConfigureInput) (*integration.IntegrationRecord, error)
}

func applySeed(ctx context.Context, seed *seedFile, registry integrationConfigurer, log *zap.Logger) error {
	for _, in := range seed.Integrations {
		code, _ := integration.ParsePartnerCode(in.Partner)
		record, err := registry.Configure(ctx, code, in.configureInput())
		if err != nil {
			return fmt.Errorf("configure %s: %w", code, err)
		}
		log.Info("Integration seeded",
			zap.String("partner", string(code)),
			zap.Bool("active", record.IsActive),
			zap.String("webhook_url", record.WebhookURL),
		)
	}
	return nil
}

func (c *cli) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Configure partner integrations from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			seed, err := parseSeed(f)
			if err != nil {
				return err
			}

			db, err := persistence.NewDatabase(&c.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			sealer, err := secrets.New(c.cfg.Security.EncryptionKey)
			if err != nil {
				return err
			}

			registry := appintegration.NewRegistry(
				persistence.NewGormIntegrationRepository(db.DB),
				delivery.NewAdapters(),
				sealer,
				delivery.NewOutboundClient(delivery.WithLogger(c.log)),
				appintegration.WithLogger(c.log),
			)
			defer registry.Close()

			return applySeed(cmd.Context(), seed, registry, c.log)
		},
	}
}
