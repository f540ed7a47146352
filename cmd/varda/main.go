package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/iota-uz/varda/internal/server"
	"github.com/iota-uz/varda/modules"
	"github.com/iota-uz/varda/pkg/changefeed"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/configuration"
	"github.com/iota-uz/varda/pkg/eventbus"
)

func main() {
	root := &cobra.Command{
		Use:           "varda",
		Short:         "Early childhood education registry core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), projectCmd())

	if err := root.Execute(); err != nil {
		configuration.Use().Logger().WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func connect(ctx context.Context) (*pgxpool.Pool, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(dialCtx, configuration.Use().Database.ConnectionString())
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}
	return pool, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the change-feed relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configuration.Use()
			log := cfg.Logger()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			bus := eventbus.NewEventPublisher(log)
			svcs, err := modules.Load(cfg, bus, log)
			if err != nil {
				return errors.Wrap(err, "load modules")
			}

			srv := server.New(server.Options{
				Logger:        log,
				Configuration: cfg,
				Pool:          pool,
			})
			server.NewReportingController(svcs.Raportointi, log).
				Register(srv.Router(), server.CertificateAuth(svcs.Certificates))

			go changefeed.NewRelay(pool, bus, log, relayConsumer).Run(ctx)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(fmt.Sprintf(":%d", cfg.ServerPort))
			}()

			select {
			case err := <-errCh:
				return errors.Wrap(err, "http server")
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

const relayConsumer = "varda-server"

func projectCmd() *cobra.Command {
	var (
		organisaatioOID string
		jarjestajaOID   string
		tuottajaOID     string
	)
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Rebuild permission rows for an operator's units or a shared-custody pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if organisaatioOID == "" && (jarjestajaOID == "" || tuottajaOID == "") {
				return errors.New("pass --organisaatio, or both --jarjestaja and --tuottaja")
			}
			cfg := configuration.Use()
			log := cfg.Logger()

			pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			ctx := composables.WithPool(cmd.Context(), pool)

			svcs, err := modules.Load(cfg, eventbus.NewEventPublisher(log), log)
			if err != nil {
				return errors.Wrap(err, "load modules")
			}

			if organisaatioOID != "" {
				if err := reprojectOperator(ctx, svcs, organisaatioOID); err != nil {
					return err
				}
			}
			if jarjestajaOID != "" && tuottajaOID != "" {
				if err := reprojectAgreement(ctx, svcs, jarjestajaOID, tuottajaOID); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&organisaatioOID, "organisaatio", "", "operator OID whose units to reproject")
	cmd.Flags().StringVar(&jarjestajaOID, "jarjestaja", "", "arranging operator OID of the agreement")
	cmd.Flags().StringVar(&tuottajaOID, "tuottaja", "", "producing operator OID of the agreement")
	return cmd
}

func reprojectOperator(ctx context.Context, svcs *modules.Services, oid string) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		org, err := svcs.Organisaatiot.GetByOID(txCtx, oid)
		if err != nil {
			return err
		}
		units, err := svcs.Toimipaikat.ListByOrganisaatio(txCtx, org.ID())
		if err != nil {
			return err
		}
		for _, unit := range units {
			if err := svcs.Toimipaikat.Reproject(txCtx, unit.ID()); err != nil {
				return errors.Wrapf(err, "unit %d", unit.ID())
			}
		}
		return nil
	})
}

func reprojectAgreement(ctx context.Context, svcs *modules.Services, jarjestajaOID, tuottajaOID string) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		jarjestaja, err := svcs.Organisaatiot.GetByOID(txCtx, jarjestajaOID)
		if err != nil {
			return err
		}
		tuottaja, err := svcs.Organisaatiot.GetByOID(txCtx, tuottajaOID)
		if err != nil {
			return err
		}
		return svcs.Projections.ReprojectAgreement(txCtx, jarjestaja.ID(), tuottaja.ID())
	})
}
