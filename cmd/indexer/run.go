package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/synnergy-labs/chain-indexer/internal/api"
	"github.com/synnergy-labs/chain-indexer/internal/config"
	"github.com/synnergy-labs/chain-indexer/internal/extractor"
	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/rpc"
	"github.com/synnergy-labs/chain-indexer/internal/store"
	"github.com/synnergy-labs/chain-indexer/internal/store/postgres"
	"github.com/synnergy-labs/chain-indexer/internal/substreams"
	"github.com/synnergy-labs/chain-indexer/internal/telemetry"
)

func runCmd() *cobra.Command {
	var extractorFlags []string
	var extractorsFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "start the extractor runtimes and the Query Surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := parseExtractorFlags(extractorFlags)
			if err != nil {
				return err
			}
			if extractorsFile != "" {
				fromFile, err := config.LoadExtractors(extractorsFile)
				if err != nil {
					return err
				}
				specs = append(specs, fromFile...)
			}
			return run(cmd.Context(), specs)
		},
	}
	cmd.Flags().StringArrayVar(&extractorFlags, "extractor", nil,
		"name:chain:module:kind, repeatable; kind is contract or entity")
	cmd.Flags().StringVar(&extractorsFile, "extractors-file", "",
		"path to a YAML file listing extractor feeds, merged with --extractor")
	return cmd
}

func run(ctx context.Context, specs []config.Extractor) error {
	cfg, err := config.Load(envPath)
	if err != nil {
		return err
	}

	log := telemetry.NewLogger(cfg.LogLevel)
	zapLog, err := telemetry.InitGlobalZap()
	if err != nil {
		return err
	}

	metrics := telemetry.New(log)
	metricsSrv := metrics.Serve(cfg.MetricsAddr)

	st, err := postgres.New(ctx, postgres.Config{DatabaseURL: cfg.DatabaseURL}, zapLog)
	if err != nil {
		return err
	}
	defer st.Close()

	tokens, err := rpc.NewTokenPreprocessor(cfg.RPCURL, cfg.TokenCacheSize)
	if err != nil {
		log.WithError(err).Warn("token preprocessor unavailable, metadata fetches disabled")
	}

	conn, err := dialSubstreams(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, spec := range specs {
		identity := models.ExtractorIdentity{Name: spec.Name, Chain: models.Chain(spec.Chain)}
		client := substreams.NewClient(conn, spec.Module)

		var decoder extractor.Decoder
		switch spec.Kind {
		case "contract":
			decoder = extractor.ContractChangesDecoder(identity.Chain)
		case "entity":
			decoder = extractor.EntityChangesDecoder(identity.Chain)
		}

		rt := extractor.New(identity, st, client, decoder).WithMetrics(metrics)

		wg.Add(1)
		go func(identity models.ExtractorIdentity, rt *extractor.Runtime) {
			defer wg.Done()
			if err := rt.Run(runCtx); err != nil && runCtx.Err() == nil {
				log.WithError(err).WithField("extractor", identity.String()).Error("extractor stopped")
			}
		}(identity, rt)

		if tokens != nil {
			wg.Add(1)
			go func(identity models.ExtractorIdentity, rt *extractor.Runtime) {
				defer wg.Done()
				watchNewTokens(runCtx, log, identity, rt, st, tokens)
			}(identity, rt)
		}
	}

	srv := api.NewServer(st)
	router := api.NewRouter(srv, log)
	apiSrv := &http.Server{Addr: cfg.APIAddr, Handler: router}
	go func() {
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("api server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ctx.Done():
	case <-sigCh:
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metrics.Shutdown(shutdownCtx, metricsSrv)
	wg.Wait()
	return nil
}

// watchNewTokens subscribes to rt's emitted changes and resolves ERC-20
// metadata for any token address a newly observed protocol component
// references, persisting it once so later queries don't hit the RPC node.
func watchNewTokens(ctx context.Context, log *logrus.Logger, identity models.ExtractorIdentity, rt *extractor.Runtime, st store.VersionedStore, pre *rpc.TokenPreprocessor) {
	handle := rt.Handle()
	ch, err := handle.Subscribe()
	if err != nil {
		log.WithError(err).Error("subscribe for token discovery failed")
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case changes, ok := <-ch:
			if !ok {
				return
			}
			addrs := newTokenAddresses(changes)
			if len(addrs) == 0 {
				continue
			}
			found := pre.FetchTokens(ctx, identity.Chain, addrs)
			if err := st.AddTokens(ctx, found); err != nil {
				log.WithError(err).Warn("persist discovered tokens failed")
			}
		}
	}
}

func newTokenAddresses(changes models.BlockChanges) []models.Address {
	seen := make(map[models.Address]struct{})
	var addrs []models.Address
	for _, c := range changes.NewComponents {
		for _, t := range c.Tokens {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			addrs = append(addrs, t)
		}
	}
	return addrs
}

func dialSubstreams(cfg *config.Config) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.SubstreamsAPIToken != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(tokenCredentials{token: cfg.SubstreamsAPIToken}))
	}
	return grpc.NewClient(cfg.SubstreamsEndpoint, opts...)
}

// tokenCredentials attaches a bearer token to every substreams RPC.
type tokenCredentials struct {
	token string
}

func (t tokenCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + t.token}, nil
}

func (t tokenCredentials) RequireTransportSecurity() bool { return false }

var _ credentials.PerRPCCredentials = tokenCredentials{}
