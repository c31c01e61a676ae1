package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ylchen07/chefkit/internal/azure"
	"github.com/ylchen07/chefkit/internal/config"
	"github.com/ylchen07/chefkit/internal/hashicorp"
	"github.com/ylchen07/chefkit/internal/metrics"
	"github.com/ylchen07/chefkit/internal/output"
	"github.com/ylchen07/chefkit/internal/provider"
	"github.com/ylchen07/chefkit/pkg/chef"
	"github.com/ylchen07/chefkit/pkg/session"
)

// app is everything a command needs once connected to an instance
type app struct {
	cfg       *config.Config
	instance  *config.Instance
	logger    *zap.Logger
	resolver  *provider.Resolver
	collector *metrics.Collector
	chef      *chef.Chef
}

// loadConfig loads the application config
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return cfg.Build()
}

// providerConfigs maps reference schemes to their resolver settings
func providerConfigs(cfg *config.Config) map[string]*provider.Config {
	configs := make(map[string]*provider.Config)

	if hc := cfg.Providers.Hashicorp; hc != nil {
		configs[hashicorp.Scheme] = &provider.Config{
			Name: "hashicorp",
			Settings: map[string]any{
				"address":   hc.Address,
				"token":     hc.Token,
				"namespace": hc.Namespace,
			},
		}
	}

	if az := cfg.Providers.Azure; az != nil {
		configs[azure.Scheme] = &provider.Config{
			Name: "azure",
			Settings: map[string]any{
				"subscription_id": az.SubscriptionID,
				"resource_group":  az.ResourceGroup,
			},
		}
	}

	return configs
}

// connect loads the config, resolves the client key and authenticates
// against the selected instance
func connect(ctx context.Context, pageSize int) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	inst, err := cfg.ResolveInstance(instanceName)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger = logger.With(zap.String("instance", inst.Name))

	a := &app{
		cfg:       cfg,
		instance:  inst,
		logger:    logger,
		resolver:  provider.NewResolver(nil, providerConfigs(cfg)),
		collector: metrics.NewCollector(),
	}

	key, err := a.resolver.Resolve(ctx, inst.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve client key: %w", err)
	}

	sess, err := session.New(session.Config{
		UserID:      inst.ClientName,
		PrivateKey:  key,
		SignVersion: inst.SignVersion,
		ChefVersion: inst.ChefVersion,
		APIVersion:  inst.APIVersion,
		Timeout:     cfg.HTTP.Timeout,
		RetryMax:    cfg.HTTP.RetryMax,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if pageSize <= 0 {
		pageSize = cfg.Paging.PageSize
	}

	a.chef, err = chef.New(ctx, a.collector.InstrumentRequester(sess), inst.ServerURL, inst.Organization,
		chef.WithLogger(logger),
		chef.WithPageSize(pageSize),
		chef.WithFilterPageSize(cfg.Paging.FilterPageSize),
		chef.WithWorkers(cfg.Paging.Workers),
		chef.WithDiagnostics(a.observe),
	)
	if err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

// observe counts absorbed failures and tells the user about them
func (a *app) observe(d chef.Diagnostic) {
	a.collector.Observe(d)
	if d.Kind == chef.DiagPageDropped {
		fmt.Fprintf(os.Stderr, "Warning: search page at %d of index %s was skipped: %v\n", d.Start, d.Index, d.Err)
	}
}

// dataBagSecret resolves the instance's data bag secret, or returns nil
func (a *app) dataBagSecret(ctx context.Context) ([]byte, error) {
	if a.instance.DataBagSecret == "" {
		return nil, nil
	}
	secret, err := a.resolver.Resolve(ctx, a.instance.DataBagSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data bag secret: %w", err)
	}
	return secret, nil
}

// formatter returns the formatter chosen by --format or the config
func (a *app) formatter() (output.Formatter, error) {
	return formatterFor(a.cfg)
}

func formatterFor(cfg *config.Config) (output.Formatter, error) {
	format := formatType
	if format == "" && cfg != nil {
		format = cfg.Output.Format
	}
	return output.GetFormatter(output.Format(format))
}

func (a *app) close() {
	if showMetrics {
		if err := a.collector.Dump(os.Stderr); err != nil {
			a.logger.Warn("failed to write metrics", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
