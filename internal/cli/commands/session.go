package commands

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/conduit-lang/docmodel/internal/cli/ui"
	"github.com/conduit-lang/docmodel/internal/config"
	"github.com/conduit-lang/docmodel/internal/connect"
	"github.com/conduit-lang/docmodel/internal/fixtures"
	"github.com/conduit-lang/docmodel/internal/logging"
	"github.com/conduit-lang/docmodel/internal/odm/model"
	"github.com/conduit-lang/docmodel/internal/odm/schema"
)

// unknownClassError is returned for class names missing from the registry
type unknownClassError struct {
	name  string
	known []string
}

func (e *unknownClassError) Error() string {
	return fmt.Sprintf("unknown class %q", e.name)
}

func lookupClass(registry *schema.Registry, name string) (*schema.Description, error) {
	desc, ok := registry.Get(name)
	if !ok {
		return nil, &unknownClassError{name: name, known: registry.Names()}
	}
	return desc, nil
}

// session is the connected state of a data command
type session struct {
	cfg     *config.Config
	logger  *zap.Logger
	conn    *model.Connection
	metrics *prometheus.Registry
}

// openSession loads configuration, connects the configured store and binds
// the discriminator classes to their base collections
func openSession(ctx context.Context, opts *globalOptions) (*session, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	conn, err := connect.Open(ctx, cfg, connect.Options{
		Logger:     logger,
		Registry:   fixtures.Registry(),
		Registerer: reg,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Kind, err)
	}

	s := &session{cfg: cfg, logger: logger, conn: conn, metrics: reg}
	if err := s.bindDiscriminators(ctx); err != nil {
		s.close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *session) bindDiscriminators(ctx context.Context) error {
	bases := fixtures.Discriminators()
	names := make([]string, 0, len(bases))
	for name := range bases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		root, err := s.conn.ModelByName(ctx, name)
		if err != nil {
			return err
		}
		for _, child := range bases[name] {
			if _, err := root.Discriminator(ctx, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// model binds a class by name
func (s *session) model(ctx context.Context, name string) (*model.Model, error) {
	desc, err := lookupClass(s.conn.Registry(), name)
	if err != nil {
		return nil, err
	}
	return s.conn.Model(ctx, desc)
}

func (s *session) close(ctx context.Context) {
	if err := s.conn.Close(ctx); err != nil {
		s.logger.Warn("failed to close connection", zap.Error(err))
	}
	_ = s.logger.Sync()
}

// printMetrics writes the operation counters gathered during the session
func (s *session) printMetrics(w io.Writer) error {
	if !s.cfg.Metrics.Enabled {
		return nil
	}
	families, err := s.metrics.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	table := ui.NewTable(w, color.NoColor, "Model", "Operation", "Status", "Count")
	for _, family := range families {
		if family.GetName() != "docmodel_operations_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := make(map[string]string)
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			table.AddRow(labels["model"], labels["operation"], labels["status"],
				fmt.Sprintf("%.0f", m.GetCounter().GetValue()))
		}
	}
	if table.Len() > 0 {
		fmt.Fprintln(w)
		table.Render()
	}
	return nil
}
