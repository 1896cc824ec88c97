package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/pipedesk/internal/scoring"
	"github.com/MikeSquared-Agency/pipedesk/internal/settings"
	"github.com/MikeSquared-Agency/pipedesk/internal/sla"
	"github.com/MikeSquared-Agency/pipedesk/internal/store"
	"github.com/MikeSquared-Agency/pipedesk/internal/transition"
)

// RulesFile is the YAML layout shared by "seed" and "eval". The priority
// config uses the same keys as the stored settings JSON.
type RulesFile struct {
	Stages          []store.Stage     `yaml:"stages"`
	SLAPolicies     []sla.Policy      `yaml:"sla_policies"`
	TransitionRules []transition.Rule `yaml:"transition_rules"`
	PriorityConfig  map[string]any    `yaml:"priority_config"`
}

func LoadRulesFile(path string) (*RulesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var f RulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	return &f, nil
}

// Priority returns the file's priority config, or the defaults when the file
// has none.
func (f *RulesFile) Priority() (scoring.PriorityConfig, []string) {
	if f.PriorityConfig == nil {
		return scoring.DefaultPriorityConfig(), nil
	}
	return scoring.ParseConfigReport(f.PriorityConfig)
}

// Validate returns every problem found in the file.
func (f *RulesFile) Validate() []string {
	var errs []string

	known := make(map[string]bool, len(f.Stages))
	for i, s := range f.Stages {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("stage %d: id is required", i))
			continue
		}
		if known[s.ID] {
			errs = append(errs, fmt.Sprintf("stage %d: duplicate id %s", i, s.ID))
		}
		known[s.ID] = true
	}
	unknown := func(id string) bool { return len(known) > 0 && id != "" && !known[id] }

	for i, p := range f.SLAPolicies {
		for _, e := range sla.ValidatePolicy(p) {
			errs = append(errs, fmt.Sprintf("sla policy %d: %s", i, e))
		}
		if unknown(p.StageID) {
			errs = append(errs, fmt.Sprintf("sla policy %d: unknown stage %s", i, p.StageID))
		}
	}

	errs = append(errs, transition.ValidateRules(f.TransitionRules)...)
	for i, r := range f.TransitionRules {
		for _, id := range []string{r.FromStage, r.ToStage} {
			if unknown(id) {
				errs = append(errs, fmt.Sprintf("rule %d: unknown stage %s", i, id))
			}
		}
	}

	if f.PriorityConfig != nil {
		cfg, _ := f.Priority()
		for _, e := range scoring.ValidateConfig(cfg).Errors {
			errs = append(errs, "priority config: "+e)
		}
	}
	return errs
}

// Apply upserts everything in the file. It does not remove rows that are
// absent from the file.
func (f *RulesFile) Apply(ctx context.Context, s store.Store, loader *settings.Loader, updatedBy string) error {
	for i := range f.Stages {
		stage := f.Stages[i]
		if stage.Name == "" {
			stage.Name = stage.ID
		}
		if err := s.UpsertStage(ctx, &stage); err != nil {
			return err
		}
	}
	for _, p := range f.SLAPolicies {
		if err := s.UpsertSLAPolicy(ctx, p); err != nil {
			return err
		}
	}
	for _, r := range f.TransitionRules {
		if err := s.UpsertTransitionRule(ctx, r); err != nil {
			return err
		}
	}
	if f.PriorityConfig != nil {
		cfg, _ := f.Priority()
		res, err := loader.SavePriorityConfig(ctx, cfg, updatedBy)
		if err != nil {
			return err
		}
		if !res.Valid {
			return fmt.Errorf("priority config invalid: %v", res.Errors)
		}
	}
	return nil
}

func newSeedCmd(configPath *string) *cobra.Command {
	var file string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load stages, SLA policies, transition rules and priority config from YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := LoadRulesFile(file)
			if err != nil {
				return err
			}
			if errs := f.Validate(); len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintln(cmd.ErrOrStderr(), e)
				}
				return fmt.Errorf("%s: %d problems", file, len(errs))
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d stages, %d sla policies, %d transition rules\n",
					file, len(f.Stages), len(f.SLAPolicies), len(f.TransitionRules))
				return nil
			}

			cfg, logger, err := loadConfig(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := requireDatabase(cfg); err != nil {
				return err
			}
			db, err := store.NewPostgresStore(cmd.Context(), cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}

			loader := settings.NewLoader(db, nil, 0, logger)
			if err := f.Apply(cmd.Context(), db, loader, "seed"); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d stages, %d sla policies, %d transition rules\n",
				len(f.Stages), len(f.SLAPolicies), len(f.TransitionRules))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "rules YAML file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
