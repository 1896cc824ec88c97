package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/pipedesk/internal/scoring"
	"github.com/MikeSquared-Agency/pipedesk/internal/sla"
	"github.com/MikeSquared-Agency/pipedesk/internal/transition"
)

// newEvalCmd evaluates the rules offline against a rules file, without a
// database.
func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate priority, SLA and transition rules offline",
	}
	cmd.AddCommand(
		newEvalScoreCmd(),
		newEvalSLACmd(),
		newEvalTransitionCmd(),
		newEvalValidateCmd(),
	)
	return cmd
}

func newEvalScoreCmd() *cobra.Command {
	var rulesPath string
	var days float64
	var meeting bool

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a lead from its signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := scoring.DefaultPriorityConfig()
			if rulesPath != "" {
				f, err := LoadRulesFile(rulesPath)
				if err != nil {
					return err
				}
				cfg, _ = f.Priority()
			}

			signals := scoring.Signals{HasUpcomingMeeting: meeting}
			if cmd.Flags().Changed("days") {
				signals.DaysSinceLastActivity = &days
			}
			res := scoring.ComputeScore(signals, cfg)
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"score":       res.Score,
				"bucket":      res.Bucket,
				"description": cfg.Descriptions.For(res.Bucket),
			})
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "rules YAML file (defaults when empty)")
	cmd.Flags().Float64Var(&days, "days", 0, "days since last activity (omit for no activity)")
	cmd.Flags().BoolVar(&meeting, "meeting", false, "lead has an upcoming meeting")
	return cmd
}

func newEvalSLACmd() *cobra.Command {
	var rulesPath, stage, entered, now string

	cmd := &cobra.Command{
		Use:   "sla",
		Short: "Evaluate the SLA status of a stage entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := LoadRulesFile(rulesPath)
			if err != nil {
				return err
			}
			enteredAt, err := time.Parse(time.RFC3339, entered)
			if err != nil {
				return fmt.Errorf("invalid --entered: %w", err)
			}
			at := time.Now()
			if now != "" {
				if at, err = time.Parse(time.RFC3339, now); err != nil {
					return fmt.Errorf("invalid --now: %w", err)
				}
			}

			set := sla.NewPolicySet(f.SLAPolicies)
			res := sla.EvaluateItem(sla.Item{ID: stage, StageID: stage, StageEnteredAt: enteredAt}, at, set.For(stage))
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "rules YAML file")
	cmd.Flags().StringVar(&stage, "stage", "", "stage ID")
	cmd.Flags().StringVar(&entered, "entered", "", "time the stage was entered (RFC3339)")
	cmd.Flags().StringVar(&now, "now", "", "evaluation time (RFC3339, default now)")
	_ = cmd.MarkFlagRequired("rules")
	_ = cmd.MarkFlagRequired("stage")
	_ = cmd.MarkFlagRequired("entered")
	return cmd
}

func newEvalTransitionCmd() *cobra.Command {
	var rulesPath, from, to string

	cmd := &cobra.Command{
		Use:   "transition",
		Short: "Check whether a stage transition is allowed",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := LoadRulesFile(rulesPath)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"from":    from,
				"to":      to,
				"allowed": transition.IsAllowed(from, to, f.TransitionRules),
			})
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "rules YAML file")
	cmd.Flags().StringVar(&from, "from", "", "current stage")
	cmd.Flags().StringVar(&to, "to", "", "target stage")
	_ = cmd.MarkFlagRequired("rules")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newEvalValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a priority config file (JSON or YAML)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, defaulted, err := loadPriorityFile(configPath)
			if err != nil {
				return err
			}
			res := scoring.ValidateConfig(cfg)
			if defaulted == nil {
				defaulted = []string{}
			}
			if err := printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"valid":     res.Valid,
				"errors":    res.Errors,
				"defaulted": defaulted,
			}); err != nil {
				return err
			}
			if !res.Valid {
				return fmt.Errorf("%s: %d validation errors", configPath, len(res.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "priority-config", "", "priority config file")
	_ = cmd.MarkFlagRequired("priority-config")
	return cmd
}

// loadPriorityFile reads a bare priority config. YAML input uses the same
// keys as the settings JSON.
func loadPriorityFile(path string) (scoring.PriorityConfig, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scoring.PriorityConfig{}, nil, fmt.Errorf("read priority config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if !json.Valid(data) {
			return scoring.PriorityConfig{}, nil, fmt.Errorf("%s is not valid JSON", path)
		}
		cfg, defaulted := scoring.ParseConfigJSON(data)
		return cfg, defaulted, nil
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return scoring.PriorityConfig{}, nil, fmt.Errorf("parse priority config: %w", err)
	}
	cfg, defaulted := scoring.ParseConfigReport(raw)
	return cfg, defaulted, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
