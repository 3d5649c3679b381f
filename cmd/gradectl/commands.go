package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/internal/repository"
	"github.com/noah-isme/gradebook-api/internal/service"
	"github.com/noah-isme/gradebook-api/internal/validation"
	"github.com/noah-isme/gradebook-api/pkg/database"
)

// loadRecords reads records from file when given, else from the database. The
// filter scopes both sources alike.
func (c *cli) loadRecords(ctx context.Context, file string, filter models.GradeRecordFilter) ([]models.GradeRecord, error) {
	if file != "" {
		records, _, err := c.loadRecordFile(file)
		if err != nil {
			return nil, err
		}
		scoped := records[:0]
		for _, r := range records {
			if filter.Matches(r) {
				scoped = append(scoped, r)
			}
		}
		return scoped, nil
	}
	db, err := database.Open(c.config().Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return repository.NewGradeRepository(db).List(ctx, filter)
}

func optionalID(cmd *cobra.Command, name string) *int64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetInt64(name)
	return &v
}

func (c *cli) averagesCmd() *cobra.Command {
	var (
		by   string
		file string
	)
	cmd := &cobra.Command{
		Use:   "averages",
		Short: "Weighted average per learner or per class",
		Example: `  gradectl averages --by learner
  gradectl averages --by class --learner 7
  gradectl averages --file records.yaml -o yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := c.engine()
			if err != nil {
				return err
			}
			learner, class := optionalID(cmd, "learner"), optionalID(cmd, "class")
			records, err := c.loadRecords(cmd.Context(), file, models.GradeRecordFilter{LearnerID: learner, ClassID: class})
			if err != nil {
				return err
			}

			var results []models.AggregateResult
			switch {
			case by == "class" && learner != nil:
				results = engine.AggregateLearnerAcrossClasses(records, *learner)
			case by == "learner" && class != nil:
				results = engine.AggregateClassAcrossLearners(records, *class)
			case by == "class":
				results = engine.AggregateByClass(records)
			case by == "learner":
				results = engine.AggregateByLearner(records)
			default:
				return fmt.Errorf("--by must be learner or class, got %q", by)
			}
			return c.render(results)
		},
	}
	cmd.Flags().StringVar(&by, "by", "learner", "group by learner or class")
	cmd.Flags().Int64("learner", 0, "restrict to one learner")
	cmd.Flags().Int64("class", 0, "restrict to one class")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read records from a JSON or YAML file instead of the database")
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	var (
		file       string
		threshold  float64
		comparison string
		detail     bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Cohort pass rate, overall or for one class",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := c.engine()
			if err != nil {
				return err
			}
			cfg := c.config()
			class := optionalID(cmd, "class")

			if !cmd.Flags().Changed("threshold") {
				threshold = cfg.Grading.PassThreshold
			}
			if comparison == "" {
				comparison = cfg.Grading.OverallComparison
				if class != nil {
					comparison = cfg.Grading.ClassComparison
				}
			}
			cmp, err := grading.ParseComparison(comparison)
			if err != nil {
				return err
			}

			records, err := c.loadRecords(cmd.Context(), file, models.GradeRecordFilter{ClassID: class})
			if err != nil {
				return err
			}
			var report models.CohortReport
			if class != nil {
				report = engine.CohortPassRateByClass(records, *class, threshold, cmp)
			} else {
				report = engine.CohortPassRateOverall(records, threshold, cmp)
			}
			if !detail {
				report.Groups = nil
			}
			return c.render(report)
		},
	}
	cmd.Flags().Int64("class", 0, "report on one class")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "pass threshold (defaults to GRADE_PASS_THRESHOLD)")
	cmd.Flags().StringVar(&comparison, "comparison", "", "strict or inclusive")
	cmd.Flags().BoolVar(&detail, "detail", false, "include per-learner rows")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read records from a JSON or YAML file instead of the database")
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Validate records from a JSON or YAML file and store them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config()
			action, err := validation.ParseAction(cfg.Validation.Action)
			if err != nil {
				return err
			}
			schema, err := validation.NewRecordValidator(validation.Limits{ClassIDMin: cfg.Validation.ClassIDMin, ClassIDMax: cfg.Validation.ClassIDMax}, action, c.logger)
			if err != nil {
				return err
			}

			records, _, err := c.loadRecordFile(args[0])
			if err != nil {
				return err
			}
			accepted := make([]models.GradeRecord, 0, len(records))
			for i, record := range records {
				doc, err := json.Marshal(dto.CreateGradeRequest{LearnerID: &record.LearnerID, ClassID: &record.ClassID, Scores: &record.Scores})
				if err != nil {
					return err
				}
				result, err := schema.Validate(doc)
				if err != nil {
					return err
				}
				if !result.Accepted {
					fmt.Fprintf(c.errOut, "rejected record %d: %v\n", i, result.Violations)
					continue
				}
				accepted = append(accepted, record)
			}
			if dryRun {
				return c.render(map[string]int{"valid": len(accepted), "total": len(records)})
			}

			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			repo := repository.NewGradeRepository(db)
			if err := repo.Migrate(cmd.Context()); err != nil {
				return err
			}
			for i := range accepted {
				accepted[i].ID = ""
				if err := repo.Create(cmd.Context(), &accepted[i]); err != nil {
					return fmt.Errorf("store record for learner %d: %w", accepted[i].LearnerID, err)
				}
			}
			c.logger.Info("records imported", zap.Int("count", len(accepted)))
			return c.render(map[string]int{"imported": len(accepted), "total": len(records)})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create grade tables and indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := database.Open(c.config().Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			if err := repository.NewGradeRepository(db).Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "grade tables ready")
			return nil
		},
	}
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		name    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.config()
			auth := service.NewAuthService(validator.New(), c.logger, service.AuthConfig{
				AccessTokenSecret: cfg.JWT.Secret,
				AccessTokenExpiry: cfg.JWT.Expiration,
				Issuer:            cfg.JWT.Issuer,
			})
			token, err := auth.IssueToken(models.IssueTokenRequest{Subject: subject, Role: models.UserRole(role), Name: name, TTL: ttl})
			if err != nil {
				return err
			}
			return c.render(token)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "caller id; learner id for learners")
	cmd.Flags().StringVar(&role, "role", string(models.RoleTeacher), "ADMIN, TEACHER, LEARNER or VIEWER")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_EXPIRATION)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
