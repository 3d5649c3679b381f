package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/pkg/config"
)

// cli carries state shared by every subcommand.
type cli struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	logger *zap.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out, errOut: errOut, logger: zap.NewNop()}
	config.SetDefaults(c.v)
	c.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "gradectl",
		Short: "Inspect and maintain the gradebook record store",
		Long: `gradectl computes weighted averages and pass rates from the gradebook database
or from a JSON/YAML file of grade records, and performs store maintenance.

Database settings come from the same environment variables as the API server and
can be overridden with flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.v.GetBool("verbose") {
				logger, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				c.logger = logger
			}
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.String("db-driver", "", "database driver (postgres|sqlite)")
	flags.String("sqlite-path", "", "sqlite database file")
	flags.StringP("output", "o", "json", "output format (json|yaml)")
	flags.BoolP("verbose", "v", false, "log to stderr")
	_ = c.v.BindPFlag("DB_DRIVER", flags.Lookup("db-driver"))
	_ = c.v.BindPFlag("DB_SQLITE_PATH", flags.Lookup("sqlite-path"))
	_ = c.v.BindPFlag("output", flags.Lookup("output"))
	_ = c.v.BindPFlag("verbose", flags.Lookup("verbose"))

	root.AddCommand(
		c.averagesCmd(),
		c.statsCmd(),
		c.importCmd(),
		c.migrateCmd(),
		c.tokenCmd(),
	)
	return root
}

func (c *cli) config() *config.Config {
	return config.FromViper(c.v)
}

// render writes v in the selected output format.
func (c *cli) render(v interface{}) error {
	switch strings.ToLower(c.v.GetString("output")) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(c.out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "json", "":
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", c.v.GetString("output"))
	}
}

func (c *cli) engine() (*grading.Engine, error) {
	cfg := c.config()
	calc, err := grading.NewCalculator(grading.Weights{
		Exam:     cfg.Grading.ExamWeight,
		Quiz:     cfg.Grading.QuizWeight,
		Homework: cfg.Grading.HomeworkWeight,
	})
	if err != nil {
		return nil, err
	}
	return grading.NewEngine(calc), nil
}

// loadRecordFile reads a JSON or YAML list of records. Malformed records are
// skipped and reported on stderr.
func (c *cli) loadRecordFile(path string) ([]models.GradeRecord, []models.RecordIssue, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var raw []grading.RawRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(payload, &raw)
	default:
		err = json.Unmarshal(payload, &raw)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", path, err)
	}

	records, issues := grading.Sanitize(raw)
	for _, issue := range issues {
		fmt.Fprintf(c.errOut, "skipped record %d: %s\n", issue.Index, issue.Reason)
		c.logger.Warn("record skipped", zap.Int("index", issue.Index), zap.String("reason", issue.Reason))
	}
	return records, issues, nil
}
