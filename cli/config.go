package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/engine"
	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/fold"
	"github.com/absmach/modelfactory/pkg/models"
	"github.com/charmbracelet/huh"
	"github.com/pelletier/go-toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const filePermission = 0o644

var ErrInvalidFolds = errors.New("folds must be comma separated integers")

// Answers are the values collected by the interactive configuration form.
type Answers struct {
	Competition string
	Model       string
	ModelDir    string
	DataPath    string
	TestPath    string
	Epochs      string
	TrainFolds  string
	ValFolds    string
	OutputDir   string
	ToCSV       bool
}

// Config turns the answers into a training configuration.
func (a Answers) Config() (modelfactory.Config, error) {
	epochs, err := strconv.Atoi(strings.TrimSpace(a.Epochs))
	if err != nil || epochs <= 0 {
		return modelfactory.Config{}, fmt.Errorf("%w: epochs must be a positive integer", pkgerrors.ErrConfiguration)
	}
	cfg := modelfactory.Config{
		Data:   modelfactory.DataConfig{TrainPath: a.DataPath, TestPath: a.TestPath},
		Model:  modelfactory.ModelConfig{Name: a.Model, Dir: a.ModelDir},
		Output: modelfactory.OutputConfig{Dir: a.OutputDir, ToCSV: a.ToCSV},
	}
	cfg.Training.Epochs = epochs

	if a.Competition == engine.NumeraiName {
		cfg.Tournament.Names = []string{"kazutsugi"}
		cfg.Tournament.LocalData = a.DataPath
		cfg.Data.TrainPath = ""

		return cfg.WithDefaults(), nil
	}
	if cfg.Training.TrainFolds, err = parseFolds(a.TrainFolds); err != nil {
		return modelfactory.Config{}, err
	}
	if cfg.Training.ValFolds, err = parseFolds(a.ValFolds); err != nil {
		return modelfactory.Config{}, err
	}
	if a.Competition == engine.BengaliName {
		cfg.Data.ImageHeight = 137
		cfg.Data.ImageWidth = 236
		cfg.Data.Mean = []float64{0.485, 0.456, 0.406}
		cfg.Data.Std = []float64{0.229, 0.224, 0.225}
	}

	return cfg.WithDefaults(), nil
}

func parseFolds(s string) (fold.Set, error) {
	var set fold.Set
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFolds, s)
		}
		set = append(set, f)
	}

	return set, nil
}

// WriteConfig encodes cfg as YAML or TOML depending on the extension of
// path.
func WriteConfig(path string, cfg modelfactory.Config) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = toml.Marshal(cfg)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, filePermission)
}

func configForm(a *Answers) *huh.Form {
	validateFolds := func(s string) error {
		_, err := parseFolds(s)

		return err
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Competition").
				Options(huh.NewOptions(engine.DefaultFactory().Names()...)...).
				Value(&a.Competition),
			huh.NewSelect[string]().
				Title("Model").
				Options(huh.NewOptions(models.DefaultRegistry().Names()...)...).
				Value(&a.Model),
			huh.NewInput().Title("Checkpoint directory").Value(&a.ModelDir),
			huh.NewInput().Title("Training data").Description("CSV file, or the round zip for numerai").Value(&a.DataPath),
			huh.NewInput().Title("Test data").Value(&a.TestPath),
		),
		huh.NewGroup(
			huh.NewInput().Title("Epochs").Value(&a.Epochs).Validate(func(s string) error {
				if n, err := strconv.Atoi(s); err != nil || n <= 0 {
					return errors.New("epochs must be a positive integer")
				}

				return nil
			}),
			huh.NewInput().Title("Training folds").Placeholder("0,1,2,3").Value(&a.TrainFolds).Validate(validateFolds),
			huh.NewInput().Title("Validation folds").Placeholder("4").Value(&a.ValFolds).Validate(validateFolds),
			huh.NewInput().Title("Output directory").Value(&a.OutputDir),
			huh.NewConfirm().Title("Write submission CSV?").Value(&a.ToCSV),
		),
	)
}

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config [init]",
		Short: "Training configuration",
		Long:  `Create training configuration files.`,
	}

	initCmd := &cobra.Command{
		Use:   "init <config_file>",
		Short: "Create a configuration interactively",
		Long:  `Create a TOML or YAML training configuration by answering a short form.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			a := Answers{
				Model:      models.LinearName,
				ModelDir:   "models",
				Epochs:     "3",
				TrainFolds: "0,1,2,3",
				ValFolds:   "4",
				OutputDir:  "submissions",
				ToCSV:      true,
			}
			if err := configForm(&a).Run(); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			cfg, err := a.Config()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			if err := WriteConfig(args[0], cfg); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, "Successfully created "+args[0])
		},
	}

	cmd.AddCommand(initCmd)

	return cmd
}
