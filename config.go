package modelfactory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/absmach/modelfactory/pkg/blobstore"
	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/fold"
	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

const (
	defWorkers           = 4
	defTestShards        = 4
	defTrainBatchSize    = 64
	defTestBatchSize     = 32
	defEpochs            = 3
	defTestLoops         = 5
	defLearningRate      = 0.01
	defSchedulerFactor   = 0.3
	defSchedulerPatience = 5
	defStoppingPatience  = 5
	defMaxLen            = 512
	defHashDim           = 1024
)

// Config is the training configuration of one engine run. It is loaded
// once and never mutated afterwards.
type Config struct {
	Data       DataConfig       `toml:"data"       yaml:"data"       json:"data"`
	Training   TrainingConfig   `toml:"training"   yaml:"training"   json:"training"`
	Model      ModelConfig      `toml:"model"      yaml:"model"      json:"model"`
	Storage    StorageConfig    `toml:"storage"    yaml:"storage"    json:"storage"`
	Output     OutputConfig     `toml:"output"     yaml:"output"     json:"output"`
	Tournament TournamentConfig `toml:"tournament" yaml:"tournament" json:"tournament"`
}

type DataConfig struct {
	TrainPath   string    `toml:"train_path"   yaml:"train_path"   json:"train_path"`
	TestPath    string    `toml:"test_path"    yaml:"test_path"    json:"test_path"`
	ImagePath   string    `toml:"image_path"   yaml:"image_path"   json:"image_path"`
	TestShards  int       `toml:"test_shards"  yaml:"test_shards"  json:"test_shards"`
	ImageHeight int       `toml:"image_height" yaml:"image_height" json:"image_height"`
	ImageWidth  int       `toml:"image_width"  yaml:"image_width"  json:"image_width"`
	Mean        []float64 `toml:"mean"         yaml:"mean"         json:"mean"`
	Std         []float64 `toml:"std"          yaml:"std"          json:"std"`
	MaxLen      int       `toml:"max_len"      yaml:"max_len"      json:"max_len"`
	HashDim     int       `toml:"hash_dim"     yaml:"hash_dim"     json:"hash_dim"`
}

type TrainingConfig struct {
	TrainFolds            fold.Set   `toml:"train_folds"             yaml:"train_folds"             json:"train_folds"`
	ValFolds              fold.Set   `toml:"val_folds"               yaml:"val_folds"               json:"val_folds"`
	TestFolds             fold.Set   `toml:"test_folds"              yaml:"test_folds"              json:"test_folds"`
	TrainBatchSize        int        `toml:"train_batch_size"        yaml:"train_batch_size"        json:"train_batch_size"`
	TestBatchSize         int        `toml:"test_batch_size"         yaml:"test_batch_size"         json:"test_batch_size"`
	Epochs                int        `toml:"epochs"                  yaml:"epochs"                  json:"epochs"`
	TestLoops             int        `toml:"test_loops"              yaml:"test_loops"              json:"test_loops"`
	InferenceFolds        fold.Range `toml:"inference_folds"         yaml:"inference_folds"         json:"inference_folds"`
	LearningRate          float64    `toml:"learning_rate"           yaml:"learning_rate"           json:"learning_rate"`
	SchedulerFactor       float64    `toml:"scheduler_factor"        yaml:"scheduler_factor"        json:"scheduler_factor"`
	SchedulerPatience     int        `toml:"scheduler_patience"      yaml:"scheduler_patience"      json:"scheduler_patience"`
	EarlyStoppingPatience int        `toml:"early_stopping_patience" yaml:"early_stopping_patience" json:"early_stopping_patience"`
	Workers               int        `toml:"workers"                 yaml:"workers"                 json:"workers"`
	Seed                  int64      `toml:"seed"                    yaml:"seed"                    json:"seed"`
	DeviceIDs             []int      `toml:"device_ids"              yaml:"device_ids"              json:"device_ids"`
}

type ModelConfig struct {
	Name string `toml:"name"      yaml:"name"      json:"name"`
	Dir  string `toml:"model_dir" yaml:"model_dir" json:"model_dir"`
}

type StorageConfig struct {
	Kind        string                `toml:"kind"         yaml:"kind"         json:"kind"`
	Endpoint    string                `toml:"endpoint"     yaml:"endpoint"     json:"endpoint"`
	Secure      bool                  `toml:"secure"       yaml:"secure"       json:"secure"`
	SaveRemote  bool                  `toml:"save_remote"  yaml:"save_remote"  json:"save_remote"`
	LoadRemote  bool                  `toml:"load_remote"  yaml:"load_remote"  json:"load_remote"`
	Credentials blobstore.Credentials `toml:"credentials"  yaml:"credentials"  json:"credentials"`
}

type OutputConfig struct {
	Dir   string `toml:"dir"    yaml:"dir"    json:"dir"`
	ToCSV bool   `toml:"to_csv" yaml:"to_csv" json:"to_csv"`
}

type TournamentConfig struct {
	Names          []string `toml:"names"            yaml:"names"            json:"names"`
	LocalData      string   `toml:"local_data"       yaml:"local_data"       json:"local_data"`
	GetCurrentData bool     `toml:"get_current_data" yaml:"get_current_data" json:"get_current_data"`
	DataURL        string   `toml:"data_url"         yaml:"data_url"         json:"data_url"`
}

// LoadConfig reads a TOML or YAML configuration file, picking the format
// from the file extension.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: error reading config file: %w", pkgerrors.ErrConfiguration, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: error parsing config file: %w", pkgerrors.ErrConfiguration, err)
		}
	default:
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return Config{}, fmt.Errorf("%w: error parsing config file: %w", pkgerrors.ErrConfiguration, err)
		}
		if err := tree.Unmarshal(&cfg); err != nil {
			return Config{}, fmt.Errorf("%w: error unmarshaling config: %w", pkgerrors.ErrConfiguration, err)
		}
	}

	return cfg.WithDefaults(), nil
}

// WithDefaults returns a copy of the configuration with unset numeric
// parameters filled in.
func (c Config) WithDefaults() Config {
	t := &c.Training
	if t.TrainBatchSize <= 0 {
		t.TrainBatchSize = defTrainBatchSize
	}
	if t.TestBatchSize <= 0 {
		t.TestBatchSize = defTestBatchSize
	}
	if t.Epochs <= 0 {
		t.Epochs = defEpochs
	}
	if t.TestLoops <= 0 {
		t.TestLoops = defTestLoops
	}
	if t.InferenceFolds == (fold.Range{}) {
		t.InferenceFolds = fold.Range{Start: 1, End: t.TestLoops}
	}
	if t.LearningRate <= 0 {
		t.LearningRate = defLearningRate
	}
	if t.SchedulerFactor <= 0 || t.SchedulerFactor >= 1 {
		t.SchedulerFactor = defSchedulerFactor
	}
	if t.SchedulerPatience <= 0 {
		t.SchedulerPatience = defSchedulerPatience
	}
	if t.EarlyStoppingPatience <= 0 {
		t.EarlyStoppingPatience = defStoppingPatience
	}
	if t.Workers <= 0 {
		t.Workers = defWorkers
	}

	d := &c.Data
	if d.TestShards <= 0 {
		d.TestShards = defTestShards
	}
	if d.MaxLen <= 0 {
		d.MaxLen = defMaxLen
	}
	if d.HashDim <= 0 {
		d.HashDim = defHashDim
	}

	return c
}

// WithSubmission returns a copy of the configuration that writes prediction
// files when submit is set.
func (c Config) WithSubmission(submit bool) Config {
	if submit {
		c.Output.ToCSV = true
	}

	return c
}

// ValidateTraining checks the parameters every training run needs.
func (c Config) ValidateTraining() error {
	if len(c.Training.TrainFolds) == 0 {
		return MissingParam("training.train_folds")
	}
	if len(c.Training.ValFolds) == 0 {
		return MissingParam("training.val_folds")
	}
	if common := c.Training.TrainFolds.Overlaps(c.Training.ValFolds); len(common) > 0 {
		return fmt.Errorf("%w: train folds %s and validation folds %s overlap on %v",
			pkgerrors.ErrConfiguration, c.Training.TrainFolds, c.Training.ValFolds, common)
	}
	if c.Model.Name == "" {
		return MissingParam("model.name")
	}
	if c.Model.Dir == "" {
		return MissingParam("model.model_dir")
	}

	return c.validateStorage()
}

// ValidateInference checks the parameters every inference run needs.
func (c Config) ValidateInference() error {
	if c.Model.Name == "" {
		return MissingParam("model.name")
	}
	if c.Model.Dir == "" {
		return MissingParam("model.model_dir")
	}
	if len(c.Training.InferenceFolds.Indices()) == 0 {
		return fmt.Errorf("%w: inference fold range %s is empty", pkgerrors.ErrConfiguration, c.Training.InferenceFolds)
	}
	if c.Output.ToCSV && c.Output.Dir == "" {
		return MissingParam("output.dir")
	}

	return c.validateStorage()
}

// ValidateTournament checks the parameters of a tabular tournament run.
func (c Config) ValidateTournament() error {
	if len(c.Tournament.Names) == 0 {
		return MissingParam("tournament.names")
	}
	if c.Tournament.GetCurrentData && c.Tournament.DataURL == "" {
		return MissingParam("tournament.data_url")
	}
	if !c.Tournament.GetCurrentData && c.Tournament.LocalData == "" {
		return MissingParam("tournament.local_data")
	}
	if c.Model.Name == "" {
		return MissingParam("model.name")
	}
	if c.Model.Dir == "" {
		return MissingParam("model.model_dir")
	}
	if c.Output.ToCSV && c.Output.Dir == "" {
		return MissingParam("output.dir")
	}

	return c.validateStorage()
}

func (c Config) validateStorage() error {
	if (c.Storage.SaveRemote || c.Storage.LoadRemote) && c.Storage.Kind == "" {
		return MissingParam("storage.kind")
	}

	return nil
}

// MissingParam reports a required parameter absent from the configuration.
func MissingParam(name string) error {
	return fmt.Errorf("%w: missing required parameter %q", pkgerrors.ErrConfiguration, name)
}
