// Package checkpoint names, encodes and stores model state dicts.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/models"
	"github.com/dustin/go-humanize"
	"github.com/fxamacker/cbor/v2"
)

const ext = ".pth"

// Key is the checkpoint file name of a model trained for a domain with
// fold held out for validation.
func Key(model, domain string, fold int) string {
	return fmt.Sprintf("%s_%s_fold%d%s", model, domain, fold, ext)
}

// TournamentKey is the checkpoint file name of a tabular model trained for
// one tournament.
func TournamentKey(model, tournament string) string {
	return fmt.Sprintf("%s_%s%s", model, tournament, ext)
}

type payload struct {
	Heads  []models.Head    `cbor:"heads"`
	Params models.StateDict `cbor:"params"`
}

// Encode serialises the model's heads and parameters.
func Encode(m models.Model) ([]byte, error) {
	data, err := cbor.Marshal(payload{Heads: m.Heads(), Params: m.StateDict()})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrCheckpointIO, err)
	}

	return data, nil
}

// Decode restores parameters into an initialised model.
func Decode(data []byte, m models.Model) error {
	var p payload
	if err := cbor.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrCheckpointIO, err)
	}
	if err := m.LoadStateDict(p.Params); err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrCheckpointIO, err)
	}

	return nil
}

// Save writes the model to path, creating parent directories, and returns
// the number of bytes written.
func Save(path string, m models.Model) (int, error) {
	data, err := Encode(m)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("%w: %w", pkgerrors.ErrCheckpointIO, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return 0, fmt.Errorf("%w: %w", pkgerrors.ErrCheckpointIO, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("%w: %w", pkgerrors.ErrCheckpointIO, err)
	}

	return len(data), nil
}

func Load(path string, m models.Model) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrCheckpointIO, err)
	}

	return Decode(data, m)
}

// Size renders a byte count for logs.
func Size(n int) string {
	return humanize.Bytes(uint64(n))
}
