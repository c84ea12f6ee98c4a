package config

import (
	"bytes"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/axiomata/atomstore/errors"
)

const fileHeader = `# atomstore configuration.
#
# spatial.hilbert_order and spatial.landmark_seed are fixed for the lifetime
# of a store: changing either invalidates every persisted spatial point and
# Hilbert index. Pick them once, before first ingest.

`

// WriteDefault writes a commented default config file to path. Refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Mark(errors.Newf("config file already exists: %s", path), errors.ErrInvalidArgument)
	}

	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	if err := toml.NewEncoder(&buf).Encode(Default()); err != nil {
		return errors.Wrap(err, "encoding default config")
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Mark(errors.Wrapf(err, "writing %s", path), errors.ErrStorage)
	}
	return nil
}
