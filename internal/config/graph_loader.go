package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
	"github.com/moolen-fork/changeintel/internal/models"
)

// LoadGraphFile loads and parses the config-driven dependency graph file
// at path: the YAML shape `{ services: [...], dependencies: [...] }`,
// via the same Koanf file+YAML pipeline used elsewhere in this package.
func LoadGraphFile(path string) (*models.GraphImportFile, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindValidation, err, "load graph file %q", path)
	}

	var out models.GraphImportFile
	if err := k.UnmarshalWithConf("", &out, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindValidation, err, "parse graph file %q", path)
	}
	return &out, nil
}
