// Package viper provides a reflux.Parser backed by spf13/viper, adding the
// formats viper decodes (TOML, INI, Java properties, HCL and dotenv) to the
// built-in HOCON, YAML and JSON parsers.
package viper

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/encoding/hcl"
	"github.com/go-viper/encoding/ini"
	"github.com/go-viper/encoding/javaproperties"
	"github.com/spf13/viper"
	"github.com/zoobzio/reflux"
)

// Parser decodes one viper config type.
type Parser struct {
	configType string
	codecs     *viper.DefaultCodecRegistry
}

// New creates a Parser for configType. Accepted types are those viper
// decodes itself (yaml, json, toml, env, dotenv) plus hcl, tfvars, ini,
// properties, props and prop.
func New(configType string) (*Parser, error) {
	configType = strings.ToLower(strings.TrimPrefix(configType, "."))
	codecs := newCodecRegistry()
	if _, err := codecs.Decoder(configType); err != nil {
		return nil, fmt.Errorf("unsupported config type %q", configType)
	}
	return &Parser{configType: configType, codecs: codecs}, nil
}

// ForPath creates a Parser from the extension of path.
func ForPath(path string) (*Parser, error) {
	return New(filepath.Ext(path))
}

// newCodecRegistry registers the decoders viper no longer ships in core.
func newCodecRegistry() *viper.DefaultCodecRegistry {
	r := viper.NewCodecRegistry()

	hclCodec := hcl.Codec{}
	_ = r.RegisterCodec("hcl", hclCodec)    //nolint:errcheck // never fails
	_ = r.RegisterCodec("tfvars", hclCodec) //nolint:errcheck // never fails

	propsCodec := &javaproperties.Codec{}
	_ = r.RegisterCodec("properties", propsCodec) //nolint:errcheck // never fails
	_ = r.RegisterCodec("props", propsCodec)      //nolint:errcheck // never fails
	_ = r.RegisterCodec("prop", propsCodec)       //nolint:errcheck // never fails

	_ = r.RegisterCodec("ini", ini.Codec{}) //nolint:errcheck // never fails

	return r
}

// Parse decodes raw with a fresh viper instance. Keys are lower-cased, as
// viper always does.
func (p *Parser) Parse(raw []byte) (map[string]any, error) {
	v := viper.NewWithOptions(viper.WithCodecRegistry(p.codecs))
	v.SetConfigType(p.configType)
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return reflux.Normalize(v.AllSettings()), nil
}

// Format returns the viper config type.
func (p *Parser) Format() string {
	return p.configType
}

// Ensure Parser implements reflux.Parser.
var _ reflux.Parser = (*Parser)(nil)
