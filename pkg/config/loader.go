package config

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// loader implements Service. Each Load starts from scratch and merges
// layers lowest precedence first: defaults, YAML, mapped environment
// variables, CLI flags.
type loader struct {
	koanf      *koanf.Koanf
	validator  *validator.Validate
	metadata   Metadata
	metadataMu sync.RWMutex
}

// layer is one koanf provider tagged with the source it represents.
type layer struct {
	source   SourceType
	provider koanf.Provider
}

// sourceProvider adapts a Source to koanf.Provider.
type sourceProvider struct{ src Source }

func (p sourceProvider) Read() (map[string]any, error) { return p.src.Load() }

func (p sourceProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config source does not provide raw bytes")
}

// NewService creates a configuration service with the bookstore validators
// registered.
func NewService() Service {
	v := validator.New()
	if err := RegisterCustomValidators(v); err != nil {
		panic(fmt.Sprintf("register config validators: %v", err))
	}
	return &loader{
		koanf:     koanf.New("."),
		validator: v,
		metadata:  Metadata{Sources: make(map[string]SourceType)},
	}
}

func (l *loader) Load(_ context.Context, sources ...Source) (*Config, error) {
	l.koanf = koanf.New(".")
	l.metadataMu.Lock()
	l.metadata = Metadata{Sources: make(map[string]SourceType), LoadedAt: time.Now()}
	l.metadataMu.Unlock()
	for _, ly := range orderLayers(sources) {
		if err := l.merge(ly); err != nil {
			return nil, err
		}
	}
	return l.unmarshalAndValidate()
}

// orderLayers places explicit default and env sources aside: defaults always
// come from the registry and the environment is read once through the env
// tag mapping.
func orderLayers(sources []Source) []layer {
	layers := []layer{{source: SourceDefault, provider: structs.Provider(Default(), "koanf")}}
	var flags []layer
	for _, src := range sources {
		if src == nil {
			continue
		}
		switch src.Type() {
		case SourceDefault, SourceEnv:
		case SourceCLI:
			flags = append(flags, layer{source: SourceCLI, provider: sourceProvider{src}})
		default:
			layers = append(layers, layer{source: src.Type(), provider: sourceProvider{src}})
		}
	}
	layers = append(layers, layer{source: SourceEnv, provider: envProvider()})
	return append(layers, flags...)
}

// envProvider reads only variables named by an env tag, so unrelated
// process variables such as PATH never reach the config tree.
func envProvider() koanf.Provider {
	envToPath := GenerateEnvToConfigMap()
	return env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			if path, ok := envToPath[key]; ok {
				return path, value
			}
			return "", nil
		},
	})
}

func (l *loader) merge(ly layer) error {
	k := koanf.New(".")
	if err := k.Load(ly.provider, nil); err != nil {
		return fmt.Errorf("failed to load %s configuration: %w", ly.source, err)
	}
	l.metadataMu.Lock()
	for _, key := range k.Keys() {
		l.metadata.Sources[key] = ly.source
	}
	l.metadataMu.Unlock()
	if err := l.koanf.Merge(k); err != nil {
		return fmt.Errorf("failed to merge %s configuration: %w", ly.source, err)
	}
	return nil
}

func sensitiveStringDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeFor[SensitiveString]() {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return SensitiveString(v), nil
	case []byte:
		return SensitiveString(v), nil
	default:
		return data, nil
	}
}

func (l *loader) unmarshalAndValidate() (*Config, error) {
	var cfg Config
	if err := l.koanf.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				sensitiveStringDecodeHook,
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules.
func (l *loader) Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration cannot be nil")
	}
	if err := l.validator.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return validateCrossField(cfg)
}

// GetSource returns the layer that last set key.
func (l *loader) GetSource(key string) SourceType {
	l.metadataMu.RLock()
	defer l.metadataMu.RUnlock()
	if source, ok := l.metadata.Sources[key]; ok {
		return source
	}
	return SourceDefault
}

func validateCrossField(cfg *Config) error {
	db := &cfg.Database
	if db.ConnString == "" && (db.Host == "" || db.Port == "" || db.User == "" || db.DBName == "") {
		return errors.New("database configuration incomplete: set conn_string or host, port, user and name")
	}
	if db.MaxOpenConns > 0 && db.MaxIdleConns > db.MaxOpenConns {
		return fmt.Errorf("database max_idle_conns (%d) exceeds max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)
	}
	if cfg.Monitoring.Enabled && cfg.Monitoring.Path == "" {
		return errors.New("monitoring path is required when monitoring is enabled")
	}
	return nil
}
