package provider

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jaa/vasort/internal/config"
)

// New builds the provider named by the configuration. Settings are decoded
// from the free-form map with weak typing, so "30" and 30 both work.
func New(cfg config.Provider, log *zap.Logger) (Provider, error) {
	settings, err := decodeSettings(cfg.Settings)
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case config.ProviderOllama:
		return newOllama(settings, log), nil
	case config.ProviderLMStudio:
		return newLMStudio(settings, log), nil
	case config.ProviderMLXVLM:
		return newMLXVLM(settings, log), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q (valid: %s)", cfg.Type, strings.Join(validTypes(), ", "))
	}
}

func validTypes() []string {
	infos := BuiltinProviders()
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = string(info.Type)
	}
	return names
}
