package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ConfigKey names a JSON-valued entry in the store's configuration table.
type ConfigKey string

const (
	ConfigKeyFarmItems       ConfigKey = "ITENS_FARM"
	ConfigKeyProductionItems ConfigKey = "ITENS_PRODUCAO"
	ConfigKeyManagerRoles    ConfigKey = "CARGOS_GERENCIAIS"
	ConfigKeyMasterKey       ConfigKey = "CHAVE_MESTRA_GERENCIAL"
)

// ConfigValue is implemented by every decoded configuration value. The key a
// value belongs to determines its concrete type.
type ConfigValue interface {
	ConfigKey() ConfigKey
}

// ItemRule describes the quantities accepted for one item.
// The JSON field names follow the stored configuration format.
type ItemRule struct {
	ID       string              `json:"idInterno"`
	Name     string              `json:"nome"`
	Multiple decimal.Decimal     `json:"multiplo"`
	Min      decimal.NullDecimal `json:"min"`
	Max      decimal.NullDecimal `json:"max"`
}

// DisplayName falls back to the item id when no name is configured.
func (r ItemRule) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// ItemRules is the ordered rule list of one category.
type ItemRules struct {
	Category Category
	Rules    []ItemRule
}

func (r ItemRules) ConfigKey() ConfigKey { return r.Category.ConfigKey() }

// Lookup returns the rule for an item id.
func (r ItemRules) Lookup(id string) (ItemRule, bool) {
	for _, rule := range r.Rules {
		if rule.ID == id {
			return rule, true
		}
	}
	return ItemRule{}, false
}

// ManagerRoles lists the role ids allowed to use manager-only views.
type ManagerRoles struct {
	Name string   `json:"nome,omitempty"`
	IDs  []string `json:"ids"`
}

func (ManagerRoles) ConfigKey() ConfigKey { return ConfigKeyManagerRoles }

// Allows reports whether any of the member's roles is a manager role.
func (m ManagerRoles) Allows(memberRoles []string) bool {
	for _, want := range m.IDs {
		for _, have := range memberRoles {
			if want == have {
				return true
			}
		}
	}
	return false
}

// MasterKey is the shared secret that unlocks restricted actions.
// It is stored as a bare JSON string; the legacy {"valor": "..."} wrapper is
// accepted on read and never written.
type MasterKey string

func (MasterKey) ConfigKey() ConfigKey { return ConfigKeyMasterKey }

// DecodeConfig decodes a raw stored value into the type owned by key.
func DecodeConfig(key ConfigKey, raw []byte) (ConfigValue, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, &ConfigMissingError{Key: key}
	}

	switch key {
	case ConfigKeyFarmItems, ConfigKeyProductionItems:
		category := CategoryFarm
		if key == ConfigKeyProductionItems {
			category = CategoryProduction
		}
		var rules []ItemRule
		if err := json.Unmarshal(raw, &rules); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		seen := make(map[string]bool, len(rules))
		for i, rule := range rules {
			if rule.ID == "" {
				return nil, fmt.Errorf("decode %s: rule %d has no item id", key, i)
			}
			if seen[rule.ID] {
				return nil, fmt.Errorf("decode %s: duplicate item id %q", key, rule.ID)
			}
			seen[rule.ID] = true
		}
		return ItemRules{Category: category, Rules: rules}, nil

	case ConfigKeyManagerRoles:
		var roles ManagerRoles
		if raw[0] == '[' {
			if err := json.Unmarshal(raw, &roles.IDs); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
			return roles, nil
		}
		if err := json.Unmarshal(raw, &roles); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return roles, nil

	case ConfigKeyMasterKey:
		var secret string
		if raw[0] == '{' {
			var wrapped struct {
				Value string `json:"valor"`
			}
			if err := json.Unmarshal(raw, &wrapped); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
			secret = wrapped.Value
		} else if err := json.Unmarshal(raw, &secret); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		if secret == "" {
			return nil, &ConfigMissingError{Key: key}
		}
		return MasterKey(secret), nil

	default:
		return nil, fmt.Errorf("unknown configuration key %q", key)
	}
}

// EncodeConfig returns the value to hand to Store.SetConfig for a typed config value.
func EncodeConfig(v ConfigValue) any {
	switch val := v.(type) {
	case ItemRules:
		if val.Rules == nil {
			return []ItemRule{}
		}
		return val.Rules
	case MasterKey:
		return string(val)
	default:
		return val
	}
}

// Settings gives typed access to the configuration keys of a Store.
type Settings struct {
	store Store
}

// NewSettings wraps store.
func NewSettings(store Store) *Settings {
	return &Settings{store: store}
}

func (s *Settings) load(ctx context.Context, key ConfigKey) (ConfigValue, error) {
	raw, err := s.store.GetConfig(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return nil, &ConfigMissingError{Key: key}
		}
		return nil, err
	}
	return DecodeConfig(key, raw)
}

// ItemRules returns the rule list of category. An empty list counts as missing.
func (s *Settings) ItemRules(ctx context.Context, category Category) (ItemRules, error) {
	v, err := s.load(ctx, category.ConfigKey())
	if err != nil {
		return ItemRules{}, err
	}
	rules := v.(ItemRules)
	if len(rules.Rules) == 0 {
		return ItemRules{}, &ConfigMissingError{Key: category.ConfigKey()}
	}
	return rules, nil
}

// ManagerRoles returns the configured manager roles. A missing key yields no roles.
func (s *Settings) ManagerRoles(ctx context.Context) (ManagerRoles, error) {
	v, err := s.load(ctx, ConfigKeyManagerRoles)
	if err != nil {
		var missing *ConfigMissingError
		if errors.As(err, &missing) {
			return ManagerRoles{}, nil
		}
		return ManagerRoles{}, err
	}
	return v.(ManagerRoles), nil
}

// MasterKey returns the shared secret.
func (s *Settings) MasterKey(ctx context.Context) (MasterKey, error) {
	v, err := s.load(ctx, ConfigKeyMasterKey)
	if err != nil {
		return "", err
	}
	return v.(MasterKey), nil
}

// Set writes a typed configuration value.
func (s *Settings) Set(ctx context.Context, v ConfigValue) error {
	return s.store.SetConfig(ctx, v.ConfigKey(), EncodeConfig(v))
}
