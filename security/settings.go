package security

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-marketo/core"
)

// EncryptSettings seals every non-empty value and writes it to the named
// settings collection. Empty values are written as empty so they read back as
// unset.
func EncryptSettings(
	ctx context.Context,
	provider core.SecretProvider,
	writer core.SettingsWriter,
	name string,
	values map[string]string,
) error {
	if provider == nil {
		return fmt.Errorf("security: secret provider is required")
	}
	if writer == nil {
		return fmt.Errorf("security: settings writer is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("security: settings name is required")
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.TrimSpace(values[key])
		stored := ""
		if value != "" {
			sealed, err := provider.Encrypt(ctx, []byte(value))
			if err != nil {
				return fmt.Errorf("security: encrypt setting %q: %w", key, err)
			}
			stored = string(sealed)
		}
		if err := writer.SetSetting(ctx, name, key, stored); err != nil {
			return err
		}
	}
	return nil
}

// CredentialSettings maps a client config onto the stored setting keys.
func CredentialSettings(clientConfig core.ClientConfig) map[string]string {
	return map[string]string{
		core.SettingClientID:     clientConfig.ClientID,
		core.SettingClientSecret: clientConfig.ClientSecret,
		core.SettingMunchkinID:   clientConfig.MunchkinID,
	}
}
