package sqlstore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-marketo/core"
	"github.com/goliatone/go-marketo/security"
	sqlstore "github.com/goliatone/go-marketo/store/sql"
)

func newSQLiteClient(t *testing.T) *persistence.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:marketo-test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	client, err := sqlstore.OpenDB(sqlstore.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := sqlstore.CreateSchema(context.Background(), client.DB()); err != nil {
		_ = client.Close()
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestSettingsStore_SetAndReadCollection(t *testing.T) {
	ctx := context.Background()
	store, err := sqlstore.NewSettingsStoreFromPersistence(newSQLiteClient(t))
	if err != nil {
		t.Fatalf("new settings store: %v", err)
	}

	if err := store.SetSetting(ctx, core.DefaultSettingsName, core.SettingClientID, "enc-id"); err != nil {
		t.Fatalf("set client id: %v", err)
	}
	if err := store.SetSetting(ctx, core.DefaultSettingsName, core.SettingMunchkinID, "enc-munchkin"); err != nil {
		t.Fatalf("set munchkin: %v", err)
	}
	if err := store.SetSetting(ctx, "other.settings", core.SettingClientID, "other"); err != nil {
		t.Fatalf("set other collection: %v", err)
	}

	settings, err := store.Settings(ctx, core.DefaultSettingsName)
	if err != nil {
		t.Fatalf("read settings: %v", err)
	}
	if len(settings) != 2 {
		t.Fatalf("expected two settings, got %#v", settings)
	}
	if settings[core.SettingClientID] != "enc-id" || settings[core.SettingMunchkinID] != "enc-munchkin" {
		t.Fatalf("unexpected settings: %#v", settings)
	}
}

func TestSettingsStore_SetSettingReplacesValue(t *testing.T) {
	ctx := context.Background()
	store, err := sqlstore.NewSettingsStoreFromPersistence(newSQLiteClient(t))
	if err != nil {
		t.Fatalf("new settings store: %v", err)
	}

	if err := store.SetSetting(ctx, core.DefaultSettingsName, core.SettingClientSecret, "v1"); err != nil {
		t.Fatalf("set v1: %v", err)
	}
	if err := store.SetSetting(ctx, core.DefaultSettingsName, core.SettingClientSecret, "v2"); err != nil {
		t.Fatalf("set v2: %v", err)
	}
	settings, err := store.Settings(ctx, core.DefaultSettingsName)
	if err != nil {
		t.Fatalf("read settings: %v", err)
	}
	if len(settings) != 1 || settings[core.SettingClientSecret] != "v2" {
		t.Fatalf("expected replaced value, got %#v", settings)
	}

	if err := store.DeleteSetting(ctx, core.DefaultSettingsName, core.SettingClientSecret); err != nil {
		t.Fatalf("delete setting: %v", err)
	}
	settings, err = store.Settings(ctx, core.DefaultSettingsName)
	if err != nil {
		t.Fatalf("read settings after delete: %v", err)
	}
	if len(settings) != 0 {
		t.Fatalf("expected empty collection, got %#v", settings)
	}
}

func TestSettingsStore_RejectsEmptyNames(t *testing.T) {
	ctx := context.Background()
	store, err := sqlstore.NewSettingsStore(newSQLiteClient(t).DB())
	if err != nil {
		t.Fatalf("new settings store: %v", err)
	}
	if err := store.SetSetting(ctx, " ", "key", "value"); err == nil {
		t.Fatalf("expected collection required error")
	}
	if err := store.SetSetting(ctx, "collection", "", "value"); err == nil {
		t.Fatalf("expected name required error")
	}
	if _, err := store.Settings(ctx, ""); err == nil {
		t.Fatalf("expected collection required error on read")
	}
}

func TestSettingsStore_EncryptedSettingsConfigureService(t *testing.T) {
	ctx := context.Background()
	store, err := sqlstore.NewSettingsStoreFromPersistence(newSQLiteClient(t))
	if err != nil {
		t.Fatalf("new settings store: %v", err)
	}
	provider, err := security.NewAppKeySecretProviderFromString("site-key")
	if err != nil {
		t.Fatalf("new secret provider: %v", err)
	}
	if err := security.EncryptSettings(ctx, provider, store, core.DefaultSettingsName, map[string]string{
		core.SettingClientID:       "client-id",
		core.SettingClientSecret:   "client-secret",
		core.SettingMunchkinID:     "123-ABC-456",
		core.SettingTrackingMethod: "munchkin",
	}); err != nil {
		t.Fatalf("encrypt settings: %v", err)
	}

	svc, err := core.NewService(core.DefaultConfig(),
		core.WithSettingsSource(store),
		core.WithSecretProvider(provider),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if !svc.CanConnect() {
		t.Fatalf("expected service built from stored settings to be configured")
	}
	if svc.ClientConfig().MunchkinID != "123-ABC-456" {
		t.Fatalf("unexpected munchkin %q", svc.ClientConfig().MunchkinID)
	}
}

func TestOpenDB_RejectsUnknownDriver(t *testing.T) {
	if _, err := sqlstore.OpenDB("mysql", "dsn"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
	if _, err := sqlstore.OpenDB(sqlstore.DriverSQLite, ""); err == nil {
		t.Fatalf("expected dsn required error")
	}
	if _, err := sqlstore.NewSettingsStoreFromPersistence(nil); err == nil {
		t.Fatalf("expected persistence client required error")
	}
}
