package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

const stubCipherPrefix = "enc:"

type stubSecretProvider struct {
	failWith error
}

func (p stubSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	return []byte(stubCipherPrefix + string(plaintext)), nil
}

func (p stubSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if p.failWith != nil {
		return nil, p.failWith
	}
	value := string(ciphertext)
	if !strings.HasPrefix(value, stubCipherPrefix) {
		return nil, errors.New("stub: ciphertext prefix missing")
	}
	return []byte(strings.TrimPrefix(value, stubCipherPrefix)), nil
}

type memorySettingsSource struct {
	collections map[string]map[string]string
	err         error
}

func newMemorySettingsSource() *memorySettingsSource {
	return &memorySettingsSource{collections: map[string]map[string]string{}}
}

func (s *memorySettingsSource) Settings(_ context.Context, name string) (map[string]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := map[string]string{}
	for key, value := range s.collections[name] {
		out[key] = value
	}
	return out, nil
}

func (s *memorySettingsSource) SetSetting(_ context.Context, name string, key string, value string) error {
	if s.collections[name] == nil {
		s.collections[name] = map[string]string{}
	}
	s.collections[name][key] = value
	return nil
}

func seedEncryptedSettings(source *memorySettingsSource, clientID, clientSecret, munchkinID string) {
	provider := stubSecretProvider{}
	ctx := context.Background()
	for key, value := range map[string]string{
		SettingClientID:     clientID,
		SettingClientSecret: clientSecret,
		SettingMunchkinID:   munchkinID,
	} {
		if value == "" {
			continue
		}
		encrypted, _ := provider.Encrypt(ctx, []byte(value))
		_ = source.SetSetting(ctx, DefaultSettingsName, key, string(encrypted))
	}
	_ = source.SetSetting(ctx, DefaultSettingsName, SettingTrackingMethod, "rest")
}

type stubMarketoClient struct {
	getFieldsFn           func(ctx context.Context) ([]Field, error)
	getLeadByFilterTypeFn func(ctx context.Context, filter LeadFilter) ([]Lead, error)
	getPagingTokenFn      func(ctx context.Context, since time.Time) (string, error)
	getLeadActivityFn     func(ctx context.Context, req ActivityRequest) (ActivityPage, error)
	createOrUpdateLeadsFn func(ctx context.Context, leads []Lead, opts SyncOptions) ([]RecordStatus, error)
	deleteLeadsFn         func(ctx context.Context, ids []int) ([]RecordStatus, error)
}

func (s stubMarketoClient) GetFields(ctx context.Context) ([]Field, error) {
	if s.getFieldsFn == nil {
		return nil, fmt.Errorf("stub: get fields not implemented")
	}
	return s.getFieldsFn(ctx)
}

func (s stubMarketoClient) GetLeadByFilterType(ctx context.Context, filter LeadFilter) ([]Lead, error) {
	if s.getLeadByFilterTypeFn == nil {
		return nil, fmt.Errorf("stub: get lead not implemented")
	}
	return s.getLeadByFilterTypeFn(ctx, filter)
}

func (s stubMarketoClient) GetPagingToken(ctx context.Context, since time.Time) (string, error) {
	if s.getPagingTokenFn == nil {
		return "", fmt.Errorf("stub: paging token not implemented")
	}
	return s.getPagingTokenFn(ctx, since)
}

func (s stubMarketoClient) GetLeadActivity(ctx context.Context, req ActivityRequest) (ActivityPage, error) {
	if s.getLeadActivityFn == nil {
		return ActivityPage{}, fmt.Errorf("stub: lead activity not implemented")
	}
	return s.getLeadActivityFn(ctx, req)
}

func (s stubMarketoClient) CreateOrUpdateLeads(ctx context.Context, leads []Lead, opts SyncOptions) ([]RecordStatus, error) {
	if s.createOrUpdateLeadsFn == nil {
		return nil, fmt.Errorf("stub: create or update not implemented")
	}
	return s.createOrUpdateLeadsFn(ctx, leads, opts)
}

func (s stubMarketoClient) DeleteLeads(ctx context.Context, ids []int) ([]RecordStatus, error) {
	if s.deleteLeadsFn == nil {
		return nil, fmt.Errorf("stub: delete not implemented")
	}
	return s.deleteLeadsFn(ctx, ids)
}

func staticClientFactory(client MarketoClient) ClientFactory {
	return func(ClientConfig, Config) (MarketoClient, error) {
		return client, nil
	}
}

func newTestService(t *testing.T, client MarketoClient, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithClientConfig(ClientConfig{ClientID: "id", ClientSecret: "secret", MunchkinID: "123-ABC-456"}),
		WithClientFactory(staticClientFactory(client)),
	}
	svc, err := NewService(Config{}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type recordingMetrics struct {
	counters []string
}

func (m *recordingMetrics) IncCounter(_ context.Context, name string, _ int64, _ map[string]string) {
	m.counters = append(m.counters, name)
}

func (m *recordingMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}
