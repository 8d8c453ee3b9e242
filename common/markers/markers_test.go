package markers

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orgsync/common/config"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/models"
)

func newMemoryStore(t *testing.T) Store {
	t.Helper()
	store, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBadgerStore_GetPutList(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	_, found, err := store.Get(ctx, "0000000000000000002_OU_CREATE")
	require.NoError(t, err)
	assert.False(t, found)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.Put(ctx, &models.Marker{MigrationID: "0000000000000000002_OU_CREATE", Status: models.StatusFailed, Message: "boom", RecordedAt: now}))
	require.NoError(t, store.Put(ctx, &models.Marker{MigrationID: "0000000000000000001_OU_RENAME", Status: models.StatusApplied, RecordedAt: now}))

	marker, found, err := store.Get(ctx, "0000000000000000002_OU_CREATE")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusFailed, marker.Status)
	assert.Equal(t, "boom", marker.Message)
	assert.False(t, marker.IsApplied())

	// latest write wins
	require.NoError(t, store.Put(ctx, &models.Marker{MigrationID: "0000000000000000002_OU_CREATE", Status: models.StatusApplied, RecordedAt: now}))
	marker, _, err = store.Get(ctx, "0000000000000000002_OU_CREATE")
	require.NoError(t, err)
	assert.True(t, marker.IsApplied())

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "0000000000000000001_OU_RENAME", all[0].MigrationID)
	assert.Equal(t, "0000000000000000002_OU_CREATE", all[1].MigrationID)
}

func TestOpenBadger_RequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}

func TestOpen_SelectsBackend(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{Markers: config.MarkerConfig{Backend: config.MarkerBackendMemory}}

	store, err := Open(ctx, cfg, logger.Discard(), nil, "")
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &BadgerStore{}, store)

	cfg.Markers.Backend = config.MarkerBackendSSM
	_, err = Open(ctx, cfg, logger.Discard(), nil, "")
	assert.Error(t, err)

	cfg.Markers.Backend = "etcd"
	_, err = Open(ctx, cfg, logger.Discard(), nil, "")
	assert.Error(t, err)
}

// fakeSSM stores parameters in a map and mimics the tags-with-overwrite restriction
type fakeSSM struct {
	ssmiface.SSMAPI
	params map[string]*ssm.Parameter
	tagged map[string]bool
	puts   int
}

func newFakeSSM() *fakeSSM {
	return &fakeSSM{params: map[string]*ssm.Parameter{}, tagged: map[string]bool{}}
}

func (f *fakeSSM) GetParameterWithContext(_ aws.Context, in *ssm.GetParameterInput, _ ...request.Option) (*ssm.GetParameterOutput, error) {
	p, ok := f.params[aws.StringValue(in.Name)]
	if !ok {
		return nil, awserr.New(ssm.ErrCodeParameterNotFound, "not found", nil)
	}
	return &ssm.GetParameterOutput{Parameter: p}, nil
}

func (f *fakeSSM) PutParameterWithContext(_ aws.Context, in *ssm.PutParameterInput, _ ...request.Option) (*ssm.PutParameterOutput, error) {
	f.puts++
	name := aws.StringValue(in.Name)
	overwrite := aws.BoolValue(in.Overwrite)
	if overwrite && len(in.Tags) > 0 {
		return nil, awserr.New("ValidationException", "tags and overwrite", nil)
	}
	if _, exists := f.params[name]; exists && !overwrite {
		return nil, awserr.New(ssm.ErrCodeParameterAlreadyExists, "exists", nil)
	}
	if len(in.Tags) > 0 {
		f.tagged[name] = true
	}
	f.params[name] = &ssm.Parameter{
		Name:             in.Name,
		Value:            in.Value,
		LastModifiedDate: aws.Time(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	return &ssm.PutParameterOutput{}, nil
}

func (f *fakeSSM) GetParametersByPathPagesWithContext(_ aws.Context, in *ssm.GetParametersByPathInput, fn func(*ssm.GetParametersByPathOutput, bool) bool, _ ...request.Option) error {
	out := &ssm.GetParametersByPathOutput{}
	for _, p := range f.params {
		out.Parameters = append(out.Parameters, p)
	}
	fn(out, true)
	return nil
}

func TestSSMStore_WritesLegacyValuesAndOverwrites(t *testing.T) {
	ctx := context.Background()
	api := newFakeSSM()
	store := NewSSMStoreWithAPI(api, config.DefaultMarkerPrefix+"/")
	id := "0000000000000000007_POLICY_ATTACH"

	require.NoError(t, store.Put(ctx, &models.Marker{MigrationID: id, Status: models.StatusErrored, Message: "throttled", RecordedAt: time.Now()}))
	name := "/_aws-organized/migrations/" + id
	assert.Equal(t, "Errored", aws.StringValue(api.params[name].Value))
	assert.True(t, api.tagged[name])

	require.NoError(t, store.Put(ctx, &models.Marker{MigrationID: id, Status: models.StatusApplied, RecordedAt: time.Now()}))
	assert.Equal(t, "Ok", aws.StringValue(api.params[name].Value))
	assert.Equal(t, 3, api.puts)

	marker, found, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusApplied, marker.Status)

	_, found, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, id, all[0].MigrationID)
}

func TestSSMStore_RejectsPending(t *testing.T) {
	store := NewSSMStoreWithAPI(newFakeSSM(), config.DefaultMarkerPrefix)
	err := store.Put(context.Background(), &models.Marker{MigrationID: "x", Status: models.StatusPending})
	assert.Error(t, err)
}
