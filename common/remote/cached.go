package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lyzr/orgsync/common/cache"
	"github.com/lyzr/orgsync/common/models"
)

const (
	cacheKeyOU      = "remote:ou:"
	cacheKeyAccount = "remote:account:"

	// every policy entry lives under cacheKeyPolicyScope
	cacheKeyPolicyScope = "remote:policy:"
	cacheKeyPolicy      = cacheKeyPolicyScope + "id:"
	cacheKeyPolicies    = cacheKeyPolicyScope + "list"
)

// CachedClient memoizes describe calls, which the diffs repeat for every
// attachment record and parent lookup. Mutations drop the entries they affect.
type CachedClient struct {
	Client
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedClient wraps inner with c
func NewCachedClient(inner Client, c cache.Cache, ttl time.Duration) *CachedClient {
	return &CachedClient{Client: inner, cache: c, ttl: ttl}
}

func cached[T any](ctx context.Context, c *CachedClient, key string, load func() (T, error)) (T, error) {
	var zero T
	if raw, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}

	v, err := load()
	if err != nil {
		return zero, err
	}
	if raw, err := json.Marshal(v); err == nil {
		_ = c.cache.Set(ctx, key, raw, c.ttl)
	}
	return v, nil
}

func (c *CachedClient) DescribeOrganizationalUnit(ctx context.Context, ouID string) (*models.HierarchyNode, error) {
	return cached(ctx, c, cacheKeyOU+ouID, func() (*models.HierarchyNode, error) {
		return c.Client.DescribeOrganizationalUnit(ctx, ouID)
	})
}

func (c *CachedClient) DescribeAccount(ctx context.Context, accountID string) (*models.HierarchyNode, error) {
	return cached(ctx, c, cacheKeyAccount+accountID, func() (*models.HierarchyNode, error) {
		return c.Client.DescribeAccount(ctx, accountID)
	})
}

func (c *CachedClient) DescribePolicy(ctx context.Context, policyID string) (*models.Policy, error) {
	return cached(ctx, c, cacheKeyPolicy+policyID, func() (*models.Policy, error) {
		return c.Client.DescribePolicy(ctx, policyID)
	})
}

func (c *CachedClient) ListPolicies(ctx context.Context) ([]models.PolicySummary, error) {
	return cached(ctx, c, cacheKeyPolicies, func() ([]models.PolicySummary, error) {
		return c.Client.ListPolicies(ctx)
	})
}

func (c *CachedClient) UpdateOrganizationalUnit(ctx context.Context, ouID, name string) error {
	defer c.cache.Delete(ctx, cacheKeyOU+ouID)
	return c.Client.UpdateOrganizationalUnit(ctx, ouID, name)
}

func (c *CachedClient) CreatePolicy(ctx context.Context, name, description, content string) (string, error) {
	defer c.cache.DeletePrefix(ctx, cacheKeyPolicyScope)
	return c.Client.CreatePolicy(ctx, name, description, content)
}

// UpdatePolicy drops every policy entry, since a rename shows up in the listing too
func (c *CachedClient) UpdatePolicy(ctx context.Context, policyID string, update PolicyUpdate) error {
	defer c.cache.DeletePrefix(ctx, cacheKeyPolicyScope)
	return c.Client.UpdatePolicy(ctx, policyID, update)
}
