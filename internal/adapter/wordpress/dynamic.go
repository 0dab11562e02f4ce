package wordpress

import (
	"context"
	"fmt"
	"time"

	"inkpress/backend/internal/settings"
)

// DynamicClient resolves the WordPress base URL and bearer token from
// settings on every call, so credential changes through PUT /settings take
// effect without a restart.
type DynamicClient struct {
	settingsSvc *settings.Service
	timeout     time.Duration
}

func NewDynamicClient(svc *settings.Service, timeout time.Duration) *DynamicClient {
	return &DynamicClient{settingsSvc: svc, timeout: timeout}
}

func (d *DynamicClient) resolve(ctx context.Context) (*Client, error) {
	s, err := d.settingsSvc.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if s.WordPressURL == "" || s.WordPressToken == "" {
		return nil, fmt.Errorf("wordpress credentials not configured")
	}
	return NewClient(s.WordPressURL, s.WordPressToken, d.timeout), nil
}

func (d *DynamicClient) CreatePost(ctx context.Context, in PostInput) (*Post, error) {
	c, err := d.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return c.CreatePost(ctx, in)
}

func (d *DynamicClient) UpdatePost(ctx context.Context, id int, fields map[string]interface{}) (*Post, error) {
	c, err := d.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return c.UpdatePost(ctx, id, fields)
}

func (d *DynamicClient) GetPost(ctx context.Context, id int) (*Post, error) {
	c, err := d.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return c.GetPost(ctx, id)
}

func (d *DynamicClient) DeletePost(ctx context.Context, id int) error {
	c, err := d.resolve(ctx)
	if err != nil {
		return err
	}
	return c.DeletePost(ctx, id)
}

func (d *DynamicClient) ListCategories(ctx context.Context) ([]Term, error) {
	c, err := d.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return c.ListCategories(ctx)
}

func (d *DynamicClient) ListTags(ctx context.Context) ([]Term, error) {
	c, err := d.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return c.ListTags(ctx)
}
