package vault

import (
	"context"
	"fmt"
	"sync"

	"coinfolio/config"

	"github.com/hashicorp/vault/api"
)

// ServiceSecrets holds the secrets the service pulls from Vault at startup.
// When Vault is disabled the values fall back to the local config.
type ServiceSecrets struct {
	JWTSecret        string `json:"jwt_secret"`
	MarketDataAPIKey string `json:"market_data_api_key"`
	DBPassword       string `json:"db_password"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config config.VaultConfig

	mu     sync.RWMutex
	cached *ServiceSecrets
}

// NewClient creates a new Vault client. A disabled config yields a client
// that only serves locally seeded secrets.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client: client,
		config: cfg,
	}, nil
}

// SeedLocal primes the cache with secrets from local configuration. Used
// when Vault is disabled so the rest of the service reads one source.
func (c *Client) SeedLocal(secrets ServiceSecrets) {
	c.mu.Lock()
	c.cached = &secrets
	c.mu.Unlock()
}

// ServiceSecrets returns the service secrets, reading from Vault on the
// first call and from the cache afterwards.
func (c *Client) ServiceSecrets(ctx context.Context) (*ServiceSecrets, error) {
	c.mu.RLock()
	if c.cached != nil {
		cached := *c.cached
		c.mu.RUnlock()
		return &cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("vault is disabled and no local secrets were seeded")
	}

	path := fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service secrets from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("service secrets not found at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	secrets := &ServiceSecrets{
		JWTSecret:        getString(data, "jwt_secret"),
		MarketDataAPIKey: getString(data, "market_data_api_key"),
		DBPassword:       getString(data, "db_password"),
	}

	c.mu.Lock()
	c.cached = secrets
	c.mu.Unlock()

	return secrets, nil
}

// StoreServiceSecrets writes the service secrets to Vault
func (c *Client) StoreServiceSecrets(ctx context.Context, secrets ServiceSecrets) error {
	if !c.config.Enabled {
		c.SeedLocal(secrets)
		return nil
	}

	path := fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"jwt_secret":          secrets.JWTSecret,
			"market_data_api_key": secrets.MarketDataAPIKey,
			"db_password":         secrets.DBPassword,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		return fmt.Errorf("failed to store service secrets in vault: %w", err)
	}

	c.SeedLocal(secrets)
	return nil
}

// ClearCache clears the in-memory secrets cache
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().Health()
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
