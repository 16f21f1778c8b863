package connector

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/open-iga/proxykit/core"
	"github.com/open-iga/proxykit/request"
)

// Config is the connector's configuration surface as delivered by the host.
// Endpoint and credential values are opaque to the core and may instead come
// from the environment (see platform.New).
type Config struct {
	BaseURL      string `json:"baseUrl"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	TokenURL     string `json:"tokenUrl,omitempty"`

	// SourceID scopes every entitlement lookup and the proxy-grant
	// subsumption rule to one source.
	SourceID string `json:"sourceId"`

	// SourceOwnerID owns access profiles created by the synchronizer.
	// Required when SyncAccessProfiles is set.
	SourceOwnerID string `json:"sourceOwnerId,omitempty"`

	// EntitlementFilter selects the raw entitlements to build the hierarchy
	// from. Defaults to the source's privileged entitlements.
	EntitlementFilter string `json:"entitlementFilter,omitempty"`

	// IdentitySearchQuery selects the subjects considered during account
	// listing. Defaults to identities with access on the source.
	IdentitySearchQuery string `json:"identitySearchQuery,omitempty"`

	// RequestComment is the access-request comment template. A %s verb
	// receives the requested proxy names.
	RequestComment string `json:"requestComment,omitempty"`

	// SyncAccessProfiles controls whether hierarchy nodes are materialized
	// as access profiles during entitlement listing.
	SyncAccessProfiles bool `json:"syncAccessProfiles,omitempty"`

	// RetryDelaySeconds overrides the fixed delay before the single
	// access-request retry. Zero means the default (60s).
	RetryDelaySeconds int `json:"retryDelaySeconds,omitempty"`
}

// ParseConfig decodes the host-provided JSON configuration, applies defaults,
// and validates it.
func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, &core.ValidationError{Msg: fmt.Sprintf("decode config: %v", err)}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.EntitlementFilter == "" && c.SourceID != "" {
		c.EntitlementFilter = fmt.Sprintf("source.id eq %q and privileged eq true", c.SourceID)
	}
	if c.IdentitySearchQuery == "" && c.SourceID != "" {
		c.IdentitySearchQuery = fmt.Sprintf("@access(source.id:%q)", c.SourceID)
	}
	if c.RequestComment == "" {
		c.RequestComment = request.DefaultCommentTemplate
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.SourceID) == "" {
		return &core.ValidationError{Msg: "sourceId is required"}
	}
	if c.SyncAccessProfiles && strings.TrimSpace(c.SourceOwnerID) == "" {
		return &core.ValidationError{Msg: "sourceOwnerId is required when syncAccessProfiles is set"}
	}
	if c.RetryDelaySeconds < 0 {
		return &core.ValidationError{Msg: "retryDelaySeconds must not be negative"}
	}
	return nil
}

// RetryDelay returns the configured retry delay, or the default.
func (c Config) RetryDelay() time.Duration {
	if c.RetryDelaySeconds > 0 {
		return time.Duration(c.RetryDelaySeconds) * time.Second
	}
	return request.DefaultRetryDelay
}
