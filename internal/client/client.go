// Package client assembles a profile's REST client and room session registry
// for the roomchat binaries.
package client

import (
	"errors"
	"fmt"

	"github.com/matheus3301/roomchat/internal/chat"
	"github.com/matheus3301/roomchat/internal/config"
	"github.com/matheus3301/roomchat/internal/logging"
	"github.com/matheus3301/roomchat/internal/profile"
	"github.com/matheus3301/roomchat/internal/rest"
	"github.com/matheus3301/roomchat/internal/transport"
	"go.uber.org/zap"
)

// ErrNoIdentity is returned when the profile has no user id or username.
var ErrNoIdentity = errors.New("user_id and username must be set (client.toml or ROOMCHAT_USER_ID / ROOMCHAT_USERNAME)")

// Client bundles everything a binary needs to talk to the platform.
type Client struct {
	Profile  string
	Config   *config.Client
	API      *rest.Client
	Registry *chat.Registry
	Logger   *zap.Logger
}

// Load resolves the profile, reads its settings and opens the log file of
// binary. console mirrors logs to stderr.
func Load(profileFlag, binary string, console bool) (*Client, error) {
	name := profile.Resolve(profileFlag)
	if err := profile.ValidateName(name); err != nil {
		return nil, err
	}
	cfg, err := config.LoadClient(profile.ClientConfigPath(name))
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}
	if err := profile.EnsureDir(name); err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}
	logger, err := logging.New(profile.LogPath(name, binary), name, console, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	c, err := New(name, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return c, nil
}

// New builds a client from already loaded settings.
func New(name string, cfg *config.Client, logger *zap.Logger) (*Client, error) {
	if cfg.UserID == "" || cfg.Username == "" {
		return nil, ErrNoIdentity
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		Profile: name,
		Config:  cfg,
		API:     rest.NewClient(cfg.APIBaseURL, cfg.Token, logger),
		Logger:  logger,
	}
	c.Registry = chat.NewRegistry(c.SessionOptions())
	return c, nil
}

// TransportConfig returns the websocket settings of the profile.
func (c *Client) TransportConfig() transport.Config {
	tc := transport.DefaultConfig()
	tc.BaseURL = c.Config.APIBaseURL
	tc.Token = c.Config.Token
	tc.UserID = c.Config.UserID
	tc.Username = c.Config.Username
	if d := c.Config.HandshakeTimeout.Std(); d > 0 {
		tc.HandshakeTimeout = d
	}
	if d := c.Config.WriteTimeout.Std(); d > 0 {
		tc.WriteTimeout = d
	}
	return tc
}

// SessionOptions returns the options every room session of the profile
// is built with.
func (c *Client) SessionOptions() chat.Options {
	return chat.Options{
		API:          c.API,
		Dial:         chat.TransportDialer(c.TransportConfig(), c.Logger),
		Logger:       c.Logger,
		UserID:       c.Config.UserID,
		Username:     c.Config.Username,
		Language:     c.Config.Language,
		PageSize:     c.Config.HistoryPageSize,
		TypingExpiry: c.Config.TypingExpiry.Std(),
		TypingIdle:   c.Config.TypingIdle.Std(),
	}
}

// Close releases every session and flushes the logger.
func (c *Client) Close() {
	c.Registry.Close()
	_ = c.Logger.Sync()
}
