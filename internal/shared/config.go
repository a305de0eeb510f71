package shared

import (
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type ListenerConfig struct {
	ServerURL   string `json:"server_url" mapstructure:"server_url"`
	ListenAddr  string `json:"listen_addr" mapstructure:"listen_addr"`
	CallbackURL string `json:"callback_url" mapstructure:"callback_url"`

	DestinationID string `json:"destination_id" mapstructure:"destination_id"`
	Name          string `json:"name" mapstructure:"name"`
	Context       string `json:"context" mapstructure:"context"`

	// ServerPublicKey (base64 ed25519) enables signature checks on deliveries.
	ServerPublicKey     string `json:"server_public_key" mapstructure:"server_public_key"`
	SignatureWindowSecs int    `json:"signature_window_seconds" mapstructure:"signature_window_seconds"`
	RequestTimeoutSecs  int    `json:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	UnsubscribeOnExit   bool   `json:"unsubscribe_on_exit" mapstructure:"unsubscribe_on_exit"`

	// SubscriptionURI is written back after a successful subscribe.
	SubscriptionURI string `json:"subscription_uri" mapstructure:"subscription_uri"`
}

// ListenerEnvPrefix prefixes environment overrides, e.g. RFL_SERVER_URL.
const ListenerEnvPrefix = "RFL"

func LoadListenerConfig(path string) (*ListenerConfig, error) {
	v := viper.New()
	v.SetDefault("server_url", "http://127.0.0.1:8080")
	v.SetDefault("listen_addr", ":9090")
	v.SetDefault("callback_url", "")
	v.SetDefault("destination_id", "")
	v.SetDefault("name", "rf-listener")
	v.SetDefault("context", "")
	v.SetDefault("server_public_key", "")
	v.SetDefault("signature_window_seconds", 300)
	v.SetDefault("request_timeout_seconds", 20)
	v.SetDefault("unsubscribe_on_exit", true)
	v.SetDefault("subscription_uri", "")

	v.SetEnvPrefix(ListenerEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	var c ListenerConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if c.ServerURL == "" {
		return nil, errors.New("server_url is required")
	}
	if c.CallbackURL == "" {
		return nil, errors.New("callback_url is required")
	}
	if c.RequestTimeoutSecs <= 0 {
		c.RequestTimeoutSecs = 20
	}
	return &c, nil
}

func SaveListenerConfig(path string, c *ListenerConfig) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}
