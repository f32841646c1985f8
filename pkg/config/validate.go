package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/papercomputeco/chainchat/pkg/ledger/evm"
)

// errMalformedURL hides the raw URL, which may embed a provider API key.
var errMalformedURL = errors.New("ledger.rpc_url: malformed url")

// Validate checks the settings every command depends on: ledger provider,
// archive driver and stream.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]string{ProviderEVM, ProviderMemory}, c.Ledger.Provider) {
		errs = append(errs, fmt.Errorf("ledger.provider: unknown provider %q", c.Ledger.Provider))
	}

	switch c.Storage.Archive {
	case "", ArchiveMemory, ArchiveSQLite:
	case ArchivePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn: required by the postgres archive"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.archive: unknown driver %q", c.Storage.Archive))
	}

	if c.Stream.KafkaBrokers != "" && c.Stream.KafkaTopic == "" {
		errs = append(errs, errors.New("stream.kafka_topic: required when brokers are set"))
	}

	return errors.Join(errs...)
}

// ValidateLedger checks the chain settings. With write set, the wallet must be
// configured and consistent.
func (c *Config) ValidateLedger(write bool) error {
	if c.Ledger.Provider == ProviderMemory {
		return nil
	}

	var errs []error

	if c.Ledger.RPCURL == "" {
		errs = append(errs, errors.New("ledger.rpc_url: required"))
	} else if err := validateEndpoint(c.Ledger.RPCURL); err != nil {
		errs = append(errs, err)
	}

	if !evm.IsContractAddress(c.Ledger.Contract) {
		errs = append(errs, fmt.Errorf("ledger.contract: invalid address %q", c.Ledger.Contract))
	}

	if c.Ledger.Confirmations == 0 {
		errs = append(errs, errors.New("ledger.confirmations: must be at least 1"))
	}

	switch {
	case c.Ledger.PrivateKey != "":
		if _, err := evm.ParseWallet(c.Ledger.PrivateKey, c.Ledger.PublicKey); err != nil {
			errs = append(errs, fmt.Errorf("ledger.private_key: %w", err))
		}
	case write:
		errs = append(errs, errors.New("ledger.private_key: required to send messages"))
	}

	return errors.Join(errs...)
}

// ValidateFollow checks that following is possible: the endpoint must be a
// websocket for live subscriptions.
func (c *Config) ValidateFollow() error {
	if c.Ledger.Provider == ProviderMemory {
		return nil
	}

	u, err := url.Parse(c.Ledger.RPCURL)
	if err != nil {
		return errMalformedURL
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("ledger.rpc_url: following requires a ws:// or wss:// endpoint, got %s://", u.Scheme)
	}

	return nil
}

// ValidateConversation checks that a conversation is named.
func (c *Config) ValidateConversation() error {
	if c.Conversation.Name == "" {
		return errors.New("conversation.name: required (set CONVERSATION_ID or pass it as an argument)")
	}
	return nil
}

// ValidateProducer checks the generated message settings.
func (c *Config) ValidateProducer() error {
	var errs []error

	if c.Conversation.MessageCount == 0 {
		errs = append(errs, errors.New("conversation.message_count: must be at least 1"))
	}
	if c.Conversation.MessageSize == 0 {
		errs = append(errs, errors.New("conversation.message_size: must be at least 1"))
	}

	return errors.Join(errs...)
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errMalformedURL
	}

	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("ledger.rpc_url: unsupported scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("ledger.rpc_url: missing host")
	}

	return nil
}
