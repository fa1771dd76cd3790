// Package gateway assembles the index, validator and client for one contract
// from the runtime configuration.
package gateway

import (
	"fmt"
	"net/http"

	"github.com/erraggy/oasgate/client"
	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/httpvalidator"
	"github.com/erraggy/oasgate/internal/config"
	"github.com/erraggy/oasgate/schemaindex"
)

// Gateway bundles everything built from one contract. All fields are safe
// for concurrent use.
type Gateway struct {
	Document  *contract.Document
	Index     *schemaindex.Index
	Validator *httpvalidator.Validator
	Client    *client.Client
}

// New indexes doc and builds the validator and client. clientOpts are
// applied after the options derived from cfg.
func New(doc *contract.Document, cfg *config.Config, logger contract.Logger, clientOpts ...client.Option) (*Gateway, error) {
	if doc == nil {
		return nil, fmt.Errorf("gateway: document cannot be nil")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	logger = contract.LoggerOrNop(logger)

	idx, err := schemaindex.Build(doc,
		schemaindex.WithLogger(logger),
		schemaindex.WithMatchPolicy(cfg.MatchPolicy()),
	)
	if err != nil {
		return nil, err
	}
	v, err := httpvalidator.New(idx, cfg.ValidatorOptions(logger)...)
	if err != nil {
		return nil, err
	}

	opts := []client.Option{
		client.WithBaseURL(cfg.Client.BaseURL),
		client.WithHTTPClient(&http.Client{Timeout: cfg.Client.Timeout}),
		client.WithContentTypePolicy(cfg.ContentTypePolicy()),
		client.WithLogger(logger),
	}
	c, err := client.New(idx, v, append(opts, clientOpts...)...)
	if err != nil {
		return nil, err
	}

	return &Gateway{Document: doc, Index: idx, Validator: v, Client: c}, nil
}

// Load parses the contract at path and builds a Gateway for it.
func Load(path string, cfg *config.Config, logger contract.Logger, clientOpts ...client.Option) (*Gateway, error) {
	if path == "" {
		return nil, fmt.Errorf("gateway: no contract given (use --contract or OASGATE_CONTRACT)")
	}
	doc, err := contract.ParseWithOptions(
		contract.WithFilePath(path),
		contract.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return New(doc, cfg, logger, clientOpts...)
}
