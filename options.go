package facetdex

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	docModel  Model
	fields    []FieldSpec
	schemaErr error

	maxCorrelationRows int
	maxJoinIDs         int
	overflowPolicy     OverflowPolicy
	maxBatchSize       int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithSchema declares the index schema. Required unless WithSchemaOf
// is used.
func WithSchema(fields ...FieldSpec) Option {
	return optionFunc(func(c *clientConfig) {
		c.fields = append(c.fields, fields...)
	})
}

// WithModel sets the document model for a fresh index.
// Defaults to ModelFact. An existing index keeps its persisted model;
// switching requires Catalog().Rebuild.
func WithModel(m Model) Option {
	return optionFunc(func(c *clientConfig) {
		c.docModel = m
	})
}

// WithJoinLimits bounds the fact-layout facet join: maxCorrelationRows
// caps the rows scanned for entity-id correlation, maxJoinIDs caps the
// candidate set injected into the facet query.
func WithJoinLimits(maxCorrelationRows, maxJoinIDs int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxCorrelationRows = maxCorrelationRows
		c.maxJoinIDs = maxJoinIDs
	})
}

// WithOverflowPolicy sets the behavior when the facet join candidate
// set exceeds the clause bound. Defaults to OverflowFail.
func WithOverflowPolicy(p OverflowPolicy) Option {
	return optionFunc(func(c *clientConfig) {
		c.overflowPolicy = p
	})
}

// WithMaxBatchSize sets the maximum number of items per batch
// operation. Default: 100.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and
// durations) on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
