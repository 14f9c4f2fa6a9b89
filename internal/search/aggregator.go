// Package search fans a flight search out to every active supplier, answers
// with the first successful batch and lets clients poll for the merged view
// of all batches.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flight-aggregator/internal/metrics"
	"flight-aggregator/internal/models"
	"flight-aggregator/internal/revalidate"
	"flight-aggregator/internal/supplier"
)

var (
	ErrNoActiveSupplier = errors.New("no active supplier for flight search")
	ErrNoResults        = errors.New("no result from any supplier")
	ErrSearchNotFound   = errors.New("search not found")
)

// BatchStore persists raw supplier batches between search and polling
type BatchStore interface {
	SaveSearchBatch(ctx context.Context, batch *models.SearchBatch) error
	ListSearchBatches(ctx context.Context, searchID string) ([]models.SearchBatch, error)
	DeleteSearchBatches(ctx context.Context, searchID string) error
}

// SupplierSource lists the suppliers enabled for a module
type SupplierSource interface {
	ActiveSuppliers(ctx context.Context, module string) ([]string, error)
}

type ErrorLogger interface {
	LogError(ctx context.Context, entry models.ErrorLog) error
}

type Resolver interface {
	Lookup(code string) (supplier.Adapter, error)
}

type Options struct {
	SupplierTimeout time.Duration
	CompleteAfter   time.Duration
}

type Aggregator struct {
	suppliers SupplierSource
	registry  Resolver
	store     BatchStore
	errorLog  ErrorLogger
	rates     revalidate.RateSource
	metrics   *metrics.Metrics
	log       *logrus.Logger
	opts      Options

	now   func() time.Time
	newID func() string

	inflight sync.WaitGroup
}

func NewAggregator(suppliers SupplierSource, registry Resolver, store BatchStore, errorLog ErrorLogger,
	rates revalidate.RateSource, m *metrics.Metrics, log *logrus.Logger, opts Options) *Aggregator {
	if opts.SupplierTimeout <= 0 {
		opts.SupplierTimeout = 45 * time.Second
	}
	if opts.CompleteAfter <= 0 {
		opts.CompleteAfter = 30 * time.Second
	}
	return &Aggregator{
		suppliers: suppliers,
		registry:  registry,
		store:     store,
		errorLog:  errorLog,
		rates:     rates,
		metrics:   m,
		log:       log,
		opts:      opts,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

type batchResult struct {
	provider string
	routes   []models.Route
	err      error
}

// Search queries every active supplier concurrently and returns the first
// non-empty successful batch. Slower suppliers keep running after Search
// returns; their batches are persisted for CheckRouting.
func (a *Aggregator) Search(ctx context.Context, criteria models.SearchCriteria) (*models.SearchResult, error) {
	codes, err := a.suppliers.ActiveSuppliers(ctx, models.ModuleFlight)
	if err != nil {
		return nil, fmt.Errorf("failed to load active suppliers: %w", err)
	}

	adapters := make([]supplier.Adapter, 0, len(codes))
	for _, code := range codes {
		ad, err := a.registry.Lookup(code)
		if err != nil {
			a.log.WithField("supplier", code).Warn("active supplier has no adapter")
			continue
		}
		adapters = append(adapters, ad)
	}
	if len(adapters) == 0 {
		return nil, ErrNoActiveSupplier
	}

	searchID := a.newID()
	started := a.now()
	results := make(chan batchResult, len(adapters))
	detached := context.WithoutCancel(ctx)

	for _, ad := range adapters {
		a.inflight.Add(1)
		go func(ad supplier.Adapter) {
			defer a.inflight.Done()
			results <- a.fetch(detached, ad, criteria, searchID, started, len(adapters))
		}(ad)
	}

	for range adapters {
		select {
		case res := <-results:
			if res.err != nil || len(res.routes) == 0 {
				continue
			}
			a.log.WithFields(logrus.Fields{
				"searchId": searchID,
				"supplier": res.provider,
				"routes":   len(res.routes),
			}).Info("search answered")
			return &models.SearchResult{
				SearchID: searchID,
				Routes:   SortByFare(Merge(res.routes)),
				Complete: len(adapters) == 1,
			}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, ErrNoResults
}

func (a *Aggregator) fetch(ctx context.Context, ad supplier.Adapter, criteria models.SearchCriteria,
	searchID string, started time.Time, expected int) batchResult {
	code := ad.Code()
	callCtx, cancel := context.WithTimeout(ctx, a.opts.SupplierTimeout)
	defer cancel()

	t0 := time.Now()
	routes, err := ad.Search(callCtx, criteria)

	batch := &models.SearchBatch{
		SearchID:      searchID,
		Provider:      code,
		ExpectedCount: expected,
		StartedAt:     started,
	}
	if err != nil {
		a.metrics.ObserveSupplierCall(code, "search", metrics.OutcomeTransient, t0)
		a.log.WithError(err).WithFields(logrus.Fields{"searchId": searchID, "supplier": code}).Warn("supplier search failed")
		request, _ := json.Marshal(criteria)
		if lerr := a.errorLog.LogError(ctx, supplier.NewErrorLog("search", code, err, request, nil)); lerr != nil {
			a.log.WithError(lerr).Error("failed to write error log")
		}
		batch.Failed = true
	} else {
		a.metrics.ObserveSupplierCall(code, "search", metrics.OutcomeOK, t0)
		for i := range routes {
			if routes[i].Provider == "" {
				routes[i].Provider = code
			}
		}
		routes, err = normalizeCurrency(ctx, a.rates, routes, criteria.Currency)
		if err != nil {
			a.log.WithError(err).WithFields(logrus.Fields{"searchId": searchID, "supplier": code}).Warn("search batch not priced in requested currency")
			if lerr := a.errorLog.LogError(ctx, supplier.NewErrorLog("search", code, err, nil, nil)); lerr != nil {
				a.log.WithError(lerr).Error("failed to write error log")
			}
			batch.Failed = true
		} else {
			batch.Routes = routes
		}
	}

	result := "ok"
	if batch.Failed {
		result = "failed"
	}
	if serr := a.store.SaveSearchBatch(ctx, batch); serr != nil {
		result = "unsaved"
		a.log.WithError(serr).WithFields(logrus.Fields{"searchId": searchID, "supplier": code}).Error("failed to persist search batch")
	}
	a.metrics.SearchBatches.WithLabelValues(code, result).Inc()

	if err != nil {
		return batchResult{provider: code, err: supplier.NewProviderError(code, "search", err)}
	}
	return batchResult{provider: code, routes: routes}
}

// CheckRouting merges every batch received so far. The search is complete once
// all expected suppliers answered or CompleteAfter elapsed; completed searches
// have their batches removed.
func (a *Aggregator) CheckRouting(ctx context.Context, searchID string) (*models.SearchResult, error) {
	batches, err := a.store.ListSearchBatches(ctx, searchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load search batches: %w", err)
	}
	if len(batches) == 0 {
		return nil, ErrSearchNotFound
	}

	expected := 0
	started := batches[0].StartedAt
	sets := make([][]models.Route, 0, len(batches))
	for _, b := range batches {
		if b.ExpectedCount > expected {
			expected = b.ExpectedCount
		}
		if b.StartedAt.Before(started) {
			started = b.StartedAt
		}
		if !b.Failed {
			sets = append(sets, b.Routes)
		}
	}

	complete := a.now().Sub(started) >= a.opts.CompleteAfter || len(batches) >= expected
	routes := SortByFare(Merge(sets...))

	if complete {
		if err := a.store.DeleteSearchBatches(ctx, searchID); err != nil {
			a.log.WithError(err).WithField("searchId", searchID).Warn("failed to delete search batches")
		}
	}

	return &models.SearchResult{SearchID: searchID, Routes: routes, Complete: complete}, nil
}

// Wait blocks until every detached supplier call has been persisted
func (a *Aggregator) Wait() {
	a.inflight.Wait()
}
