package dto

import "github.com/shopspring/decimal"

// PullRequest is the body of POST /api/sync/pull/:storeId/:integrationId.
type PullRequest struct {
	DryRun bool `json:"dry_run"`
	Limit  int  `json:"limit" validate:"omitempty,min=1,max=1000"`
}

// SelectivePullRequest scopes a pull to an explicit SKU allow-list.
type SelectivePullRequest struct {
	SKUs   []string `json:"skus" validate:"required,min=1,max=500,dive,required"`
	DryRun bool     `json:"dry_run"`
}

// SKUError captures why a single SKU failed inside a batch.
type SKUError struct {
	SKU   string `json:"sku"`
	Error string `json:"error"`
}

// SyncResult summarizes one pull invocation or one movement batch drain.
// Batches always report partial success; per-SKU failures never abort the run.
type SyncResult struct {
	Success int        `json:"success"`
	Failed  int        `json:"failed"`
	Skipped int        `json:"skipped"`
	Errors  []SKUError `json:"errors"`
	DryRun  bool       `json:"dry_run,omitempty"`
}

// PullResponse is the wire envelope of a pull trigger; partial results of an
// aborted run ride in the same shape next to the error detail.
type PullResponse struct {
	Result *SyncResult `json:"result"`
}

// Product sync statuses returned by the projection.
const (
	SyncStatusPending        = "pending"
	SyncStatusSynced         = "synced"
	SyncStatusDifferent      = "different"
	SyncStatusNotInContifico = "not_in_contifico"
	SyncStatusError          = "error"
)

// ProductSyncStatus is the computed reconciliation state of one store product.
type ProductSyncStatus struct {
	SKU            string           `json:"sku"`
	Name           string           `json:"name"`
	StockStore     decimal.Decimal  `json:"stock_store"`
	StockContifico *decimal.Decimal `json:"stock_contifico"`
	Status         string           `json:"status"`
	LastSync       *string          `json:"last_sync"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

type SyncStatusResponse struct {
	Products   []ProductSyncStatus `json:"products"`
	Pagination Pagination          `json:"pagination"`
	LastSyncAt *string             `json:"last_sync_at"`
}

// SyncStatusQuery holds the filter/pagination params of the projection endpoint.
type SyncStatusQuery struct {
	Status string
	Search string
	Page   int
	Limit  int
}
