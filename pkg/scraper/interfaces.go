package scraper

import (
	"context"

	"magistodl/internal/downloader"
	"magistodl/pkg/models"
	"magistodl/pkg/ui"
)

// Authenticator establishes a logged-in browsing context
type Authenticator interface {
	Establish(ctx context.Context) error
}

// Enumerator lists candidate resource links
type Enumerator interface {
	Enumerate(ctx context.Context) ([]string, error)
}

// Validator keeps the links that are individual resources
type Validator interface {
	Validate(urls []string) ([]models.ResourceReference, error)
}

// Reconciler decides whether a resource is already downloaded
type Reconciler interface {
	Reconcile(ctx context.Context, ref models.ResourceReference) (models.MatchOutcome, error)
}

// Retriever downloads one resource
type Retriever interface {
	Download(ctx context.Context, ref models.ResourceReference) (*downloader.Result, error)
}

// Progress receives per-resource outcomes for display
type Progress interface {
	Begin(total int)
	StartResource(url string)
	Downloaded(url, file string)
	Unconfirmed(url string)
	Skipped(url, method string)
	Failed(url string, err error)
	Complete(s ui.Summary)
}

type nopProgress struct{}

func (nopProgress) Begin(int)                  {}
func (nopProgress) StartResource(string)       {}
func (nopProgress) Downloaded(string, string)  {}
func (nopProgress) Unconfirmed(string)         {}
func (nopProgress) Skipped(string, string)     {}
func (nopProgress) Failed(string, error)       {}
func (nopProgress) Complete(ui.Summary)        {}
