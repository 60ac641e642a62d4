package crawl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Default crawl budgets.
const (
	DefaultMaxDepth        = 1
	DefaultConcurrency     = 5
	DefaultMaxPerNodeRefs  = 10
	DefaultMaxPerNodeCites = 10
	DefaultMaxTotalNodes   = 1500

	// batchFactor × ConcurrencyLimit frontier entries are processed per round.
	batchFactor = 10
)

var optionsValidate = validator.New()

// Options bounds a crawl.
type Options struct {
	StartID          string `validate:"required"`
	MaxDepth         int    `validate:"gte=0"`
	ConcurrencyLimit int    `validate:"gte=1"`
	MaxPerNodeRefs   int    `validate:"gte=0"`
	MaxPerNodeCites  int    `validate:"gte=0"`
	MaxTotalNodes    int    `validate:"gte=1"`
}

// DefaultOptions returns the default budgets for a crawl from startID.
func DefaultOptions(startID string) Options {
	return Options{
		StartID:          startID,
		MaxDepth:         DefaultMaxDepth,
		ConcurrencyLimit: DefaultConcurrency,
		MaxPerNodeRefs:   DefaultMaxPerNodeRefs,
		MaxPerNodeCites:  DefaultMaxPerNodeCites,
		MaxTotalNodes:    DefaultMaxTotalNodes,
	}
}

// Validate checks that every budget is in range.
func (o Options) Validate() error {
	err := optionsValidate.Struct(o)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid crawl options: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid crawl options: %s", strings.Join(msgs, "; "))
}

// BatchSize returns how many frontier entries are fetched per round.
func (o Options) BatchSize() int {
	return o.ConcurrencyLimit * batchFactor
}
