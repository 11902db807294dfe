package engine

import (
	"context"
	"fmt"
)

// RodFetchFunc renders a page in headless Chrome. It is injected from main
// so the engine package does not import the scraper package.
type RodFetchFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// RodEngine is a browser-based engine. The forceStealth flag distinguishes
// the plain "rod" tier from the "rod-stealth" tier.
type RodEngine struct {
	fetchFunc    RodFetchFunc
	forceStealth bool
	name         string
}

// NewRodEngine creates a RodEngine around fetchFunc.
func NewRodEngine(fetchFunc RodFetchFunc, forceStealth bool) *RodEngine {
	name := "rod"
	if forceStealth {
		name = "rod-stealth"
	}
	return &RodEngine{
		fetchFunc:    fetchFunc,
		forceStealth: forceStealth,
		name:         name,
	}
}

func (e *RodEngine) Name() string { return e.name }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.fetchFunc == nil {
		return nil, fmt.Errorf("%s: fetchFunc not configured", e.name)
	}

	r := *req
	r.Stealth = e.forceStealth

	result, err := e.fetchFunc(ctx, &r)
	if err != nil {
		// Keep the error code intact for the retry policy.
		return nil, Classify(err, fmt.Sprintf("%s: render %s", e.name, req.URL))
	}
	result.EngineName = e.name
	return result, nil
}
