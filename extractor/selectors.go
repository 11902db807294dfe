package extractor

import "github.com/andybalholm/cascadia"

// Product page selectors. The catalog's markup is an external contract that
// drifts; every selector the extractor depends on lives here so a layout
// change touches this table and the one field function that reads it.
var (
	// headingSelectors locate the product heading, in priority order.
	headingSelectors = []cascadia.Selector{
		cascadia.MustCompile("#toptop > h1"),
		cascadia.MustCompile("h1[itemprop='name']"),
	}

	// genderMarker is the small-print gender label nested in the heading.
	genderMarker = cascadia.MustCompile("small")

	// subheadingSelector covers the text directly below the heading.
	subheadingSelector = cascadia.MustCompile("#toptop > h2, #toptop > h3, #toptop > p")

	// brandSelectors locate the house name, in priority order.
	brandSelectors = []cascadia.Selector{
		cascadia.MustCompile("[itemprop='brand'] [itemprop='name']"),
		cascadia.MustCompile("[itemprop='brand']"),
		cascadia.MustCompile(".breadcrumbs a[href*='/designers/'], nav[aria-label='breadcrumb'] a[href*='/designers/']"),
	}

	// imageSelectors locate the main product image, in priority order.
	imageSelectors = []cascadia.Selector{
		cascadia.MustCompile("img[itemprop='image']"),
		cascadia.MustCompile(".text-center .small-12 img"),
	}

	accordSelector = cascadia.MustCompile(".accord-bar")

	// Notes pyramid.
	pyramidHeadings  = cascadia.MustCompile("#pyramid h4")
	unclassifiedHead = cascadia.MustCompile("#pyramid .notes-box")
	noteCells        = cascadia.MustCompile("div[style*='justify-content'] > div")
	noteImage        = cascadia.MustCompile("img")
)

// lazyImageAttrs lists image source attributes, most preferred first.
// Lazy-loading attributes carry the real URL while src may be a placeholder.
var lazyImageAttrs = []string{"data-lazy-src", "data-src", "src"}
