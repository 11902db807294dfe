// Package extractor turns the rendered markup of a single fragrance product
// page into a models.FragranceRecord.
//
// Extraction is a pure function of its input: no network access, no shared
// state. Each field is read by its own function and a field that cannot be
// located keeps its zero value instead of failing the record. Only two
// conditions fail a whole page: markup that cannot be parsed at all, and a
// page with no product heading.
package extractor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/sillage/models"
	"golang.org/x/net/html"
)

// page is the parsed document plus the product heading every field
// function may rely on.
type page struct {
	doc     *goquery.Document
	heading *goquery.Selection
}

// fieldFunc fills one field of rec. It must not touch other fields.
type fieldFunc func(p *page, rec *models.FragranceRecord)

// fields runs in order; gender runs after title so it can fall back on it.
var fields = []struct {
	name string
	fn   fieldFunc
}{
	{"title", extractTitle},
	{"sex", extractSex},
	{"image", extractImage},
	{"accords", extractAccords},
	{"notes", extractNotes},
}

// Extract parses markup fetched from sourceURL. sourceURL is used only in
// error messages and logs.
//
// The returned error is a *models.Error with code ErrCodeMalformedMarkup or
// ErrCodeNotAProductPage.
func Extract(sourceURL, markup string) (*models.FragranceRecord, error) {
	doc, err := parse(markup)
	if err != nil {
		return nil, models.NewError(
			models.ErrCodeMalformedMarkup,
			fmt.Sprintf("cannot parse markup from %s", sourceURL),
			err,
		)
	}

	heading := findHeading(doc)
	if heading == nil {
		return nil, models.NewError(
			models.ErrCodeNotAProductPage,
			fmt.Sprintf("no product heading found on %s", sourceURL),
			nil,
		)
	}

	p := &page{doc: doc, heading: heading}
	rec := models.NewFragranceRecord()
	for _, f := range fields {
		runField(sourceURL, f.name, f.fn, p, rec)
	}
	return rec, nil
}

// runField isolates a single field: a panic inside fn is logged and the
// field keeps whatever default it had.
func runField(sourceURL, name string, fn fieldFunc, p *page, rec *models.FragranceRecord) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("field extraction panicked, using default",
				"url", sourceURL,
				"field", name,
				"panic", r,
			)
		}
	}()
	fn(p, rec)
}

var (
	errEmptyMarkup = errors.New("empty markup")
	errNoTags      = errors.New("no markup tags in input")
)

// parse validates that markup contains at least one tag before building
// the goquery document. html.Parse alone accepts any byte string, so plain
// text would otherwise be reported as a missing heading.
func parse(markup string) (*goquery.Document, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, errEmptyMarkup
	}

	tokenizer := html.NewTokenizer(strings.NewReader(markup))
	hasTag := false
scan:
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != io.EOF {
				return nil, fmt.Errorf("tokenize: %w", err)
			}
			break scan
		case html.StartTagToken, html.SelfClosingTagToken:
			hasTag = true
			break scan
		}
	}
	if !hasTag {
		return nil, errNoTags
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return doc, nil
}

// findHeading returns the first product heading with visible text.
func findHeading(doc *goquery.Document) *goquery.Selection {
	for _, sel := range headingSelectors {
		h := doc.FindMatcher(sel).First()
		if h.Length() > 0 && collapse(h.Text()) != "" {
			return h
		}
	}
	return nil
}

// collapse trims s and folds internal whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
