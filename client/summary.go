package client

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/use-agent/sillage/models"
)

// stageOrder is the display order of note stages; unknown stages follow
// alphabetically.
var stageOrder = []string{models.NoteTop, models.NoteMiddle, models.NoteBase, models.NoteUnclassified}

// WriteSummary prints a human-readable report of resp.
func WriteSummary(w io.Writer, resp *models.ScrapeResponse) {
	fmt.Fprintf(w, "Results: %d\n", len(resp.Results))
	fmt.Fprintf(w, "Errors: %d\n", len(resp.Errors))

	if len(resp.Results) > 0 {
		fmt.Fprintln(w, "\nExtracted Fragrances:")
	}
	for i, rec := range resp.Results {
		fmt.Fprintf(w, "\n--- Fragrance %d ---\n", i+1)
		fmt.Fprintf(w, "Title: %s\n", orNA(rec.Title))
		fmt.Fprintf(w, "House: %s\n", orNA(rec.House))
		fmt.Fprintf(w, "Perfume Name: %s\n", orNA(rec.PerfumeName))
		fmt.Fprintf(w, "Sex: %s\n", orNA(rec.Sex))
		fmt.Fprintf(w, "Image: %s\n", orNA(rec.Image))

		if len(rec.Accords) > 0 {
			fmt.Fprintf(w, "Accords: %s\n", strings.Join(rec.Accords, ", "))
		} else {
			fmt.Fprintln(w, "Accords: None")
		}

		if len(rec.Notes) == 0 {
			fmt.Fprintln(w, "Notes: None")
			continue
		}
		fmt.Fprintln(w, "Notes:")
		for _, stage := range orderedStages(rec.Notes) {
			fmt.Fprintf(w, "  %s Notes:\n", capitalize(stage))
			for _, n := range rec.Notes[stage] {
				fmt.Fprintf(w, "    - %s (Image: %s)\n", n.Name, orNA(n.Image))
			}
		}
	}

	if len(resp.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, e := range resp.Errors {
			fmt.Fprintf(w, "- %s: %s\n", e.URL, e.Error)
		}
	}
}

func orderedStages(notes map[string][]models.NoteItem) []string {
	out := make([]string, 0, len(notes))
	for _, s := range stageOrder {
		if _, ok := notes[s]; ok {
			out = append(out, s)
		}
	}
	var rest []string
	for s := range notes {
		if !slices.Contains(stageOrder, s) {
			rest = append(rest, s)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
