package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/sillage/models"
)

// extractTitle fills Title, House and PerfumeName.
//
// The heading reads "<perfume> <house>" followed by a small-print gender
// marker. The marker is dropped from the title; the house suffix is kept in
// the title and stripped for PerfumeName.
func extractTitle(p *page, rec *models.FragranceRecord) {
	h := p.heading.Clone()
	h.FindMatcher(genderMarker).Remove()
	title := trimGenderSuffix(collapse(h.Text()))

	house := firstText(p.doc.Selection, brandSelectors)

	rec.Title = title
	rec.House = house
	rec.PerfumeName = stripSuffixWord(title, house)
}

// extractSex scans the heading area for a known gender marker.
func extractSex(p *page, rec *models.FragranceRecord) {
	candidates := []string{
		p.heading.FindMatcher(genderMarker).Text(),
		p.heading.Text(),
		p.doc.FindMatcher(subheadingSelector).Text(),
	}
	for _, text := range candidates {
		if sex := matchGender(text); sex != "" {
			rec.Sex = sex
			return
		}
	}
}

// extractImage reads the main product image URL.
func extractImage(p *page, rec *models.FragranceRecord) {
	for _, sel := range imageSelectors {
		img := p.doc.FindMatcher(sel).First()
		if img.Length() == 0 {
			continue
		}
		if src := imageSource(img); src != "" {
			rec.Image = src
			return
		}
	}
}

// extractAccords collects accord chips in display order. Repeated chips are
// kept as they appear.
func extractAccords(p *page, rec *models.FragranceRecord) {
	accords := make([]string, 0, 8)
	p.doc.FindMatcher(accordSelector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.ToLower(collapse(s.Text())); text != "" {
			accords = append(accords, text)
		}
	})
	rec.Accords = accords
}

// stageLabels maps the pyramid section headings to their stage keys.
var stageLabels = []struct {
	label string
	stage string
}{
	{"top notes", models.NoteTop},
	{"middle notes", models.NoteMiddle},
	{"heart notes", models.NoteMiddle},
	{"base notes", models.NoteBase},
}

// extractNotes reads the notes pyramid.
//
// Staged sections are tried first. Only when they hold no note at all is
// the unclassified list consulted, so a page never mixes the two shapes.
// A staged section whose heading exists but lists nothing keeps its key
// with an empty list; a missing section has no key.
func extractNotes(p *page, rec *models.FragranceRecord) {
	staged, count := stagedNotes(p.doc)
	if count > 0 {
		rec.Notes = staged
		return
	}

	if flat := unclassifiedNotes(p.doc); len(flat) > 0 {
		rec.Notes = map[string][]models.NoteItem{models.NoteUnclassified: flat}
		return
	}

	rec.Notes = staged
}

// stagedNotes returns the notes per stage for every section heading found,
// and the total number of notes across stages.
func stagedNotes(doc *goquery.Document) (map[string][]models.NoteItem, int) {
	notes := map[string][]models.NoteItem{}
	total := 0

	doc.FindMatcher(pyramidHeadings).Each(func(_ int, h *goquery.Selection) {
		stage := stageOf(h.Text())
		if stage == "" {
			return
		}
		items := noteItems(h.Next())
		if _, seen := notes[stage]; !seen {
			notes[stage] = []models.NoteItem{}
		}
		// A repeated heading for the same stage extends it.
		notes[stage] = append(notes[stage], items...)
		total += len(items)
	})
	return notes, total
}

// unclassifiedNotes returns the flat note list used by pages without a
// stage breakdown.
func unclassifiedNotes(doc *goquery.Document) []models.NoteItem {
	var items []models.NoteItem
	doc.FindMatcher(unclassifiedHead).Each(func(_ int, h *goquery.Selection) {
		items = append(items, noteItems(h.Next())...)
	})
	return items
}

// noteItems collects note cells from the block following a section heading.
// A cell is a child of a centred flex row whose second child is a div
// holding the note name; its first image is the note thumbnail.
func noteItems(block *goquery.Selection) []models.NoteItem {
	items := []models.NoteItem{}
	if block.Length() == 0 || goquery.NodeName(block) != "div" {
		return items
	}

	block.FindMatcher(noteCells).Each(func(_ int, cell *goquery.Selection) {
		nameEl := cell.Children().Eq(1)
		if nameEl.Length() == 0 || goquery.NodeName(nameEl) != "div" {
			return
		}
		name := collapse(nameEl.Text())
		if name == "" {
			return
		}
		items = append(items, models.NoteItem{
			Name:  name,
			Image: imageSource(cell.FindMatcher(noteImage).First()),
		})
	})
	return items
}

// stageOf maps a pyramid heading text to a stage key, or "".
func stageOf(heading string) string {
	lower := strings.ToLower(collapse(heading))
	for _, l := range stageLabels {
		if strings.Contains(lower, l.label) {
			return l.stage
		}
	}
	return ""
}

// genderMarkers are checked longest first so "for women and men" is not
// reported as "for women".
var genderMarkers = []struct {
	marker string
	sex    string
}{
	{"for women and men", models.SexUnisex},
	{"for men and women", models.SexUnisex},
	{"for women", models.SexWomen},
	{"for men", models.SexMen},
}

// matchGender returns the canonical gender string found in text, or "".
func matchGender(text string) string {
	lower := strings.ToLower(collapse(text))
	for _, g := range genderMarkers {
		if strings.Contains(lower, g.marker) {
			return g.sex
		}
	}
	return ""
}

// trimGenderSuffix drops a trailing gender marker that was not wrapped in
// its own element.
func trimGenderSuffix(title string) string {
	for _, g := range genderMarkers {
		if t, ok := cutSuffixFold(title, g.marker); ok && t != "" {
			return strings.TrimSpace(t)
		}
	}
	return title
}

// stripSuffixWord removes suffix from s when s ends with it as a separate
// word (case-insensitive). s is returned unchanged otherwise.
func stripSuffixWord(s, suffix string) string {
	if suffix == "" {
		return s
	}
	t, ok := cutSuffixFold(s, suffix)
	if !ok || !strings.HasSuffix(t, " ") {
		return s
	}
	return strings.TrimSpace(t)
}

// cutSuffixFold is strings.CutSuffix with Unicode case folding.
func cutSuffixFold(s, suffix string) (string, bool) {
	if len(suffix) > len(s) {
		return s, false
	}
	cut := len(s) - len(suffix)
	if !strings.EqualFold(s[cut:], suffix) {
		return s, false
	}
	return s[:cut], true
}

// firstText returns the collapsed text of the first non-empty match,
// trying selectors in order.
func firstText(root *goquery.Selection, selectors []cascadia.Selector) string {
	for _, sel := range selectors {
		var found string
		root.FindMatcher(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = collapse(s.Text())
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// imageSource returns the preferred source URL of img, normalised.
func imageSource(img *goquery.Selection) string {
	if img.Length() == 0 {
		return ""
	}
	for _, attr := range lazyImageAttrs {
		if v, ok := img.Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return normalizeURL(v)
			}
		}
	}
	return ""
}

// normalizeURL turns a protocol-relative URL into an https one.
func normalizeURL(raw string) string {
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}
