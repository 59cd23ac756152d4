package itinerary

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mjRam27/Explorix/internal/types"
)

const (
	// fallbackSeedLimit is the number of candidates seeded when the text
	// matches nothing but the context is place-rich. Policy: a vague
	// answer over real places should still yield a usable draft.
	fallbackSeedLimit = 6

	// fallbackPlacesPerDay sizes days when the text states no day count.
	fallbackPlacesPerDay = 3

	dateLayout = "2006-01-02"
)

var (
	dayHeaderRe = regexp.MustCompile(`(?i)day\s*\d+`)
	dayCountRe  = regexp.MustCompile(`(?i)(\d+)\s*day`)

	// Role delimiters some completion backends leak into plain text.
	controlTokens = []string{
		"<|system|>", "<|user|>", "<|assistant|>",
		"### System:", "### User:", "### Assistant:",
	}

	bulletReplacer = strings.NewReplacer("•", "-", "*", "-", "–", "-")
)

// parseStrategy is one way of extracting a day plan from text. Strategies
// are tried in declared order; the first to return days wins.
type parseStrategy struct {
	name string
	run  func(lines []string, text string, candidates []types.Place, startDate time.Time) []types.NormalizedDay
}

var strategies = []parseStrategy{
	{name: "explicit-days", run: parseExplicitDays},
	{name: "line-match-fallback", run: parseLineMatchFallback},
}

// ParseItineraryText converts unstructured model output into an ordered
// day-by-day plan of POI references. Only places present in candidates can
// enter the result, so hallucinated names never reach persisted state.
// Returns an empty slice when no plan could be extracted; the caller maps
// that to a parse-failure error. Output is deterministic for identical
// input.
func ParseItineraryText(text string, candidates []types.Place, startDate time.Time) []types.NormalizedDay {
	lines := normalizeLines(text)
	if len(lines) == 0 {
		return nil
	}

	for _, s := range strategies {
		if days := s.run(lines, text, candidates, startDate); len(days) > 0 {
			return days
		}
	}
	return nil
}

// normalizeLines strips control tokens, unifies bullet markers and splits
// the text into trimmed non-empty lines.
func normalizeLines(text string) []string {
	for _, tok := range controlTokens {
		text = strings.ReplaceAll(text, tok, "")
	}
	text = bulletReplacer.Replace(text)

	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// parseExplicitDays scans for "Day N" headers. Days are numbered by header
// order, not by the number printed in the text, so the plan stays coherent
// when the model miscounts. Lines matching no candidate are narrative and
// dropped; a header with no matching lines still yields an empty day.
func parseExplicitDays(lines []string, _ string, candidates []types.Place, startDate time.Time) []types.NormalizedDay {
	var days []types.NormalizedDay
	current := -1

	for _, line := range lines {
		if dayHeaderRe.MatchString(line) {
			days = append(days, types.NormalizedDay{
				Day:    len(days) + 1,
				Date:   dayDate(startDate, len(days)),
				Places: []types.NormalizedPlace{},
			})
			current = len(days) - 1
			// The header line often carries the day's places too.
		}
		if current < 0 {
			continue
		}
		for _, p := range matchPlaces(line, candidates) {
			days[current].Places = append(days[current].Places, types.NormalizedPlace{
				PlaceID: p.ID,
				Order:   len(days[current].Places) + 1,
			})
		}
	}
	return days
}

// parseLineMatchFallback handles text without day headers: every line is
// matched against the candidates in line order, each place at most once.
// When nothing matches but candidates exist, the first few candidates are
// seeded so a place-rich context still produces a draft. The day count
// comes from an explicit "<N> day" phrase, else from the match count.
func parseLineMatchFallback(lines []string, text string, candidates []types.Place, startDate time.Time) []types.NormalizedDay {
	used := make(map[int64]bool, len(candidates))
	var matched []types.Place
	for _, line := range lines {
		for _, p := range matchPlaces(line, candidates) {
			if !used[p.ID] {
				used[p.ID] = true
				matched = append(matched, p)
			}
		}
	}

	if len(matched) == 0 {
		if len(candidates) == 0 {
			return nil
		}
		seed := fallbackSeedLimit
		if seed > len(candidates) {
			seed = len(candidates)
		}
		matched = candidates[:seed]
	}

	totalDays := extractDayCount(text)
	if totalDays == 0 {
		totalDays = (len(matched) + fallbackPlacesPerDay - 1) / fallbackPlacesPerDay
	}
	if totalDays < 1 {
		totalDays = 1
	}
	if totalDays > len(matched) {
		totalDays = len(matched)
	}

	// Leading days absorb the remainder so no matched place is dropped.
	base := len(matched) / totalDays
	rem := len(matched) % totalDays

	var days []types.NormalizedDay
	idx := 0
	for d := 0; d < totalDays; d++ {
		size := base
		if d < rem {
			size++
		}
		day := types.NormalizedDay{
			Day:    d + 1,
			Date:   dayDate(startDate, d),
			Places: make([]types.NormalizedPlace, 0, size),
		}
		for i := 0; i < size; i++ {
			day.Places = append(day.Places, types.NormalizedPlace{
				PlaceID: matched[idx].ID,
				Order:   i + 1,
			})
			idx++
		}
		days = append(days, day)
	}
	return days
}

// matchPlaces returns the candidates whose titles appear in the line,
// case-insensitively, in candidate order.
func matchPlaces(line string, candidates []types.Place) []types.Place {
	lower := strings.ToLower(line)
	var matches []types.Place
	for _, p := range candidates {
		title := strings.ToLower(strings.TrimSpace(p.Title))
		if title == "" {
			continue
		}
		if strings.Contains(lower, title) {
			matches = append(matches, p)
		}
	}
	return matches
}

// extractDayCount reads an explicit "<N> day" phrase, returning 0 when
// absent.
func extractDayCount(text string) int {
	m := dayCountRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func dayDate(startDate time.Time, offset int) string {
	return startDate.AddDate(0, 0, offset).Format(dateLayout)
}

// NormalizeDraft converts a slots-based draft into the canonical
// day/order-indexed structure used for storage. Slot buckets are walked in
// fixed morning/afternoon/evening order and flattened into one ordered
// place list per day; dates start at baseDate and advance one calendar day
// per day. The POI store is not consulted here: place existence is
// validated at enrichment/read time, not write time.
func NormalizeDraft(draft types.ItineraryDraft, baseDate time.Time) (types.NormalizedItinerary, error) {
	destination := draft.Destination
	if destination == "" {
		destination = draft.City
	}
	if destination == "" {
		return types.NormalizedItinerary{}, types.ErrValidation
	}

	days := make([]types.NormalizedDay, 0, len(draft.Days))
	for i, day := range draft.Days {
		normalized := types.NormalizedDay{
			Day:    i + 1,
			Date:   dayDate(baseDate, i),
			Places: []types.NormalizedPlace{},
		}
		order := 1
		for _, slot := range types.SlotOrder {
			for _, p := range day.Slots[slot] {
				normalized.Places = append(normalized.Places, types.NormalizedPlace{
					PlaceID: p.PlaceID,
					Order:   order,
				})
				order++
			}
		}
		days = append(days, normalized)
	}

	return types.NormalizedItinerary{
		Destination: destination,
		Title:       destination + " Trip",
		Days:        days,
	}, nil
}
