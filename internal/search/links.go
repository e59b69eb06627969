package search

import "fmt"

// entityIDs holds the IDs harvested from search result payloads, deduplicated
// per kind while keeping first-seen order.
type entityIDs struct {
	papers   []string
	sections []string
	blocks   []string
	items    []string
}

// collectIDs walks the result payloads and gathers every entity ID field.
func collectIDs(payloads []map[string]any) entityIDs {
	var ids entityIDs
	seen := map[string]map[string]bool{
		"paper": {}, "section": {}, "block": {}, "item": {},
	}
	add := func(kind string, dst *[]string, value any) {
		s, ok := value.(string)
		if !ok || s == "" || seen[kind][s] {
			return
		}
		seen[kind][s] = true
		*dst = append(*dst, s)
	}
	for _, payload := range payloads {
		add("paper", &ids.papers, payload["paper_id"])
		add("section", &ids.sections, payload["section_id"])
		add("block", &ids.blocks, payload["block_id"])
		add("item", &ids.items, payload["item_id"])
	}
	return ids
}

// resultPayloads extracts the per-hit payload objects from whichever envelope
// the search backend wrapped them in. Recognized shapes, probed in order:
// a direct list of hits, {result:{results:[...]}}, {result:[...]}, and
// {points:[...]}.
func resultPayloads(parsed any) []map[string]any {
	var items []any
	switch v := parsed.(type) {
	case []any:
		items = v
	case map[string]any:
		switch result := v["result"].(type) {
		case map[string]any:
			if nested, ok := result["results"].([]any); ok {
				items = nested
			}
		case []any:
			items = result
		}
		if items == nil {
			if points, ok := v["points"].([]any); ok {
				items = points
			}
		}
	}

	var payloads []map[string]any
	for _, item := range items {
		hit, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if payload, ok := hit["payload"].(map[string]any); ok {
			payloads = append(payloads, payload)
			continue
		}
		if data, ok := hit["data"].(map[string]any); ok {
			if payload, ok := data["payload"].(map[string]any); ok {
				payloads = append(payloads, payload)
			}
		}
	}
	return payloads
}

// buildDashboardLinks derives canonical dashboard paths from a search
// response. Section, block and item links borrow the first known paper ID as
// their path prefix; without any paper ID a single placeholder template is
// emitted for that kind.
func buildDashboardLinks(parsed any) []string {
	ids := collectIDs(resultPayloads(parsed))

	links := []string{}
	for _, paperID := range ids.papers {
		links = append(links, "/dashboard/papers/"+paperID)
	}

	var firstPaper string
	if len(ids.papers) > 0 {
		firstPaper = ids.papers[0]
	}
	appendScoped := func(kind string, scoped []string) {
		for _, id := range scoped {
			if firstPaper != "" {
				links = append(links, fmt.Sprintf("/dashboard/%s/%s/%s", kind, firstPaper, id))
				continue
			}
			links = append(links, fmt.Sprintf("/dashboard/%s/[paper_id]/[%s_id]", kind, kind[:len(kind)-1]))
			break
		}
	}
	appendScoped("sections", ids.sections)
	appendScoped("blocks", ids.blocks)
	appendScoped("items", ids.items)
	return links
}
