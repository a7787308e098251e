package extract

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

var pageMarkerRegex = regexp.MustCompile(`(?mi)^-{2,}\s*page\s+(\d+)\s*-{2,}\s*$`)

// DecodePagePayload turns a model-produced OCR reply into pages. Model
// output is loosely structured, so decoding walks fixed fallback tiers and
// logs which one matched:
//
//	json_array   - [{"page_number":1,"text":"..."}]
//	json_object  - {"pages":[...]}
//	page_markers - "--- Page 1 ---" separators in plain text
//	raw_text     - the whole reply as a single page
func DecodePagePayload(ctx context.Context, payload string) []Page {
	logger := logutil.GetLogger(ctx)
	cleaned := stripCodeFence(payload)

	if pages := decodeJSONArray(cleaned); len(pages) > 0 {
		logger.Debug("page payload decoded", zap.String("tier", "json_array"), zap.Int("pages", len(pages)))
		return pages
	}
	if pages := decodeJSONObject(cleaned); len(pages) > 0 {
		logger.Debug("page payload decoded", zap.String("tier", "json_object"), zap.Int("pages", len(pages)))
		return pages
	}
	if pages := splitPageMarkers(cleaned); len(pages) > 0 {
		logger.Debug("page payload decoded", zap.String("tier", "page_markers"), zap.Int("pages", len(pages)))
		return pages
	}
	text := strings.TrimSpace(cleaned)
	if text == "" {
		return nil
	}
	logger.Debug("page payload decoded", zap.String("tier", "raw_text"))
	return []Page{{PageNumber: 1, Text: text}}
}

func stripCodeFence(payload string) string {
	clean := strings.TrimSpace(payload)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

func decodeJSONArray(payload string) []Page {
	start := strings.Index(payload, "[")
	end := strings.LastIndex(payload, "]")
	if start < 0 || end <= start {
		return nil
	}
	var pages []Page
	if err := json.Unmarshal([]byte(payload[start:end+1]), &pages); err != nil {
		return nil
	}
	return normalizePages(pages)
}

func decodeJSONObject(payload string) []Page {
	start := strings.Index(payload, "{")
	end := strings.LastIndex(payload, "}")
	if start < 0 || end <= start {
		return nil
	}
	var wrapper struct {
		Pages []Page `json:"pages"`
	}
	if err := json.Unmarshal([]byte(payload[start:end+1]), &wrapper); err != nil {
		return nil
	}
	return normalizePages(wrapper.Pages)
}

func splitPageMarkers(payload string) []Page {
	locs := pageMarkerRegex.FindAllStringIndex(payload, -1)
	if len(locs) == 0 {
		return nil
	}
	var pages []Page
	for i, loc := range locs {
		begin := loc[1]
		end := len(payload)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		text := strings.TrimSpace(payload[begin:end])
		if text == "" {
			continue
		}
		pages = append(pages, Page{PageNumber: len(pages) + 1, Text: text})
	}
	return pages
}

func normalizePages(pages []Page) []Page {
	kept := make([]Page, 0, len(pages))
	for _, page := range pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}
		number := page.PageNumber
		if number <= 0 {
			number = len(kept) + 1
		}
		kept = append(kept, Page{PageNumber: number, Text: text})
	}
	return kept
}
