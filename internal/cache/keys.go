package cache

import "strings"

const (
	listPrefix    = "health_reports_"
	previewPrefix = "health_previews_"

	tierList    = "list"
	tierPreview = "preview"
)

func listKey(petID string) string {
	return listPrefix + petID
}

func previewKey(petID, reportID string) string {
	return previewPrefix + petID + "_" + reportID
}

// petPreviewPrefix also matches previews of pets whose id extends petID
// ("p1" vs "p1_x"); callers filter on the decoded pet id.
func petPreviewPrefix(petID string) string {
	return previewPrefix + petID + "_"
}

func ownedKey(key string) bool {
	return strings.HasPrefix(key, listPrefix) || strings.HasPrefix(key, previewPrefix)
}
