package wayfetch

// statusLabel mirrors the reference RESPONSE_CODE_DICT: a purely
// human-readable label for the per-snapshot sink line (the final summary
// table uses its own labels). It never affects the response/file columns
// committed to the Snapshot row.
var statusLabel = map[string]string{
	"200": "downloaded",
	"301": "redirect recorded in archive",
	"302": "redirect",
	"404": "not found in archive",
}

// describeStatus returns the reporting label for a terminal response
// string, falling back to "unknown status" for anything unrecognized.
func describeStatus(response string) string {
	if label, ok := statusLabel[response]; ok {
		return label
	}
	return "unknown status"
}
