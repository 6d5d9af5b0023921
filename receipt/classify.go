package receipt

import (
	"regexp"
	"strings"
)

// Classification markers, checked in priority order. The primary markers are
// near-certain; the secondary ones are heuristic fallbacks for older template
// variants and form a compatibility contract with historical data. Do not
// tighten them without reviewing the corpus.
var (
	// Tip receipts may quote food-order boilerplate, so tips are checked
	// before anything else.
	tipMarkerPattern = regexp.MustCompile(`Tips E-Receipt|ทิปเพื่อเป็นกำลังใจ|Grab Tips E-Receipt`)

	// Signed asset bucket only seen in transport receipts.
	transportAssetPattern = regexp.MustCompile(`myteksi\.s3.*?\.amazonaws\.com`)

	// URL-encoded query fragments of food-order tracking links.
	foodTrackingPattern = regexp.MustCompile(`ratingStar%3D|orderID%3D00\d{9}`)

	transportLocationPattern = regexp.MustCompile(`(?i)pick.{0,5}up\s+location|drop.{0,5}off\s+location`)
)

const foodSourceMarker = "SOURCE_GRABFOOD"

// Classify assigns exactly one service type to a combined receipt text.
// Total function, first matching tier wins.
func Classify(text string) ServiceType {
	if tipMarkerPattern.MatchString(text) {
		return ServiceTip
	}

	if strings.Contains(text, foodSourceMarker) {
		return ServiceFood
	}
	if transportAssetPattern.MatchString(text) {
		return ServiceTransport
	}

	if foodTrackingPattern.MatchString(text) {
		return ServiceFood
	}
	if transportLocationPattern.MatchString(text) {
		return ServiceTransport
	}

	return ServiceUnknown
}
