package ecsauth

import "strings"

// Course target URL shapes. The legacy direct view predates the dedicated
// CampusConnect course page and is still what older hubs issue hashes for.
const (
	legacyCoursePath  = "/course/view.php?id="
	currentCoursePath = "/local/campusconnect/viewcourse.php?id="
)

// MatchCourseTarget checks that the destination URL points at a recognized
// course view under wwwroot and returns the matched canonical prefix. A
// missing or empty id parameter means "not a course target", not an error.
// The legacy shape is preferred when both would match.
func MatchCourseTarget(wwwroot, rawurl string, params Params) (string, bool) {
	id, ok := params["id"]
	if !ok || id == "" {
		return "", false
	}

	legacy := wwwroot + legacyCoursePath + id
	if strings.HasPrefix(rawurl, legacy) {
		return legacy, true
	}

	current := wwwroot + currentCoursePath + id
	if strings.HasPrefix(rawurl, current) {
		return current, true
	}

	return "", false
}
