package fetcher

import (
	"encoding/json"
	"regexp"

	"github.com/oliveagle/jsonpath"

	"github.com/dandantas/magpie/internal/model"
)

// ParseError indicates the remote document did not contain the structure the
// parser expects. The upstream site occasionally changes its markup or serves
// a captcha page; both surface as a ParseError, never as a panic.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string { return e.Message }

// The profile page embeds its state as JSON inside a dedicated script tag.
var rehydrationScriptRe = regexp.MustCompile(`<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__"[^>]*>([^<]+)</script>`)

// The user detail lives under a key that itself contains a dot, so it is
// navigated directly; everything below it goes through jsonpath.
const userDetailKey = "webapp.user-detail"

// ParseProfileDocument extracts the normalized profile payload from the raw
// HTML document served by the remote source. This is the only place that
// knows the document's shape; everything else in the pipeline works on
// model.ProfilePayload.
func ParseProfileDocument(document string) (*model.ProfilePayload, error) {
	match := rehydrationScriptRe.FindStringSubmatch(document)
	if len(match) < 2 {
		return nil, &ParseError{Message: "could not find rehydration data in the document; structure may have changed or a captcha was served"}
	}

	var root map[string]interface{}
	if err := json.Unmarshal([]byte(match[1]), &root); err != nil {
		return nil, &ParseError{Message: "rehydration data is not valid JSON: " + err.Error()}
	}

	defaultScope, ok := root["__DEFAULT_SCOPE__"].(map[string]interface{})
	if !ok {
		return nil, &ParseError{Message: "invalid structure: missing __DEFAULT_SCOPE__"}
	}

	userDetail, ok := defaultScope[userDetailKey].(map[string]interface{})
	if !ok {
		return nil, &ParseError{Message: "invalid structure: missing user detail scope"}
	}

	if _, err := jsonpath.JsonPathLookup(userDetail, "$.userInfo.user"); err != nil {
		return nil, &ParseError{Message: "could not extract user details from the state object"}
	}

	avatar := firstNonEmpty(
		lookupString(userDetail, "$.userInfo.user.avatarLarger"),
		lookupString(userDetail, "$.userInfo.user.avatarMedium"),
		lookupString(userDetail, "$.userInfo.user.avatarThumb"),
	)

	// Favor the large 'heart' number over the truncated heartCount
	heartCount := firstNonZero(
		lookupInt64(userDetail, "$.userInfo.stats.heart"),
		lookupInt64(userDetail, "$.userInfo.stats.heartCount"),
	)

	payload := &model.ProfilePayload{
		Source: "universal_data",
		User: model.ProfileUser{
			ID:             lookupString(userDetail, "$.userInfo.user.id"),
			SecUID:         lookupString(userDetail, "$.userInfo.user.secUid"),
			Username:       lookupString(userDetail, "$.userInfo.user.uniqueId"),
			Nickname:       lookupString(userDetail, "$.userInfo.user.nickname"),
			Avatar:         avatar,
			Signature:      lookupString(userDetail, "$.userInfo.user.signature"),
			Verified:       lookupBool(userDetail, "$.userInfo.user.verified"),
			PrivateAccount: lookupBool(userDetail, "$.userInfo.user.secret"),
			Region:         lookupString(userDetail, "$.userInfo.user.region"),
			BioLink:        lookupString(userDetail, "$.userInfo.user.bioLink.link"),
			CreateTime:     lookupInt64(userDetail, "$.userInfo.user.createTime"),
			Language:       lookupString(userDetail, "$.userInfo.user.language"),
			IsOrganization: lookupBool(userDetail, "$.userInfo.user.isOrganization"),
		},
		Stats: model.ProfileStats{
			FollowerCount:  lookupInt64(userDetail, "$.userInfo.stats.followerCount"),
			FollowingCount: lookupInt64(userDetail, "$.userInfo.stats.followingCount"),
			HeartCount:     heartCount,
			VideoCount:     lookupInt64(userDetail, "$.userInfo.stats.videoCount"),
			DiggCount:      lookupInt64(userDetail, "$.userInfo.stats.diggCount"),
			FriendCount:    lookupInt64(userDetail, "$.userInfo.stats.friendCount"),
		},
	}

	return payload, nil
}

// lookupString extracts a string value, empty when absent
func lookupString(doc interface{}, path string) string {
	value, err := jsonpath.JsonPathLookup(doc, path)
	if err != nil {
		return ""
	}
	return coerceToString(value)
}

// lookupInt64 extracts a numeric value, zero when absent or unparsable
func lookupInt64(doc interface{}, path string) int64 {
	value, err := jsonpath.JsonPathLookup(doc, path)
	if err != nil {
		return 0
	}
	num, err := coerceToInt64(value)
	if err != nil {
		return 0
	}
	return num
}

// lookupBool extracts a boolean value, false when absent
func lookupBool(doc interface{}, path string) bool {
	value, err := jsonpath.JsonPathLookup(doc, path)
	if err != nil {
		return false
	}
	return coerceToBool(value)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int64) int64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
