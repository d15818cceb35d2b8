package publish

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/http"
	"strings"
)

// Markers seen in interstitial pages served instead of API responses.
var challengeMarkers = [][]byte{
	[]byte("cf-chl"),
	[]byte("just a moment"),
	[]byte("challenge-platform"),
	[]byte("captcha"),
	[]byte("attention required"),
}

// classify maps one attempt to an outcome. The returned error describes the
// failure for retry and fatal outcomes.
func classify(resp Response, err error) (Outcome, error) {
	if err != nil {
		return OutcomeRetry, err
	}
	if isChallenge(resp) {
		return OutcomeRetry, ErrChallenge
	}
	switch {
	case resp.Status == http.StatusTooManyRequests || resp.Status >= 500:
		return OutcomeRetry, &StatusError{Status: resp.Status, Body: snippet(resp.Body)}
	case resp.Status >= 400:
		return OutcomeFatal, &StatusError{Status: resp.Status, Body: snippet(resp.Body)}
	case resp.Status < 200:
		return OutcomeRetry, &StatusError{Status: resp.Status}
	}
	return OutcomeSuccess, nil
}

// isChallenge reports a markup body carrying a known interstitial marker.
// Such pages may come with any status, including 200 and 403.
func isChallenge(resp Response) bool {
	if !isMarkup(resp) {
		return false
	}
	body := bytes.ToLower(resp.Body)
	for _, m := range challengeMarkers {
		if bytes.Contains(body, m) {
			return true
		}
	}
	return false
}

func isMarkup(resp Response) bool {
	if ct := resp.ContentType; ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			if mt == "text/html" || mt == "application/xhtml+xml" {
				return true
			}
			if mt == "application/json" || strings.HasSuffix(mt, "+json") {
				return false
			}
		}
	}
	return bytes.HasPrefix(bytes.TrimSpace(resp.Body), []byte("<"))
}

// postedID extracts data.id from a success body. ok is false when the body is
// not the expected structure.
func postedID(body []byte) (string, bool) {
	var payload struct {
		Data struct {
			ID json.RawMessage `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	raw := payload.Data.ID
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	// numeric ids are accepted verbatim
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	const max = 300
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
