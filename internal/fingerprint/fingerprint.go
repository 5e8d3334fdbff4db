package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// #region value
// Value is the canonical, order-independent digest of a task snapshot:
// the JSON array of its texts after sorting. Equal values mean equal multisets.
type Value string

// Empty is the fingerprint of the empty snapshot. No non-empty snapshot maps to it.
const Empty Value = "[]"

// Short returns a 12-character hex prefix of the SHA-256 of v, for log lines.
func (v Value) Short() string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])[:12]
}
// #endregion value

// #region of
// Of computes the fingerprint of tasks. The input slice is not modified.
func Of(tasks []string) Value {
	if len(tasks) == 0 {
		return Empty
	}
	sorted := make([]string, len(tasks))
	copy(sorted, tasks)
	sort.Strings(sorted)

	var buf strings.Builder
	buf.WriteByte('[')
	for i, t := range sorted {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(quote(t))
	}
	buf.WriteByte(']')
	return Value(buf.String())
}

// quote encodes one task as a JSON string. encoding/json folds invalid UTF-8
// into U+FFFD, so such texts fall back to Go quoting, which keeps every byte.
// Both forms decode back to their input under strconv.Unquote, so distinct
// texts never share a quoted form.
func quote(t string) string {
	if !utf8.ValidString(t) {
		return strconv.Quote(t)
	}
	// json.Marshal of a valid string cannot fail.
	b, _ := json.Marshal(t)
	return string(b)
}
// #endregion of
