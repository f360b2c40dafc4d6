package portal

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// State is the WebForms hidden-field table: __VIEWSTATE and its
// siblings. Only keys starting with "__" are ever tracked — anything
// else on the page is a visible control we never need to echo back.
type State map[string]string

func isHiddenKey(key string) bool {
	return strings.HasPrefix(key, "__")
}

// Clone returns a copy of the state, so a caller can overlay per-request
// overrides without mutating the client's persistent table.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// updateFromHTML scrapes every input[id^=__] on a full page response
// and stores its value, overwriting whatever the client already held
// for that key. Used after Initial requests and any Event response that
// came back as a full page rather than a partial-render delta.
func (s State) updateFromHTML(doc *goquery.Document) {
	doc.Find("input").Each(func(_ int, sel *goquery.Selection) {
		id, ok := sel.Attr("id")
		if !ok || !isHiddenKey(id) {
			return
		}
		val, _ := sel.Attr("value")
		s[id] = val
	})
}

// updateFromFragment applies a partial-render AJAX response's trailing
// state-update record. The record is a sequence of pipe-delimited
// fields; WebForms encodes each updated control as a run of
// length|type|id|content, repeated for every control the postback
// touched. We only care about type "hiddenField" entries whose id is
// one of our tracked "__" keys — everything else is a DOM fragment for
// a visible control we don't render.
func (s State) updateFromFragment(fragment string) {
	fields := strings.Split(fragment, "|")
	for i := 0; i+3 < len(fields); i++ {
		if fields[i+1] != "hiddenField" {
			continue
		}
		id := fields[i+2]
		if isHiddenKey(id) {
			s[id] = fields[i+3]
		}
	}
}
