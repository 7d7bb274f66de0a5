package campusrec

import (
	"bytes"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"
)

const zeroInstanceID = "00000000-0000-0000-0000-000000000000"

// parseFacilityIDs pulls every data-facility-id attribute off the facilities
// page, falling back to the hidden hdnSelectedFacilityId input some layouts
// use. Non-UUID values are noise from unrelated markup and are dropped.
func parseFacilityIDs(page []byte) []string {
	var ids []string
	seen := make(map[string]bool)
	add := func(v string) {
		if v == "" || seen[v] {
			return
		}
		if _, err := uuid.Parse(v); err != nil {
			return
		}
		seen[v] = true
		ids = append(ids, v)
	}

	var hidden []string
	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		_, attrs := tagAttrs(z)
		if v, ok := attrs["data-facility-id"]; ok {
			add(v)
			continue
		}
		if strings.Contains(attrs["id"], "hdnSelectedFacilityId") ||
			strings.Contains(attrs["name"], "hdnSelectedFacilityId") {
			hidden = append(hidden, attrs["value"])
		}
	}

	if len(ids) == 0 {
		for _, v := range hidden {
			add(v)
		}
	}
	return ids
}

// parseSlots extracts bookable windows from a slots page. A slot is one
// enabled button carrying the identifiers the reserve endpoint wants;
// disabled buttons are windows the upstream has already closed.
func parseSlots(page []byte) []Slot {
	var slots []Slot
	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, attrs := tagAttrs(z)
		if name != "button" {
			continue
		}
		if _, disabled := attrs["disabled"]; disabled {
			continue
		}
		if hasClass(attrs["class"], "disabled") {
			continue
		}
		label := attrs["data-slot-text"]
		if label == "" {
			continue
		}
		instance := attrs["data-timeslotinstance-id"]
		if instance == "" {
			instance = zeroInstanceID
		}
		slots = append(slots, Slot{
			ApptID:     attrs["data-apt-id"],
			TimeslotID: attrs["data-timeslot-id"],
			InstanceID: instance,
			Number:     attrs["data-slot-number"],
			Label:      label,
			SpotsLeft:  attrs["data-spots-left-text"],
		})
	}
	return slots
}

func tagAttrs(z *html.Tokenizer) (string, map[string]string) {
	name, hasAttr := z.TagName()
	attrs := make(map[string]string)
	for hasAttr {
		k, v, more := z.TagAttr()
		attrs[string(k)] = string(v)
		if !more {
			break
		}
	}
	return string(name), attrs
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}
