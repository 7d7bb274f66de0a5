// Package campusrec is a minimal HTTP client for the campus recreation
// booking site. It replays the request flow an authenticated browser uses:
// a facilities page that enumerates court IDs, a slots page per court and
// day, and a form POST that claims a slot.
package campusrec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "https://active.illinois.edu"

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrUnauthorized means the upstream bounced us to its login flow; the
// session cookies need to be re-issued externally.
var ErrUnauthorized = errors.New("campusrec: unauthorized (session expired?)")

// ErrNoFacilityIDs means the facilities page rendered but contained no court
// identifiers. That is an upstream-format or auth problem, never "facility
// has no courts".
var ErrNoFacilityIDs = errors.New("campusrec: no facility ids found on page")

// Slot carries everything the reserve endpoint needs to claim one window.
type Slot struct {
	ApptID     string
	TimeslotID string
	InstanceID string
	Number     string
	Label      string
	SpotsLeft  string
}

type ReserveResult struct {
	Success       bool
	ParticipantID string
	ErrorCode     string
}

type Client struct {
	hc     *http.Client
	base   string
	cookie string
}

// New builds a client around a cookie set captured from an authenticated
// browser session. timeout bounds every request the client makes.
func New(baseURL string, cookies map[string]string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		hc:     &http.Client{Timeout: timeout},
		base:   strings.TrimRight(baseURL, "/"),
		cookie: cookieHeader(cookies),
	}
}

func cookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for n := range cookies {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for i, n := range names {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(n)
		b.WriteString("=")
		b.WriteString(cookies[n])
	}
	return b.String()
}

// FacilityIDs returns every court ID listed on the facilities page for a
// product, deduplicated in page order.
func (c *Client) FacilityIDs(ctx context.Context, productID string) ([]string, error) {
	status, body, finalURL, err := c.do(ctx, http.MethodGet, "/booking/"+productID+"/facilities", nil, nil, "")
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, fmt.Errorf("%w (status=%d)", ErrUnauthorized, status)
	}
	if finalURL != nil && looksLikeLogin(finalURL) {
		return nil, fmt.Errorf("%w (redirected to %s)", ErrUnauthorized, finalURL.Host)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("campusrec: facilities page status=%d", status)
	}
	ids := parseFacilityIDs(body)
	if len(ids) == 0 {
		return nil, ErrNoFacilityIDs
	}
	return ids, nil
}

// Slots fetches the bookable windows for one court on one day. Disabled
// entries are filtered out; upstream ordering is preserved.
func (c *Client) Slots(ctx context.Context, productID, facilityID string, date time.Time) ([]Slot, error) {
	path := slotsPath(productID, facilityID, date)
	status, body, _, err := c.do(ctx, http.MethodGet, path, nil, nil, "")
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, fmt.Errorf("%w (status=%d)", ErrUnauthorized, status)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("campusrec: slots page status=%d", status)
	}
	return parseSlots(body), nil
}

func slotsPath(productID, facilityID string, date time.Time) string {
	return fmt.Sprintf("/booking/%s/slots/%s/%d/%d/%d",
		productID, facilityID, date.Year(), int(date.Month()), date.Day())
}

// Reserve submits the booking form for a slot. Success is decided solely by
// the explicit Success flag in the response body; any other well-formed
// response, any non-200 status, or a malformed body is a miss.
func (c *Client) Reserve(ctx context.Context, productID, facilityID string, s Slot, date time.Time) (ReserveResult, error) {
	form := url.Values{
		"bId":   {productID},
		"fId":   {facilityID},
		"aId":   {s.ApptID},
		"tsId":  {s.TimeslotID},
		"tsiId": {s.InstanceID},
		"y":     {strconv.Itoa(date.Year())},
		"m":     {strconv.Itoa(int(date.Month()))},
		"d":     {strconv.Itoa(date.Day())},
		"t":     {""},
		"v":     {"0"},
	}
	headers := map[string]string{
		"X-Requested-With": "XMLHttpRequest",
		"Accept":           "*/*",
		"Origin":           c.base,
		"Referer":          c.base + slotsPath(productID, facilityID, date),
	}
	status, body, _, err := c.do(ctx, http.MethodPost, "/booking/reserve", headers,
		[]byte(form.Encode()), "application/x-www-form-urlencoded; charset=UTF-8")
	if err != nil {
		return ReserveResult{}, err
	}
	if status != http.StatusOK {
		return ReserveResult{}, fmt.Errorf("campusrec: reserve status=%d", status)
	}

	var raw struct {
		Success       bool            `json:"Success"`
		ParticipantID json.RawMessage `json:"ParticipantId"`
		ErrorCode     json.RawMessage `json:"ErrorCode"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return ReserveResult{}, fmt.Errorf("campusrec: reserve response not parseable: %w", err)
	}
	res := ReserveResult{
		Success:       raw.Success,
		ParticipantID: rawString(raw.ParticipantID),
		ErrorCode:     rawString(raw.ErrorCode),
	}
	if !res.Success {
		code := res.ErrorCode
		if code == "" {
			code = "unknown"
		}
		return res, fmt.Errorf("campusrec: reserve rejected (error code %s)", code)
	}
	return res, nil
}

// rawString renders a JSON scalar that may arrive as a string or a number.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// Probe issues the same facilities lookup real bookings use and reports
// whether the session is still accepted. It is not retried internally.
func (c *Client) Probe(ctx context.Context, productID string) error {
	_, err := c.FacilityIDs(ctx, productID)
	if errors.Is(err, ErrNoFacilityIDs) {
		// the page rendered without data, which is what the login
		// interstitial looks like to a cookie-less scraper
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return err
}

// Warm pre-resolves DNS and opens a pooled connection so the reservation
// POST does not pay connection setup at the instant the window opens.
func (c *Client) Warm(ctx context.Context) {
	u, err := url.Parse(c.base)
	if err != nil {
		return
	}
	_, _ = net.DefaultResolver.LookupHost(ctx, u.Hostname())

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", userAgent)
	if res, err := c.hc.Do(req); err == nil {
		res.Body.Close()
	}
}

func looksLikeLogin(u *url.URL) bool {
	s := strings.ToLower(u.String())
	return strings.Contains(s, "login") || strings.Contains(s, "shibboleth")
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body []byte, contentType string) (int, []byte, *url.URL, error) {
	var rd io.Reader
	if body != nil {
		rd = strings.NewReader(string(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("campusrec: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, res.Request.URL, err
	}
	return res.StatusCode, b, res.Request.URL, nil
}
