// WebDAV implementation of [Client]
//
// Speaks the subset of CalDAV (RFC 4791) and CardDAV (RFC 6352) needed for
// migration: PROPFIND discovery, REPORT item enumeration, GET fetch, PUT
// upload and MKCALENDAR / extended MKCOL collection creation.
package dav

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"davsync/internal/shared"
)

// Default principal paths by server type. {username} is substituted at dial time.
var defaultPrincipalPaths = map[string]string{
	"Carbonio":  "/dav/{username}",
	"Zimbra":    "/dav/{username}",
	"Nextcloud": "/remote.php/dav/principals/users/{username}",
	"Mailcow":   "/SOGo/dav/{username}",
	"SOGo":      "/SOGo/dav/{username}",
}

// ClientConfig describes one endpoint connection.
type ClientConfig struct {
	URL           string
	Username      string
	Password      string
	PrincipalPath string // optional, may contain {username}
	ServerType    string // optional, selects a default principal path
	VerifySSL     bool
	HTTPClient    *http.Client // optional, mainly for tests
}

// HTTPClient implements [Client] over HTTP.
type HTTPClient struct {
	baseURL   string
	principal string
	username  string
	password  string
	http      *http.Client
}

// NewClient creates an HTTP-backed [Client] for the endpoint.
func NewClient(cfg ClientConfig) *HTTPClient {
	base := strings.TrimRight(cfg.URL, "/")

	principal := cfg.PrincipalPath
	if principal == "" {
		if p, ok := defaultPrincipalPaths[cfg.ServerType]; ok {
			principal = p
		}
	}
	principal = strings.ReplaceAll(principal, "{username}", cfg.Username)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport
		if !cfg.VerifySSL {
			transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			}
		}
		httpClient = &http.Client{Timeout: 60 * time.Second, Transport: transport}
	}

	return &HTTPClient{
		baseURL:   base,
		principal: principal,
		username:  cfg.Username,
		password:  cfg.Password,
		http:      httpClient,
	}
}

// Name returns the endpoint host for log attribution.
func (c *HTTPClient) Name() string {
	if u, err := url.Parse(c.baseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return c.baseURL
}

// principalURL is the collection home used for discovery. When no principal
// path is configured the base URL itself is treated as the home.
func (c *HTTPClient) principalURL() string {
	if c.principal == "" {
		return c.baseURL
	}
	return c.baseURL + c.principal
}

// absoluteURL resolves a multistatus href against the endpoint base.
func (c *HTTPClient) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + href
	}
	return base.Scheme + "://" + base.Host + href
}

func (c *HTTPClient) request(ctx context.Context, method, rawURL string, depth string, contentType string, body string) (*http.Response, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrConnection, err)
	}

	req.SetBasicAuth(c.username, c.password)
	if depth != "" {
		req.Header.Set("Depth", depth)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrConnection, method, rawURL, err)
	}
	return resp, nil
}

// Authenticate issues a Depth:0 PROPFIND against the principal URL and checks
// that the server accepts the credentials.
func (c *HTTPClient) Authenticate(ctx context.Context) error {
	body := `<?xml version="1.0" encoding="utf-8" ?>
<d:propfind xmlns:d="DAV:">
  <d:prop><d:resourcetype/><d:displayname/></d:prop>
</d:propfind>`

	resp, err := c.request(ctx, "PROPFIND", c.principalURL(), "0", "application/xml; charset=utf-8", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: authentication failed for %s (username: %s)", shared.ErrConnection, c.baseURL, c.username)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: %s returned status %d", shared.ErrConnection, c.baseURL, resp.StatusCode)
	}
	return nil
}

// ListCollections enumerates calendars or address books under the principal home.
func (c *HTTPClient) ListCollections(ctx context.Context, kind Kind) ([]CollectionRef, error) {
	body := `<?xml version="1.0" encoding="utf-8" ?>
<d:propfind xmlns:d="DAV:">
  <d:prop><d:resourcetype/><d:displayname/></d:prop>
</d:propfind>`

	resp, err := c.request(ctx, "PROPFIND", c.principalURL(), "1", "application/xml; charset=utf-8", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: PROPFIND %s returned status %d", shared.ErrConnection, c.principalURL(), resp.StatusCode)
	}

	ms, err := parseMultistatus(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrConnection, err)
	}

	var cols []CollectionRef
	for _, r := range ms.Responses {
		p := r.prop()
		if p == nil {
			continue
		}
		if (kind == KindEvent && p.ResourceType.Calendar == nil) ||
			(kind == KindContact && p.ResourceType.AddressBook == nil) {
			continue
		}
		name := p.DisplayName
		if name == "" {
			name = pathLeaf(r.Href)
		}
		cols = append(cols, CollectionRef{ID: r.Href, DisplayName: name, Kind: kind})
	}
	return cols, nil
}

// ListItems enumerates items via REPORT, falling back to a PROPFIND listing
// when the server does not support the query REPORT. The fallback returns
// refs without payloads; FetchItem retrieves them individually.
func (c *HTTPClient) ListItems(ctx context.Context, col CollectionRef) ([]ItemRef, error) {
	items, err := c.reportItems(ctx, col)
	if err == nil {
		return items, nil
	}

	return c.propfindItems(ctx, col)
}

func (c *HTTPClient) reportItems(ctx context.Context, col CollectionRef) ([]ItemRef, error) {
	var body string
	if col.Kind == KindContact {
		body = `<?xml version="1.0" encoding="utf-8" ?>
<card:addressbook-query xmlns:d="DAV:" xmlns:card="urn:ietf:params:xml:ns:carddav">
  <d:prop><d:getetag/><card:address-data/></d:prop>
</card:addressbook-query>`
	} else {
		body = `<?xml version="1.0" encoding="utf-8" ?>
<cal:calendar-query xmlns:d="DAV:" xmlns:cal="urn:ietf:params:xml:ns:caldav">
  <d:prop><d:getetag/><cal:calendar-data/></d:prop>
  <cal:filter>
    <cal:comp-filter name="VCALENDAR">
      <cal:comp-filter name="VEVENT"/>
    </cal:comp-filter>
  </cal:filter>
</cal:calendar-query>`
	}

	resp, err := c.request(ctx, "REPORT", c.absoluteURL(col.ID), "1", "application/xml; charset=utf-8", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: REPORT returned status %d", shared.ErrRemote, resp.StatusCode)
	}

	ms, err := parseMultistatus(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRemote, err)
	}

	var items []ItemRef
	for _, r := range ms.Responses {
		p := r.prop()
		if p == nil {
			continue
		}
		data := p.CalendarData
		if col.Kind == KindContact {
			data = p.AddressData
		}
		items = append(items, ItemRef{ID: r.Href, Payload: []byte(data)})
	}
	return items, nil
}

func (c *HTTPClient) propfindItems(ctx context.Context, col CollectionRef) ([]ItemRef, error) {
	body := `<?xml version="1.0" encoding="utf-8" ?>
<d:propfind xmlns:d="DAV:">
  <d:prop><d:getetag/><d:getcontenttype/></d:prop>
</d:propfind>`

	resp, err := c.request(ctx, "PROPFIND", c.absoluteURL(col.ID), "1", "application/xml; charset=utf-8", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: PROPFIND returned status %d", shared.ErrRemote, resp.StatusCode)
	}

	ms, err := parseMultistatus(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRemote, err)
	}

	want := "calendar"
	if col.Kind == KindContact {
		want = "vcard"
	}

	var items []ItemRef
	for _, r := range ms.Responses {
		p := r.prop()
		if p == nil || !strings.Contains(strings.ToLower(p.ContentType), want) {
			continue
		}
		items = append(items, ItemRef{ID: r.Href})
	}
	return items, nil
}

// FetchItem retrieves one item's raw payload.
func (c *HTTPClient) FetchItem(ctx context.Context, col CollectionRef, itemID string) ([]byte, error) {
	resp, err := c.request(ctx, http.MethodGet, c.absoluteURL(itemID), "", "", "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: GET %s returned status %d", shared.ErrRemote, itemID, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", shared.ErrRemote, itemID, err)
	}
	return data, nil
}

// CreateCollection creates a calendar (MKCALENDAR) or address book (extended
// MKCOL) named after the display name under the principal home.
func (c *HTTPClient) CreateCollection(ctx context.Context, displayName string, kind Kind) (CollectionRef, error) {
	href := strings.TrimRight(c.principalURL(), "/") + "/" + collectionSlug(displayName) + "/"

	var method, body string
	if kind == KindContact {
		method = "MKCOL"
		body = fmt.Sprintf(`<?xml version="1.0" encoding="utf-8" ?>
<d:mkcol xmlns:d="DAV:" xmlns:card="urn:ietf:params:xml:ns:carddav">
  <d:set><d:prop>
    <d:resourcetype><d:collection/><card:addressbook/></d:resourcetype>
    <d:displayname>%s</d:displayname>
  </d:prop></d:set>
</d:mkcol>`, xmlEscape(displayName))
	} else {
		method = "MKCALENDAR"
		body = fmt.Sprintf(`<?xml version="1.0" encoding="utf-8" ?>
<cal:mkcalendar xmlns:d="DAV:" xmlns:cal="urn:ietf:params:xml:ns:caldav">
  <d:set><d:prop>
    <d:displayname>%s</d:displayname>
  </d:prop></d:set>
</cal:mkcalendar>`, xmlEscape(displayName))
	}

	resp, err := c.request(ctx, method, href, "", "application/xml; charset=utf-8", body)
	if err != nil {
		return CollectionRef{}, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return CollectionRef{}, fmt.Errorf("%w: %s %s returned status %d", shared.ErrRemote, method, href, resp.StatusCode)
	}

	u, _ := url.Parse(href)
	id := href
	if u != nil {
		id = u.Path
	}
	return CollectionRef{ID: id, DisplayName: displayName, Kind: kind}, nil
}

// CreateItem uploads a payload verbatim. The target name is derived from the
// payload UID when present, otherwise a random identifier is used.
func (c *HTTPClient) CreateItem(ctx context.Context, col CollectionRef, payload []byte) error {
	contentType := "text/calendar; charset=utf-8"
	extension := ".ics"
	if col.Kind == KindContact {
		contentType = "text/vcard; charset=utf-8"
		extension = ".vcf"
	}

	name := shared.GenerateID()
	if meta, err := ParseItemMeta(col.Kind, payload); err == nil && meta.UID != "" {
		name = collectionSlug(meta.UID)
	}

	target := strings.TrimRight(c.absoluteURL(col.ID), "/") + "/" + name + extension

	resp, err := c.request(ctx, http.MethodPut, target, "", contentType, string(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: PUT %s returned status %d", shared.ErrRemote, target, resp.StatusCode)
	}
	return nil
}

// multistatus mirrors the DAV:multistatus response envelope.
type multistatus struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href      string     `xml:"href"`
	Propstats []propstat `xml:"propstat"`
}

type propstat struct {
	Status string  `xml:"status"`
	Prop   davProp `xml:"prop"`
}

type davProp struct {
	DisplayName  string       `xml:"displayname"`
	ResourceType resourceType `xml:"resourcetype"`
	ContentType  string       `xml:"getcontenttype"`
	ETag         string       `xml:"getetag"`
	CalendarData string       `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
	AddressData  string       `xml:"urn:ietf:params:xml:ns:carddav address-data"`
}

type resourceType struct {
	Collection  *struct{} `xml:"collection"`
	Calendar    *struct{} `xml:"urn:ietf:params:xml:ns:caldav calendar"`
	AddressBook *struct{} `xml:"urn:ietf:params:xml:ns:carddav addressbook"`
}

// prop returns the first successful propstat's properties, or nil.
func (r davResponse) prop() *davProp {
	for i := range r.Propstats {
		status := r.Propstats[i].Status
		if status == "" || strings.Contains(status, "200") {
			return &r.Propstats[i].Prop
		}
	}
	return nil
}

func parseMultistatus(r io.Reader) (*multistatus, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read multistatus body: %w", err)
	}

	var ms multistatus
	if err := xml.Unmarshal(data, &ms); err != nil {
		return nil, fmt.Errorf("failed to parse multistatus response: %w", err)
	}
	return &ms, nil
}

// pathLeaf returns the last non-empty path segment of an href.
func pathLeaf(href string) string {
	parts := strings.Split(strings.TrimRight(href, "/"), "/")
	if len(parts) == 0 {
		return href
	}
	leaf, err := url.PathUnescape(parts[len(parts)-1])
	if err != nil {
		return parts[len(parts)-1]
	}
	return leaf
}

// collectionSlug converts a display name into a URL-safe path segment.
func collectionSlug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.', r == '@':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return shared.GenerateID()
	}
	return b.String()
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
