package dav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"davsync/internal/shared"
)

func testClient(srv *httptest.Server) *HTTPClient {
	return NewClient(ClientConfig{
		URL:       srv.URL,
		Username:  "alice",
		Password:  "secret",
		VerifySSL: true,
	})
}

const collectionsMultistatus = `<?xml version="1.0" encoding="utf-8"?>
<d:multistatus xmlns:d="DAV:" xmlns:cal="urn:ietf:params:xml:ns:caldav" xmlns:card="urn:ietf:params:xml:ns:carddav">
  <d:response>
    <d:href>/dav/alice/</d:href>
    <d:propstat>
      <d:status>HTTP/1.1 200 OK</d:status>
      <d:prop><d:resourcetype><d:collection/></d:resourcetype></d:prop>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/dav/alice/personal/</d:href>
    <d:propstat>
      <d:status>HTTP/1.1 200 OK</d:status>
      <d:prop>
        <d:displayname>Personal</d:displayname>
        <d:resourcetype><d:collection/><cal:calendar/></d:resourcetype>
      </d:prop>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/dav/alice/work-cal/</d:href>
    <d:propstat>
      <d:status>HTTP/1.1 200 OK</d:status>
      <d:prop>
        <d:resourcetype><d:collection/><cal:calendar/></d:resourcetype>
      </d:prop>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/dav/alice/contacts/</d:href>
    <d:propstat>
      <d:status>HTTP/1.1 200 OK</d:status>
      <d:prop>
        <d:displayname>Friends</d:displayname>
        <d:resourcetype><d:collection/><card:addressbook/></d:resourcetype>
      </d:prop>
    </d:propstat>
  </d:response>
</d:multistatus>`

func TestAuthenticate(t *testing.T) {
	t.Run("accepts a 207 multistatus", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != "PROPFIND" {
				t.Errorf("unexpected method %s", r.Method)
			}
			if got := r.Header.Get("Depth"); got != "0" {
				t.Errorf("expected Depth 0, got %q", got)
			}
			user, pass, ok := r.BasicAuth()
			if !ok || user != "alice" || pass != "secret" {
				t.Errorf("missing or wrong basic auth: %s/%s", user, pass)
			}
			w.WriteHeader(http.StatusMultiStatus)
		}))
		defer srv.Close()

		if err := testClient(srv).Authenticate(context.Background()); err != nil {
			t.Fatalf("authenticate failed: %v", err)
		}
	})

	t.Run("reports credential rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		err := testClient(srv).Authenticate(context.Background())
		if !errors.Is(err, shared.ErrConnection) {
			t.Fatalf("expected ErrConnection, got %v", err)
		}
		if !strings.Contains(err.Error(), "authentication failed") {
			t.Errorf("expected auth failure message, got %v", err)
		}
	})

	t.Run("reports unreachable host", func(t *testing.T) {
		client := NewClient(ClientConfig{URL: "http://127.0.0.1:1", Username: "a", Password: "b"})
		if err := client.Authenticate(context.Background()); !errors.Is(err, shared.ErrConnection) {
			t.Fatalf("expected ErrConnection, got %v", err)
		}
	})
}

func TestPrincipalPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusMultiStatus)
	}))
	defer srv.Close()

	t.Run("server type selects the default path", func(t *testing.T) {
		client := NewClient(ClientConfig{URL: srv.URL, Username: "alice", Password: "x", ServerType: "Nextcloud"})
		if err := client.Authenticate(context.Background()); err != nil {
			t.Fatalf("authenticate failed: %v", err)
		}
		if gotPath != "/remote.php/dav/principals/users/alice" {
			t.Errorf("unexpected principal path %q", gotPath)
		}
	})

	t.Run("explicit path substitutes the username", func(t *testing.T) {
		client := NewClient(ClientConfig{URL: srv.URL, Username: "bob", Password: "x", PrincipalPath: "/custom/{username}/home"})
		if err := client.Authenticate(context.Background()); err != nil {
			t.Fatalf("authenticate failed: %v", err)
		}
		if gotPath != "/custom/bob/home" {
			t.Errorf("unexpected principal path %q", gotPath)
		}
	})
}

func TestListCollections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PROPFIND" || r.Header.Get("Depth") != "1" {
			t.Errorf("unexpected request: %s Depth=%s", r.Method, r.Header.Get("Depth"))
		}
		w.WriteHeader(http.StatusMultiStatus)
		fmt.Fprint(w, collectionsMultistatus)
	}))
	defer srv.Close()

	client := testClient(srv)

	t.Run("filters calendars", func(t *testing.T) {
		cols, err := client.ListCollections(context.Background(), KindEvent)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(cols) != 2 {
			t.Fatalf("expected 2 calendars, got %d", len(cols))
		}
		if cols[0].DisplayName != "Personal" {
			t.Errorf("unexpected name %q", cols[0].DisplayName)
		}
		// Missing displayname falls back to the path leaf.
		if cols[1].DisplayName != "work-cal" {
			t.Errorf("unexpected fallback name %q", cols[1].DisplayName)
		}
	})

	t.Run("filters address books", func(t *testing.T) {
		cols, err := client.ListCollections(context.Background(), KindContact)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(cols) != 1 || cols[0].DisplayName != "Friends" {
			t.Fatalf("expected the Friends address book, got %+v", cols)
		}
	})
}

func TestListItems(t *testing.T) {
	ics := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//t//EN\r\nBEGIN:VEVENT\r\nUID:e1\r\nDTSTART:20250101T000000Z\r\nSUMMARY:One\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

	t.Run("report returns payloads inline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != "REPORT" {
				t.Errorf("unexpected method %s", r.Method)
			}
			w.WriteHeader(http.StatusMultiStatus)
			fmt.Fprintf(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:cal="urn:ietf:params:xml:ns:caldav">
  <d:response>
    <d:href>/dav/alice/personal/e1.ics</d:href>
    <d:propstat>
      <d:status>HTTP/1.1 200 OK</d:status>
      <d:prop><cal:calendar-data>%s</cal:calendar-data></d:prop>
    </d:propstat>
  </d:response>
</d:multistatus>`, ics)
		}))
		defer srv.Close()

		col := CollectionRef{ID: "/dav/alice/personal/", DisplayName: "Personal", Kind: KindEvent}
		items, err := testClient(srv).ListItems(context.Background(), col)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(items))
		}
		if !strings.Contains(string(items[0].Payload), "UID:e1") {
			t.Errorf("expected inline payload, got %q", items[0].Payload)
		}
	})

	t.Run("falls back to propfind when report is unsupported", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == "REPORT" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			if r.Method != "PROPFIND" {
				t.Errorf("unexpected method %s", r.Method)
			}
			w.WriteHeader(http.StatusMultiStatus)
			fmt.Fprint(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/dav/alice/personal/</d:href>
    <d:propstat>
      <d:status>HTTP/1.1 200 OK</d:status>
      <d:prop><d:getcontenttype></d:getcontenttype></d:prop>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/dav/alice/personal/e1.ics</d:href>
    <d:propstat>
      <d:status>HTTP/1.1 200 OK</d:status>
      <d:prop><d:getcontenttype>text/calendar; charset=utf-8</d:getcontenttype></d:prop>
    </d:propstat>
  </d:response>
</d:multistatus>`)
		}))
		defer srv.Close()

		col := CollectionRef{ID: "/dav/alice/personal/", DisplayName: "Personal", Kind: KindEvent}
		items, err := testClient(srv).ListItems(context.Background(), col)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(items) != 1 || items[0].ID != "/dav/alice/personal/e1.ics" {
			t.Fatalf("unexpected items: %+v", items)
		}
		if len(items[0].Payload) != 0 {
			t.Error("propfind fallback must not carry payloads")
		}
	})
}

func TestFetchItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dav/alice/personal/e1.ics" {
			fmt.Fprint(w, "BEGIN:VCALENDAR")
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := testClient(srv)
	col := CollectionRef{ID: "/dav/alice/personal/", Kind: KindEvent}

	data, err := client.FetchItem(context.Background(), col, "/dav/alice/personal/e1.ics")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(data) != "BEGIN:VCALENDAR" {
		t.Errorf("unexpected payload %q", data)
	}

	if _, err := client.FetchItem(context.Background(), col, "/dav/alice/personal/missing.ics"); !errors.Is(err, shared.ErrRemote) {
		t.Errorf("expected ErrRemote for missing item, got %v", err)
	}
}

func TestCreateCollection(t *testing.T) {
	t.Run("calendars use MKCALENDAR", func(t *testing.T) {
		var gotMethod, gotBody string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			data, _ := io.ReadAll(r.Body)
			gotBody = string(data)
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		col, err := testClient(srv).CreateCollection(context.Background(), "My Calendar", KindEvent)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if gotMethod != "MKCALENDAR" {
			t.Errorf("expected MKCALENDAR, got %s", gotMethod)
		}
		if !strings.Contains(gotBody, "<d:displayname>My Calendar</d:displayname>") {
			t.Errorf("expected displayname in body, got %s", gotBody)
		}
		if col.DisplayName != "My Calendar" || !strings.HasSuffix(col.ID, "/my-calendar/") {
			t.Errorf("unexpected ref: %+v", col)
		}
	})

	t.Run("address books use extended MKCOL", func(t *testing.T) {
		var gotMethod, gotBody string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			data, _ := io.ReadAll(r.Body)
			gotBody = string(data)
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		_, err := testClient(srv).CreateCollection(context.Background(), "Friends & Family", KindContact)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if gotMethod != "MKCOL" {
			t.Errorf("expected MKCOL, got %s", gotMethod)
		}
		if !strings.Contains(gotBody, "<card:addressbook/>") {
			t.Errorf("expected addressbook resourcetype, got %s", gotBody)
		}
		if !strings.Contains(gotBody, "Friends &amp; Family") {
			t.Errorf("expected escaped displayname, got %s", gotBody)
		}
	})

	t.Run("server rejection surfaces as remote error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		if _, err := testClient(srv).CreateCollection(context.Background(), "Nope", KindEvent); !errors.Is(err, shared.ErrRemote) {
			t.Fatalf("expected ErrRemote, got %v", err)
		}
	})
}

func TestCreateItem(t *testing.T) {
	ics := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//t//EN\r\nBEGIN:VEVENT\r\nUID:Event-42\r\nDTSTART:20250101T000000Z\r\nSUMMARY:One\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

	t.Run("derives the target name from the UID", func(t *testing.T) {
		var gotPath, gotContentType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				t.Errorf("unexpected method %s", r.Method)
			}
			gotPath = r.URL.Path
			gotContentType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		col := CollectionRef{ID: "/dav/alice/personal/", Kind: KindEvent}
		if err := testClient(srv).CreateItem(context.Background(), col, []byte(ics)); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if gotPath != "/dav/alice/personal/event-42.ics" {
			t.Errorf("unexpected target path %q", gotPath)
		}
		if !strings.HasPrefix(gotContentType, "text/calendar") {
			t.Errorf("unexpected content type %q", gotContentType)
		}
	})

	t.Run("contacts get a vcf name and content type", func(t *testing.T) {
		var gotPath, gotContentType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotContentType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		vcf := "BEGIN:VCARD\r\nVERSION:3.0\r\nUID:card-1\r\nFN:Ada\r\nEND:VCARD\r\n"
		col := CollectionRef{ID: "/dav/alice/contacts/", Kind: KindContact}
		if err := testClient(srv).CreateItem(context.Background(), col, []byte(vcf)); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if gotPath != "/dav/alice/contacts/card-1.vcf" {
			t.Errorf("unexpected target path %q", gotPath)
		}
		if !strings.HasPrefix(gotContentType, "text/vcard") {
			t.Errorf("unexpected content type %q", gotContentType)
		}
	})

	t.Run("rejection surfaces as remote error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInsufficientStorage)
		}))
		defer srv.Close()

		col := CollectionRef{ID: "/dav/alice/personal/", Kind: KindEvent}
		err := testClient(srv).CreateItem(context.Background(), col, []byte(ics))
		if !errors.Is(err, shared.ErrRemote) {
			t.Fatalf("expected ErrRemote, got %v", err)
		}
	})
}

func TestCollectionSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Calendar", "my-calendar"},
		{"  Personal  ", "personal"},
		{"Événements!", "vnements"},
		{"uid-42@host", "uid-42@host"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := collectionSlug(tt.in); got != tt.want {
				t.Errorf("collectionSlug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
