package wiki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devhatch/wikigen/internal/errors"
)

func TestCreatePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/api/content" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["title"] != "BNFDEV-1 Fix login" {
			t.Errorf("title = %v", body["title"])
		}
		storage := body["body"].(map[string]any)["storage"].(map[string]any)
		if storage["representation"] != "storage" {
			t.Errorf("representation = %v", storage["representation"])
		}
		ancestors := body["ancestors"].([]any)
		if ancestors[0].(map[string]any)["id"] != "100" {
			t.Errorf("ancestors = %v", ancestors)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "555",
			"title":  "BNFDEV-1 Fix login",
			"_links": map[string]string{"webui": "/display/DEV/555"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bot", "secret")
	page, err := c.CreatePage(context.Background(), "100", "BNFDEV-1 Fix login", "<p>x</p>", "DEV")
	if err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}
	if page.ID != "555" {
		t.Errorf("ID = %q, want 555", page.ID)
	}
	if page.URL != srv.URL+"/display/DEV/555" {
		t.Errorf("URL = %q", page.URL)
	}
	if page.SpaceKey != "DEV" {
		t.Errorf("SpaceKey = %q, want DEV", page.SpaceKey)
	}
}

func TestCreatePage_TitleCollision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "bot", "secret").CreatePage(context.Background(), "100", "dup", "<p/>", "DEV")
	if !errors.Is(err, errors.ErrExternal) {
		t.Errorf("err = %v, want EXTERNAL", err)
	}
}

func TestGetPageWithContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/content/555" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if expand := r.URL.Query().Get("expand"); expand != "body.storage,version,space" {
			t.Errorf("expand = %q", expand)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "555",
			"title":   "Release notes",
			"space":   map[string]string{"key": "DEV"},
			"body":    map[string]any{"storage": map[string]string{"value": "<p>existing</p>"}},
			"version": map[string]int{"number": 3},
		})
	}))
	defer srv.Close()

	page, err := NewClient(srv.URL, "bot", "secret").GetPageWithContent(context.Background(), "555")
	if err != nil {
		t.Fatalf("GetPageWithContent failed: %v", err)
	}
	if page.Body != "<p>existing</p>" {
		t.Errorf("Body = %q", page.Body)
	}
	if page.Version != 3 {
		t.Errorf("Version = %d, want 3", page.Version)
	}
	if page.SpaceKey != "DEV" {
		t.Errorf("SpaceKey = %q", page.SpaceKey)
	}
}

func TestGetPageWithContent_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "bot", "secret").GetPageWithContent(context.Background(), "999")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestUpdatePage_VersionConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "bot", "secret").UpdatePage(context.Background(), "555", "t", "<p/>", 4, "DEV")
	if !errors.Is(err, errors.ErrVersionConflict) {
		t.Errorf("err = %v, want VERSION_CONFLICT", err)
	}
}

func TestUpdatePage_SendsVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		version := body["version"].(map[string]any)["number"].(float64)
		if version != 4 {
			t.Errorf("version = %v, want 4", version)
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "555", "title": "t"})
	}))
	defer srv.Close()

	page, err := NewClient(srv.URL, "bot", "secret").UpdatePage(context.Background(), "555", "t", "<p/>", 4, "DEV")
	if err != nil {
		t.Fatalf("UpdatePage failed: %v", err)
	}
	if page.ID != "555" {
		t.Errorf("ID = %q", page.ID)
	}
}

func TestFindPageByTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/content/100/child/page" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": "201", "title": "2025년"},
				{"id": "202", "title": "2026년"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bot", "secret")

	page, err := c.FindPageByTitle(context.Background(), "100", "2026년")
	if err != nil {
		t.Fatalf("FindPageByTitle failed: %v", err)
	}
	if page == nil || page.ID != "202" {
		t.Errorf("page = %+v, want id 202", page)
	}

	missing, err := c.FindPageByTitle(context.Background(), "100", "2027년")
	if err != nil {
		t.Fatalf("FindPageByTitle failed: %v", err)
	}
	if missing != nil {
		t.Errorf("page = %+v, want nil for absent title", missing)
	}
}

func TestSearchPageByTitle_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("spaceKey") != "DEV" {
			t.Errorf("spaceKey = %q", r.URL.Query().Get("spaceKey"))
		}
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	page, err := NewClient(srv.URL, "bot", "secret").SearchPageByTitle(context.Background(), "ghost", "DEV")
	if err != nil {
		t.Fatalf("SearchPageByTitle failed: %v", err)
	}
	if page != nil {
		t.Errorf("page = %+v, want nil", page)
	}
}

func TestGetOrCreateYearMonthPage(t *testing.T) {
	// Year page exists, month page does not: only the month page is created.
	var created []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/api/content/{id}/child/page", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "100":
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{{"id": "201", "title": "2026년"}},
			})
		default:
			json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
		}
	})
	mux.HandleFunc("POST /rest/api/content", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		created = append(created, body["title"].(string))
		json.NewEncoder(w).Encode(map[string]any{"id": "301", "title": body["title"]})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "bot", "secret")
	yearID, monthID, err := c.GetOrCreateYearMonthPage(context.Background(), "100", 2026, 8, "DEV", "", "")
	if err != nil {
		t.Fatalf("GetOrCreateYearMonthPage failed: %v", err)
	}
	if yearID != "201" {
		t.Errorf("yearID = %q, want existing 201", yearID)
	}
	if monthID != "301" {
		t.Errorf("monthID = %q, want created 301", monthID)
	}
	if len(created) != 1 || created[0] != "8월" {
		t.Errorf("created = %v, want [8월]", created)
	}
}

func TestGetOrCreateYearMonthPage_CustomTitles(t *testing.T) {
	var created []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/api/content/{id}/child/page", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	})
	mux.HandleFunc("POST /rest/api/content", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		created = append(created, body["title"].(string))
		json.NewEncoder(w).Encode(map[string]any{"id": "400", "title": body["title"]})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "bot", "secret")
	_, _, err := c.GetOrCreateYearMonthPage(context.Background(), "100", 2026, 8, "DEV", "2026 Releases", "2026-08")
	if err != nil {
		t.Fatalf("GetOrCreateYearMonthPage failed: %v", err)
	}
	if len(created) != 2 || created[0] != "2026 Releases" || created[1] != "2026-08" {
		t.Errorf("created = %v", created)
	}
}
