package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/devhatch/wikigen/internal/errors"
)

// Client calls the Confluence Server REST API.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewClient creates a Client for the Confluence instance at baseURL.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// pageDoc is the shared shape of content API responses.
type pageDoc struct {
	ID    json.Number `json:"id"`
	Title string      `json:"title"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Version struct {
		Number int `json:"number"`
	} `json:"version"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

// pageURL prefers the webui link and falls back to the viewpage URL.
func (c *Client) pageURL(doc *pageDoc) string {
	if doc.Links.WebUI != "" {
		return c.baseURL + doc.Links.WebUI
	}
	if id := doc.ID.String(); id != "" {
		return c.baseURL + "/pages/viewpage.action?pageId=" + id
	}
	return ""
}

func (c *Client) toPage(doc *pageDoc, fallbackSpace string) Page {
	page := Page{
		ID:       doc.ID.String(),
		Title:    doc.Title,
		URL:      c.pageURL(doc),
		SpaceKey: doc.Space.Key,
	}
	if page.SpaceKey == "" {
		page.SpaceKey = fallbackSpace
	}
	return page
}

// GetChildPages lists the direct child pages of a page.
func (c *Client) GetChildPages(ctx context.Context, pageID string) ([]Page, error) {
	var payload struct {
		Results []pageDoc `json:"results"`
	}
	path := "/rest/api/content/" + url.PathEscape(pageID) + "/child/page"
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}

	pages := make([]Page, 0, len(payload.Results))
	for i := range payload.Results {
		pages = append(pages, c.toPage(&payload.Results[i], ""))
	}
	return pages, nil
}

// CreatePage creates a page under a parent. A title collision inside the
// space surfaces as a VERSION_CONFLICT.
func (c *Client) CreatePage(ctx context.Context, parentPageID, title, body, spaceKey string) (*Page, error) {
	payload := map[string]any{
		"type":      "page",
		"title":     title,
		"ancestors": []map[string]string{{"id": parentPageID}},
		"space":     map[string]string{"key": spaceKey},
		"body": map[string]any{
			"storage": map[string]string{
				"value":          body,
				"representation": "storage",
			},
		},
	}

	var doc pageDoc
	if err := c.do(ctx, http.MethodPost, "/rest/api/content", payload, &doc); err != nil {
		if errors.Is(err, errors.ErrVersionConflict) {
			return nil, errors.NewExternal("confluence", fmt.Sprintf("a page titled %q already exists", title))
		}
		return nil, err
	}

	page := c.toPage(&doc, spaceKey)
	if page.Title == "" {
		page.Title = title
	}
	log.Printf("wiki page created: id=%s title=%q", page.ID, page.Title)
	return &page, nil
}

// FindPageByTitle scans a parent's children for an exact title match.
// Returns nil when no child matches.
func (c *Client) FindPageByTitle(ctx context.Context, parentPageID, title string) (*Page, error) {
	children, err := c.GetChildPages(ctx, parentPageID)
	if err != nil {
		return nil, err
	}
	for i := range children {
		if children[i].Title == title {
			return &children[i], nil
		}
	}
	return nil, nil
}

// SearchPageByTitle finds a page by exact title anywhere in a space.
// Returns nil when no page matches.
func (c *Client) SearchPageByTitle(ctx context.Context, title, spaceKey string) (*Page, error) {
	q := url.Values{}
	q.Set("title", title)
	q.Set("spaceKey", spaceKey)
	q.Set("type", "page")
	q.Set("limit", "1")

	var payload struct {
		Results []pageDoc `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/api/content?"+q.Encode(), nil, &payload); err != nil {
		return nil, err
	}
	if len(payload.Results) == 0 {
		return nil, nil
	}
	page := c.toPage(&payload.Results[0], spaceKey)
	return &page, nil
}

// GetOrCreateYearMonthPage resolves the year and month container pages under
// the root, creating whichever is missing. Empty titles fall back to the
// Korean "<year>년" / "<month>월" forms.
func (c *Client) GetOrCreateYearMonthPage(ctx context.Context, rootPageID string, year, month int, spaceKey, yearTitle, monthTitle string) (yearPageID, monthPageID string, err error) {
	if yearTitle == "" {
		yearTitle = strconv.Itoa(year) + "년"
	}
	if monthTitle == "" {
		monthTitle = strconv.Itoa(month) + "월"
	}

	yearPage, err := c.FindPageByTitle(ctx, rootPageID, yearTitle)
	if err != nil {
		return "", "", err
	}
	if yearPage == nil {
		yearPage, err = c.CreatePage(ctx, rootPageID, yearTitle,
			"<p>"+yearTitle+" 이슈 정리 목록</p>", spaceKey)
		if err != nil {
			return "", "", err
		}
	}

	monthPage, err := c.FindPageByTitle(ctx, yearPage.ID, monthTitle)
	if err != nil {
		return "", "", err
	}
	if monthPage == nil {
		monthPage, err = c.CreatePage(ctx, yearPage.ID, monthTitle,
			"<p>"+yearTitle+" "+monthTitle+" 이슈 정리 목록</p>", spaceKey)
		if err != nil {
			return "", "", err
		}
	}

	return yearPage.ID, monthPage.ID, nil
}

// GetPageWithContent fetches a page including its storage body and version.
func (c *Client) GetPageWithContent(ctx context.Context, pageID string) (*PageWithContent, error) {
	path := "/rest/api/content/" + url.PathEscape(pageID) + "?expand=" + url.QueryEscape("body.storage,version,space")

	var doc pageDoc
	if err := c.do(ctx, http.MethodGet, path, nil, &doc); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFound("wiki page", pageID)
		}
		return nil, err
	}

	page := &PageWithContent{
		Page:    c.toPage(&doc, ""),
		Body:    doc.Body.Storage.Value,
		Version: doc.Version.Number,
	}
	if page.Version == 0 {
		page.Version = 1
	}
	return page, nil
}

// UpdatePage replaces a page's title and body. version must be the current
// version plus one; a concurrent edit surfaces as a VERSION_CONFLICT the
// caller can retry after re-reading.
func (c *Client) UpdatePage(ctx context.Context, pageID, title, body string, version int, spaceKey string) (*Page, error) {
	payload := map[string]any{
		"type":  "page",
		"title": title,
		"space": map[string]string{"key": spaceKey},
		"body": map[string]any{
			"storage": map[string]string{
				"value":          body,
				"representation": "storage",
			},
		},
		"version": map[string]int{"number": version},
	}

	var doc pageDoc
	path := "/rest/api/content/" + url.PathEscape(pageID)
	if err := c.do(ctx, http.MethodPut, path, payload, &doc); err != nil {
		if errors.Is(err, errors.ErrVersionConflict) {
			return nil, errors.NewVersionConflict(pageID)
		}
		return nil, err
	}

	page := c.toPage(&doc, spaceKey)
	if page.Title == "" {
		page.Title = title
	}
	log.Printf("wiki page updated: id=%s version=%d", page.ID, version)
	return &page, nil
}

// do runs one API request. A non-nil out receives the decoded JSON body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.NewInternal("encode confluence request: " + err.Error())
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.NewInternal("build confluence request: " + err.Error())
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewExternal("confluence", "connection failed: "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.NewExternal("confluence", "authentication failed, check USER_ID and USER_PASSWORD")
		case http.StatusForbidden:
			return errors.NewExternal("confluence", "access denied")
		case http.StatusNotFound:
			return errors.NewNotFound("confluence resource", method+" "+path)
		case http.StatusConflict:
			return errors.NewVersionConflict(path)
		case http.StatusBadRequest:
			return errors.NewExternal("confluence", "bad request: "+strings.TrimSpace(string(snippet)))
		default:
			return errors.NewExternal("confluence", fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewExternal("confluence", "decode response: "+err.Error())
	}
	return nil
}
