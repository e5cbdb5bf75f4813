package arcgis

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/auditor-cli/internal/platform"
)

var _ platform.Portal = (*Client)(nil)

type folderJSON struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type itemJSON struct {
	ID            string   `json:"id"`
	Owner         string   `json:"owner"`
	Title         string   `json:"title"`
	Type          string   `json:"type"`
	OwnerFolder   string   `json:"ownerFolder"`
	URL           string   `json:"url"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags"`
	Protected     bool     `json:"protected"`
	ContentStatus string   `json:"contentStatus"`
}

type userContentResponse struct {
	Folders   []folderJSON `json:"folders"`
	Items     []itemJSON   `json:"items"`
	NextStart int          `json:"nextStart"`
}

type groupSearchResponse struct {
	Results   []folderJSON `json:"results"`
	NextStart int          `json:"nextStart"`
}

type portalSelfResponse struct {
	ID string `json:"id"`
}

type queryResponse struct {
	Features []struct {
		Attributes map[string]any `json:"attributes"`
	} `json:"features"`
	ExceededTransferLimit bool `json:"exceededTransferLimit"`
}

// Folders returns folder id to title for the user, including the root folder
// under the empty id.
func (c *Client) Folders(ctx context.Context) (map[string]string, error) {
	params := url.Values{}
	params.Set("num", "1")

	var resp userContentResponse
	if err := c.call(ctx, http.MethodGet, c.restURL("content", "users", c.username), params, &resp); err != nil {
		return nil, eris.Wrap(err, "arcgis: list folders")
	}

	folders := map[string]string{"": ""}
	for _, f := range resp.Folders {
		folders[f.ID] = f.Title
	}
	return folders, nil
}

// UserItems lists every item in one of the user's folders. The empty folder
// id lists the root folder.
func (c *Client) UserItems(ctx context.Context, folderID string) ([]platform.Summary, error) {
	endpoint := c.restURL("content", "users", c.username)
	if folderID != "" {
		endpoint = c.restURL("content", "users", c.username, folderID)
	}

	var items []platform.Summary
	start := 1
	for {
		params := url.Values{}
		params.Set("start", strconv.Itoa(start))
		params.Set("num", strconv.Itoa(c.pageSize))

		var resp userContentResponse
		if err := c.call(ctx, http.MethodGet, endpoint, params, &resp); err != nil {
			return nil, eris.Wrapf(err, "arcgis: list items in folder %q", folderID)
		}
		for _, it := range resp.Items {
			items = append(items, it.summary())
		}

		if resp.NextStart <= start {
			return items, nil
		}
		start = resp.NextStart
	}
}

// Item fetches one item. Returns platform.ErrItemNotFound when the portal
// does not know the id.
func (c *Client) Item(ctx context.Context, id string) (platform.Item, error) {
	info, err := c.itemInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Item{client: c, info: *info}, nil
}

func (c *Client) itemInfo(ctx context.Context, id string) (*itemJSON, error) {
	var info itemJSON
	err := c.call(ctx, http.MethodGet, c.restURL("content", "items", id), nil, &info)
	if apiErr, ok := asAPIError(err); ok && apiErr.notFound() {
		return nil, eris.Wrapf(platform.ErrItemNotFound, "arcgis: item %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "arcgis: get item %s", id)
	}
	if info.ID == "" {
		return nil, eris.Wrapf(platform.ErrItemNotFound, "arcgis: item %s", id)
	}
	return &info, nil
}

// Groups returns group title to id for every group in the user's
// organization.
func (c *Client) Groups(ctx context.Context) (map[string]string, error) {
	var self portalSelfResponse
	if err := c.call(ctx, http.MethodGet, c.restURL("portals", "self"), nil, &self); err != nil {
		return nil, eris.Wrap(err, "arcgis: get portal")
	}

	groups := make(map[string]string)
	start := 1
	for {
		params := url.Values{}
		params.Set("q", "orgid:"+self.ID)
		params.Set("start", strconv.Itoa(start))
		params.Set("num", strconv.Itoa(c.pageSize))

		var resp groupSearchResponse
		if err := c.call(ctx, http.MethodGet, c.restURL("community", "groups"), params, &resp); err != nil {
			return nil, eris.Wrap(err, "arcgis: search groups")
		}
		for _, g := range resp.Results {
			groups[g.Title] = g.ID
		}

		if resp.NextStart <= start {
			return groups, nil
		}
		start = resp.NextStart
	}
}

// QueryTable reads every row of the hosted table or layer at tableURL,
// paging until the service stops reporting a transfer limit.
func (c *Client) QueryTable(ctx context.Context, tableURL string, fields []string) ([][]string, error) {
	endpoint := strings.TrimRight(tableURL, "/") + "/query"

	var rows [][]string
	for {
		params := url.Values{}
		params.Set("where", "1=1")
		params.Set("outFields", strings.Join(fields, ","))
		params.Set("returnGeometry", "false")
		params.Set("resultOffset", strconv.Itoa(len(rows)))

		var resp queryResponse
		if err := c.call(ctx, http.MethodGet, endpoint, params, &resp); err != nil {
			return nil, eris.Wrapf(err, "arcgis: query %s", tableURL)
		}
		for _, f := range resp.Features {
			row := make([]string, len(fields))
			for i, field := range fields {
				row[i] = attributeString(f.Attributes[field])
			}
			rows = append(rows, row)
		}

		if !resp.ExceededTransferLimit || len(resp.Features) == 0 {
			return rows, nil
		}
	}
}

func attributeString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func (it itemJSON) summary() platform.Summary {
	return platform.Summary{
		ID:          it.ID,
		Title:       it.Title,
		Type:        it.Type,
		OwnerFolder: it.OwnerFolder,
	}
}
