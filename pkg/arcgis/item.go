package arcgis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/auditor-cli/internal/model"
	"github.com/sells-group/auditor-cli/internal/platform"
)

var _ platform.Item = (*Item)(nil)

// Content status values SetContentStatus accepts.
var validContentStatus = map[string]bool{
	model.ContentStatusNone:          true,
	model.ContentStatusAuthoritative: true,
	model.ContentStatusDeprecated:    true,
	"org_authoritative":              true,
}

// Item is a live handle on one portal item.
type Item struct {
	client *Client
	info   itemJSON
}

// ID returns the item id.
func (i *Item) ID() string { return i.info.ID }

// Title returns the title as last read.
func (i *Item) Title() string { return i.info.Title }

// Type returns the item type, e.g. "Feature Service".
func (i *Item) Type() string { return i.info.Type }

// OwnerFolder returns the id of the owner's folder holding the item.
func (i *Item) OwnerFolder() string { return i.info.OwnerFolder }

func (i *Item) refresh(ctx context.Context) error {
	info, err := i.client.itemInfo(ctx, i.info.ID)
	if err != nil {
		return err
	}
	i.info = *info
	return nil
}

// State reads everything the checks look at in one pass.
func (i *Item) State(ctx context.Context) (*model.ItemState, error) {
	if err := i.refresh(ctx); err != nil {
		return nil, err
	}

	state := &model.ItemState{
		ID:            i.info.ID,
		Title:         i.info.Title,
		Type:          i.info.Type,
		Tags:          append([]string(nil), i.info.Tags...),
		Protected:     i.info.Protected,
		Description:   i.info.Description,
		ContentStatus: i.info.ContentStatus,
		OwnerFolder:   i.info.OwnerFolder,
	}

	groups, err := i.sharedGroups(ctx)
	if err != nil {
		state.GroupsErr = eris.Wrap(platform.ErrGroupsUnavailable, err.Error())
	} else {
		state.SharedGroups = groups
	}

	if state.Metadata, err = i.Metadata(ctx); err != nil {
		return nil, err
	}
	// A refused admin endpoint leaves the service settings unknown; the
	// item's other attributes are still checked.
	if state.Properties, err = i.ServiceProperties(ctx); ignoreAPIError(err) != nil {
		return nil, err
	}
	if state.Properties == nil {
		return state, nil
	}
	if state.Layers, err = i.Layers(ctx); ignoreAPIError(err) != nil {
		return nil, err
	}
	return state, nil
}

// Tags returns the item's current tags.
func (i *Item) Tags(ctx context.Context) ([]string, error) {
	if err := i.refresh(ctx); err != nil {
		return nil, err
	}
	return append([]string(nil), i.info.Tags...), nil
}

// Description returns the item's current description.
func (i *Item) Description(ctx context.Context) (string, error) {
	if err := i.refresh(ctx); err != nil {
		return "", err
	}
	return i.info.Description, nil
}

type itemGroupsResponse struct {
	Admin  []folderJSON `json:"admin"`
	Member []folderJSON `json:"member"`
	Other  []folderJSON `json:"other"`
}

func (i *Item) sharedGroups(ctx context.Context) ([]string, error) {
	var resp itemGroupsResponse
	if err := i.client.call(ctx, http.MethodGet, i.client.restURL("content", "items", i.info.ID, "groups"), nil, &resp); err != nil {
		return nil, eris.Wrapf(err, "arcgis: list groups for %s", i.info.ID)
	}

	var titles []string
	for _, set := range [][]folderJSON{resp.Admin, resp.Member, resp.Other} {
		for _, g := range set {
			titles = append(titles, g.Title)
		}
	}
	return titles, nil
}

// Metadata returns the item's metadata document, or the empty string when it
// has none.
func (i *Item) Metadata(ctx context.Context) (string, error) {
	c := i.client
	params := url.Values{}
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}
	if token != "" {
		params.Set("token", token)
	}

	endpoint := c.restURL("content", "items", i.info.ID, "info", "metadata", "metadata.xml")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", eris.Wrap(err, "arcgis: create request")
	}

	body, err := c.fetch(ctx, req)
	if _, ok := asAPIError(err); ok {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "arcgis: get metadata for %s", i.info.ID)
	}

	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "{") {
		if derr := decode(body, nil); derr != nil {
			return "", c.checkToken(ignoreAPIError(derr))
		}
	}
	return string(body), nil
}

// ignoreAPIError drops platform refusals, keeping transient failures.
func ignoreAPIError(err error) error {
	if apiErr, ok := asAPIError(err); ok && !apiErr.invalidToken() {
		return nil
	}
	return err
}

// adminURL maps a hosted service URL to its admin endpoint.
func adminURL(serviceURL string) string {
	return strings.Replace(strings.TrimRight(serviceURL, "/"), "/rest/services/", "/rest/admin/services/", 1)
}

type serviceAdminResponse struct {
	Capabilities     string `json:"capabilities"`
	AdminServiceInfo struct {
		CacheMaxAge int `json:"cacheMaxAge"`
	} `json:"adminServiceInfo"`
	Layers []struct {
		ID int `json:"id"`
	} `json:"layers"`
}

func (i *Item) serviceAdmin(ctx context.Context) (*serviceAdminResponse, error) {
	var resp serviceAdminResponse
	if err := i.client.call(ctx, http.MethodGet, adminURL(i.info.URL), nil, &resp); err != nil {
		return nil, eris.Wrapf(err, "arcgis: get service definition for %s", i.info.ID)
	}
	return &resp, nil
}

// ServiceProperties returns the feature service settings, or nil for items
// that are not backed by a service.
func (i *Item) ServiceProperties(ctx context.Context) (*model.ServiceProperties, error) {
	if i.info.URL == "" {
		return nil, nil
	}
	resp, err := i.serviceAdmin(ctx)
	if err != nil {
		return nil, err
	}
	return &model.ServiceProperties{
		Capabilities: resp.Capabilities,
		CacheMaxAge:  resp.AdminServiceInfo.CacheMaxAge,
	}, nil
}

type layerAdminResponse struct {
	DefaultVisibility *bool `json:"defaultVisibility"`
}

// Layers returns each layer's admin URL and default visibility. A layer
// whose definition cannot be read keeps a nil visibility.
func (i *Item) Layers(ctx context.Context) ([]model.LayerState, error) {
	if i.info.URL == "" {
		return nil, nil
	}
	svc, err := i.serviceAdmin(ctx)
	if err != nil {
		return nil, err
	}

	base := adminURL(i.info.URL)
	layers := make([]model.LayerState, 0, len(svc.Layers))
	for _, l := range svc.Layers {
		layerURL := base + "/" + strconv.Itoa(l.ID)
		state := model.LayerState{URL: layerURL}

		var resp layerAdminResponse
		err := i.client.call(ctx, http.MethodGet, layerURL, nil, &resp)
		if ignoreAPIError(err) != nil {
			return nil, eris.Wrapf(err, "arcgis: get layer %s", layerURL)
		}
		if err == nil {
			state.DefaultVisibility = resp.DefaultVisibility
		}
		layers = append(layers, state)
	}
	return layers, nil
}

type successResponse struct {
	Success bool `json:"success"`
}

func (i *Item) userItemURL(action string) string {
	return i.client.restURL("content", "users", i.info.Owner, "items", i.info.ID, action)
}

// Update changes the fields set on update.
func (i *Item) Update(ctx context.Context, update platform.ItemUpdate) (bool, error) {
	params := url.Values{}
	if update.Tags != nil {
		params.Set("tags", strings.Join(update.Tags, ","))
		if len(update.Tags) == 0 {
			params.Set("clearEmptyFields", "true")
		}
	}
	if update.Title != nil {
		params.Set("title", *update.Title)
	}
	if update.Description != nil {
		params.Set("description", *update.Description)
	}

	var resp successResponse
	if err := i.client.call(ctx, http.MethodPost, i.userItemURL("update"), params, &resp); err != nil {
		return false, eris.Wrapf(err, "arcgis: update item %s", i.info.ID)
	}
	if resp.Success {
		if update.Tags != nil {
			i.info.Tags = append([]string(nil), update.Tags...)
		}
		if update.Title != nil {
			i.info.Title = *update.Title
		}
		if update.Description != nil {
			i.info.Description = *update.Description
		}
	}
	return resp.Success, nil
}

// UploadMetadata replaces the item's metadata document.
func (i *Item) UploadMetadata(ctx context.Context, xml string) (bool, error) {
	if len(xml) > platform.MaxMetadataLength {
		return false, eris.Wrapf(platform.ErrMetadataTooLong, "arcgis: %d characters", len(xml))
	}

	var resp successResponse
	if err := i.client.upload(ctx, i.userItemURL("update"), nil, "metadata", "metadata.xml", strings.NewReader(xml), &resp); err != nil {
		return false, eris.Wrapf(err, "arcgis: upload metadata for %s", i.info.ID)
	}
	return resp.Success, nil
}

// UploadThumbnail replaces the item's thumbnail with the image at path.
func (i *Item) UploadThumbnail(ctx context.Context, path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, eris.Wrapf(err, "arcgis: open thumbnail %s", path)
	}
	defer f.Close() //nolint:errcheck

	var resp successResponse
	if err := i.client.upload(ctx, i.userItemURL("update"), nil, "thumbnail", filepath.Base(path), f, &resp); err != nil {
		return false, eris.Wrapf(err, "arcgis: upload thumbnail for %s", i.info.ID)
	}
	return resp.Success, nil
}

type moveResponse struct {
	Success bool   `json:"success"`
	Folder  string `json:"folder"`
}

// Move moves the item to the owner's folder titled folder. The empty title is
// the root folder. Returns nil when no folder has that title.
func (i *Item) Move(ctx context.Context, folder string) (*platform.MoveResult, error) {
	folders, err := i.client.Folders(ctx)
	if err != nil {
		return nil, err
	}

	folderID, found := "", false
	for id, title := range folders {
		if title == folder {
			folderID, found = id, true
			break
		}
	}
	if !found {
		return nil, nil
	}
	if folderID == "" {
		folderID = "/"
	}

	params := url.Values{}
	params.Set("folder", folderID)

	var resp moveResponse
	if err := i.client.call(ctx, http.MethodPost, i.userItemURL("move"), params, &resp); err != nil {
		return nil, eris.Wrapf(err, "arcgis: move item %s", i.info.ID)
	}
	if resp.Success {
		i.info.OwnerFolder = strings.TrimPrefix(folderID, "/")
	}
	return &platform.MoveResult{Success: resp.Success, Folder: folder}, nil
}

// Protect turns delete protection on or off.
func (i *Item) Protect(ctx context.Context, enable bool) (bool, error) {
	action := "unprotect"
	if enable {
		action = "protect"
	}

	var resp successResponse
	if err := i.client.call(ctx, http.MethodPost, i.userItemURL(action), nil, &resp); err != nil {
		return false, eris.Wrapf(err, "arcgis: %s item %s", action, i.info.ID)
	}
	if resp.Success {
		i.info.Protected = enable
	}
	return resp.Success, nil
}

type shareResponse struct {
	NotSharedWith []string `json:"notSharedWith"`
	ItemID        string   `json:"itemId"`
}

func (i *Item) share(ctx context.Context, params url.Values) (bool, error) {
	var resp shareResponse
	if err := i.client.call(ctx, http.MethodPost, i.userItemURL("share"), params, &resp); err != nil {
		return false, eris.Wrapf(err, "arcgis: share item %s", i.info.ID)
	}
	return len(resp.NotSharedWith) == 0, nil
}

// ShareEveryone shares the item publicly.
func (i *Item) ShareEveryone(ctx context.Context) (bool, error) {
	params := url.Values{}
	params.Set("everyone", "true")
	params.Set("org", "true")
	return i.share(ctx, params)
}

// ShareGroup shares the item with one group.
func (i *Item) ShareGroup(ctx context.Context, groupID string) (bool, error) {
	params := url.Values{}
	params.Set("groups", groupID)
	return i.share(ctx, params)
}

// SetContentStatus sets or, with the empty status, clears the item's
// authoritative or deprecated marking.
func (i *Item) SetContentStatus(ctx context.Context, status string) error {
	if !validContentStatus[status] {
		return eris.Wrapf(platform.ErrInvalidStatus, "arcgis: status %q", status)
	}

	params := url.Values{}
	params.Set("status", status)
	params.Set("clearEmptyFields", "true")

	var resp successResponse
	err := i.client.call(ctx, http.MethodPost, i.client.restURL("content", "items", i.info.ID, "setContentStatus"), params, &resp)
	if apiErr, ok := asAPIError(err); ok {
		switch {
		case apiErr.forbidden():
			return eris.Wrap(platform.ErrNotAdmin, apiErr.Error())
		case apiErr.invalidArgument():
			return eris.Wrap(platform.ErrInvalidStatus, apiErr.Error())
		}
	}
	if err != nil {
		return eris.Wrapf(err, "arcgis: set content status for %s", i.info.ID)
	}
	if !resp.Success {
		return eris.Errorf("arcgis: set content status for %s: not applied", i.info.ID)
	}
	i.info.ContentStatus = status
	return nil
}

func (i *Item) updateDefinition(ctx context.Context, endpoint string, definition map[string]any) (bool, error) {
	encoded, err := json.Marshal(definition)
	if err != nil {
		return false, eris.Wrap(err, "arcgis: encode definition")
	}

	params := url.Values{}
	params.Set("updateDefinition", string(encoded))
	params.Set("async", "false")

	var resp successResponse
	if err := i.client.call(ctx, http.MethodPost, strings.TrimRight(endpoint, "/")+"/updateDefinition", params, &resp); err != nil {
		return false, eris.Wrapf(err, "arcgis: update definition at %s", endpoint)
	}
	return resp.Success, nil
}

// UpdateServiceDefinition applies definition to the feature service.
func (i *Item) UpdateServiceDefinition(ctx context.Context, definition map[string]any) (bool, error) {
	if i.info.URL == "" {
		return false, eris.Errorf("arcgis: item %s has no service", i.info.ID)
	}
	return i.updateDefinition(ctx, adminURL(i.info.URL), definition)
}

// UpdateLayerDefinition applies definition to one layer's admin endpoint.
func (i *Item) UpdateLayerDefinition(ctx context.Context, layerURL string, definition map[string]any) (bool, error) {
	return i.updateDefinition(ctx, adminURL(layerURL), definition)
}
