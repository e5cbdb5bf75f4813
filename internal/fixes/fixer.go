// Package fixes applies the changes recorded by the checks to a live item.
//
// Every fix writes a result string for its attribute. Business refusals from
// the platform become result strings; transport errors are returned so the
// caller can retry.
package fixes

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/auditor-cli/internal/metadata"
	"github.com/sells-group/auditor-cli/internal/model"
	"github.com/sells-group/auditor-cli/internal/platform"
)

// DescriptionSeparator joins a note to the existing description.
const DescriptionSeparator = "<div><br />"

// NotAdminMessage is reported when the account may not change content status.
const NotAdminMessage = "User does not have privileges to change content status. " +
	"Please use an AGOL account that is assigned the Administrator role."

// Options holds the organization-wide inputs the fixes need.
type Options struct {
	// Groups maps group title to group id.
	Groups      map[string]string
	StaticNote  string
	ShelvedNote string
	// Metadata loads the source documents named in the report.
	Metadata metadata.Source
}

// Fixer applies one item's report entry to the item.
type Fixer struct {
	item   platform.Item
	report *model.ReportEntry
	opts   Options
}

// New returns a Fixer for item driven by report.
func New(item platform.Item, report *model.ReportEntry, opts Options) *Fixer {
	return &Fixer{item: item, report: report, opts: opts}
}

// Step is one named fix.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// All returns every fix in run order. Metadata goes first so the later tag,
// title and description fixes are not overwritten by the upload.
func (f *Fixer) All() []Step {
	return []Step{
		{model.AttrMetadata, f.Metadata},
		{model.AttrTags, f.Tags},
		{model.AttrTitle, f.Title},
		{model.AttrGroups, f.Groups},
		{model.AttrFolder, f.Folder},
		{model.AttrDeleteProtection, f.DeleteProtection},
		{model.AttrDownloads, f.Downloads},
		{model.AttrDescriptionNote, f.DescriptionNote},
		{model.AttrThumbnail, f.Thumbnail},
		{model.AttrAuthoritative, f.Authoritative},
		{model.AttrVisibility, f.Visibility},
		{model.AttrCacheAge, f.CacheAge},
	}
}

// Tags replaces the item's tags.
func (f *Fixer) Tags(ctx context.Context) error {
	newTags := f.report.Tags.New
	if len(newTags) == 0 {
		f.report.Tags.Result = model.NoUpdate("tags")
		return nil
	}

	ok, err := f.item.Update(ctx, platform.ItemUpdate{Tags: newTags})
	if err != nil {
		return eris.Wrap(err, "fixes: update tags")
	}
	if !ok {
		f.report.Tags.Result = "Failed to update tags to " + model.FormatList(newTags)
		return nil
	}
	f.report.Tags.Result = "Updated tags to " + model.FormatList(newTags)
	return nil
}

// Title replaces the item's title.
func (f *Fixer) Title(ctx context.Context) error {
	title := f.report.Title.New
	if title == "" {
		f.report.Title.Result = model.NoUpdate("title")
		return nil
	}

	ok, err := f.item.Update(ctx, platform.ItemUpdate{Title: &title})
	if err != nil {
		return eris.Wrap(err, "fixes: update title")
	}
	if !ok {
		f.report.Title.Result = fmt.Sprintf("Failed to update title to '%s'", title)
		return nil
	}
	f.report.Title.Result = fmt.Sprintf("Updated title to '%s'", title)
	return nil
}

// Groups shares the item with everyone and with its category group.
func (f *Fixer) Groups(ctx context.Context) error {
	if !f.report.Groups.Fix.Needed() {
		f.report.Groups.Result = model.NoUpdate("groups")
		return nil
	}

	name := f.report.Groups.New
	groupID, found := f.opts.Groups[name]
	if !found {
		f.report.Groups.Result = fmt.Sprintf("Cannot find group '%s' in organization", name)
		return nil
	}

	everyoneOK, err := f.item.ShareEveryone(ctx)
	if err != nil {
		return eris.Wrap(err, "fixes: share with everyone")
	}
	groupOK, err := f.item.ShareGroup(ctx, groupID)
	if err != nil {
		return eris.Wrapf(err, "fixes: share with group %s", name)
	}

	everyone := "Shared with everyone"
	if !everyoneOK {
		everyone = "Failed to share with everyone"
	}
	group := fmt.Sprintf("Shared with group '%s'", name)
	if !groupOK {
		group = fmt.Sprintf("Failed to share with group '%s'", name)
	}
	f.report.Groups.Result = everyone + ", " + group
	return nil
}

// Folder moves the item to its category folder.
func (f *Fixer) Folder(ctx context.Context) error {
	if !f.report.Folder.Fix.Needed() {
		f.report.Folder.Result = model.NoUpdate("folder")
		return nil
	}

	folder := f.report.Folder.New
	res, err := f.item.Move(ctx, folder)
	if err != nil {
		return eris.Wrapf(err, "fixes: move to %s", folder)
	}

	switch {
	case res == nil:
		f.report.Folder.Result = fmt.Sprintf("'%s' folder not found", folder)
	case !res.Success:
		f.report.Folder.Result = fmt.Sprintf("Failed to move item to '%s' folder", folder)
	default:
		f.report.Folder.Result = fmt.Sprintf("Item moved to '%s' folder", folder)
	}
	return nil
}

// DeleteProtection turns on delete protection.
func (f *Fixer) DeleteProtection(ctx context.Context) error {
	if !f.report.DeleteProtection.Fix.Needed() {
		f.report.DeleteProtection.Result = model.NoUpdate("delete protection")
		return nil
	}

	ok, err := f.item.Protect(ctx, true)
	if err != nil {
		return eris.Wrap(err, "fixes: protect")
	}
	if !ok {
		f.report.DeleteProtection.Result = "Failed to protect item"
		return nil
	}
	f.report.DeleteProtection.Result = "Item protected"
	return nil
}

// Downloads adds the Extract capability to the service.
func (f *Fixer) Downloads(ctx context.Context) error {
	if !f.report.Downloads.Fix.Needed() {
		f.report.Downloads.Result = model.NoUpdate("downloads")
		return nil
	}

	props, err := f.item.ServiceProperties(ctx)
	if err != nil {
		return eris.Wrap(err, "fixes: read service properties")
	}
	if props == nil {
		return eris.New("fixes: service has no properties")
	}

	ok, err := f.item.UpdateServiceDefinition(ctx, map[string]any{
		"capabilities": props.Capabilities + ",Extract",
	})
	if err != nil {
		return eris.Wrap(err, "fixes: enable downloads")
	}
	if !ok {
		f.report.Downloads.Result = "Failed to enable downloads"
		return nil
	}
	f.report.Downloads.Result = "Downloads enabled"
	return nil
}

// Metadata uploads the source document, then puts back the tags the upload
// replaces.
func (f *Fixer) Metadata(ctx context.Context) error {
	if !f.report.Metadata.Fix.Needed() {
		f.report.Metadata.Result = model.NoUpdate("metadata")
		return nil
	}
	if f.opts.Metadata == nil {
		return eris.New("fixes: no metadata source configured")
	}

	path := f.report.Metadata.New
	doc, err := f.opts.Metadata.Load(path)
	if err != nil {
		return eris.Wrap(err, "fixes: load metadata")
	}

	goodTags, err := f.item.Tags(ctx)
	if err != nil {
		return eris.Wrap(err, "fixes: save tags")
	}

	uploaded, err := f.item.UploadMetadata(ctx, doc.XML)
	if eris.Is(err, platform.ErrMetadataTooLong) {
		f.report.Metadata.Result = fmt.Sprintf("Metadata too long to upload from '%s' (>32,767 characters)", path)
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "fixes: upload metadata")
	}

	tagResult := "successfully reapplied tags"
	reapplied, err := f.item.Update(ctx, platform.ItemUpdate{Tags: goodTags})
	if err != nil {
		return eris.Wrap(err, "fixes: reapply tags")
	}
	if !reapplied {
		tagResult = "unable to reapply tags"
	}

	current, err := f.item.Metadata(ctx)
	if err != nil {
		return eris.Wrap(err, "fixes: read metadata")
	}
	if !uploaded || strings.TrimSpace(current) != doc.XML {
		f.report.Metadata.Result = fmt.Sprintf("Tried to update metadata from '%s'; verify manually; %s", path, tagResult)
		return nil
	}
	f.report.Metadata.Result = fmt.Sprintf("Metadata updated from '%s'; %s", path, tagResult)
	return nil
}

// DescriptionNote prepends the static or shelved note to the description.
func (f *Fixer) DescriptionNote(ctx context.Context) error {
	if !f.report.DescriptionNote.Fix.Needed() {
		f.report.DescriptionNote.Result = model.NoUpdate("description")
		return nil
	}

	source := f.report.DescriptionNote.Source
	description, err := f.item.Description(ctx)
	if err != nil {
		return eris.Wrap(err, "fixes: read description")
	}

	switch source {
	case model.CategoryShelved:
		description = f.opts.ShelvedNote + DescriptionSeparator + description
	case model.CategoryStatic:
		description = f.opts.StaticNote + DescriptionSeparator + description
	}

	ok, err := f.item.Update(ctx, platform.ItemUpdate{Description: &description})
	if err != nil {
		return eris.Wrap(err, "fixes: update description")
	}
	if !ok {
		f.report.DescriptionNote.Result = fmt.Sprintf("Failed to add %s note to description", source)
		return nil
	}
	f.report.DescriptionNote.Result = fmt.Sprintf("%s note added to description", source)
	return nil
}

// Thumbnail uploads the category thumbnail.
func (f *Fixer) Thumbnail(ctx context.Context) error {
	if !f.report.Thumbnail.Fix.Needed() {
		f.report.Thumbnail.Result = model.NoUpdate("thumbnail")
		return nil
	}

	path := f.report.Thumbnail.Path
	ok, err := f.item.UploadThumbnail(ctx, path)
	if err != nil {
		return eris.Wrap(err, "fixes: upload thumbnail")
	}
	if !ok {
		f.report.Thumbnail.Result = "Failed to update thumbnail from " + path
		return nil
	}
	f.report.Thumbnail.Result = "Thumbnail updated from " + path
	return nil
}

// Authoritative sets or clears the content status.
func (f *Fixer) Authoritative(ctx context.Context) error {
	if !f.report.Authoritative.Fix.Needed() {
		f.report.Authoritative.Result = model.NoUpdate("content status")
		return nil
	}

	status := f.report.Authoritative.New
	err := f.item.SetContentStatus(ctx, status)
	switch {
	case eris.Is(err, platform.ErrInvalidStatus):
		f.report.Authoritative.Result = fmt.Sprintf("Invalid new authoritative value '%s'", status)
	case eris.Is(err, platform.ErrNotAdmin):
		f.report.Authoritative.Result = NotAdminMessage
	case err != nil:
		return eris.Wrap(err, "fixes: set content status")
	case status == model.ContentStatusNone:
		f.report.Authoritative.Result = "Content status cleared"
	default:
		f.report.Authoritative.Result = fmt.Sprintf("Content status updated to '%s'", status)
	}
	return nil
}

// Visibility makes every layer visible by default.
func (f *Fixer) Visibility(ctx context.Context) error {
	if !f.report.Visibility.Fix.Needed() {
		f.report.Visibility.Result = model.NoUpdate("visibility")
		return nil
	}

	layers, err := f.item.Layers(ctx)
	if err != nil {
		return eris.Wrap(err, "fixes: list layers")
	}

	success := true
	for _, layer := range layers {
		ok, err := f.item.UpdateLayerDefinition(ctx, layer.URL, map[string]any{"defaultVisibility": true})
		if err != nil {
			return eris.Wrapf(err, "fixes: update layer %s", layer.URL)
		}
		if !ok {
			success = false
		}
	}

	if !success {
		f.report.Visibility.Result = "Failed to set default visibility to True"
		return nil
	}
	f.report.Visibility.Result = "Default visibility set to True"
	return nil
}

// CacheAge sets the service's cacheMaxAge.
func (f *Fixer) CacheAge(ctx context.Context) error {
	if !f.report.CacheAge.Fix.Needed() {
		f.report.CacheAge.Result = model.NoUpdate("cacheMaxAge")
		return nil
	}

	age := f.report.CacheAge.New
	ok, err := f.item.UpdateServiceDefinition(ctx, map[string]any{"cacheMaxAge": age})
	if err != nil {
		return eris.Wrap(err, "fixes: update cacheMaxAge")
	}
	if !ok {
		f.report.CacheAge.Result = fmt.Sprintf("Failed to set cacheMaxAge to %d", age)
		return nil
	}
	f.report.CacheAge.Result = fmt.Sprintf("cacheMaxAge set to %d", age)
	return nil
}
