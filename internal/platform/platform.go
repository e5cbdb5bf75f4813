// Package platform defines the boundary between the auditor and the content
// hosting platform that stores the audited items.
package platform

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/auditor-cli/internal/model"
)

// Sentinel errors returned by platform implementations.
var (
	ErrItemNotFound      = eris.New("platform: item not found")
	ErrFolderNotFound    = eris.New("platform: folder not found")
	ErrInvalidStatus     = eris.New("platform: invalid content status")
	ErrNotAdmin          = eris.New("platform: user is not an administrator")
	ErrMetadataTooLong   = eris.New("platform: metadata too long")
	ErrGroupsUnavailable = eris.New("platform: groups unavailable")
)

// MaxMetadataLength is the longest metadata document the platform accepts.
const MaxMetadataLength = 32767

// Summary is the minimal listing view of an item.
type Summary struct {
	ID          string
	Title       string
	Type        string
	OwnerFolder string
}

// ItemUpdate carries the item fields to change. Nil fields are left alone.
type ItemUpdate struct {
	Tags        []string
	Title       *string
	Description *string
}

// MoveResult reports the outcome of moving an item between folders.
type MoveResult struct {
	Success bool
	Folder  string
}

// Portal is the organization-level view of the hosting platform.
type Portal interface {
	// Folders returns folder id to folder title for the signed in user. The
	// root folder has the empty id and the empty title.
	Folders(ctx context.Context) (map[string]string, error)
	// UserItems lists the user's items in one folder.
	UserItems(ctx context.Context, folderID string) ([]Summary, error)
	// Item resolves a live item handle. Returns ErrItemNotFound when absent.
	Item(ctx context.Context, id string) (Item, error)
	// Groups returns group title to group id for the organization.
	Groups(ctx context.Context) (map[string]string, error)
	// QueryTable reads every row of a hosted table, one string per field.
	QueryTable(ctx context.Context, url string, fields []string) ([][]string, error)
}

// Item is a live handle on one hosted item. Mutations return the platform's
// own success indicator; transport failures are returned as errors.
type Item interface {
	ID() string
	Title() string
	Type() string
	OwnerFolder() string

	// State captures the snapshot every check reads. A failure to list the
	// item's groups is recorded in the snapshot, not returned.
	State(ctx context.Context) (*model.ItemState, error)
	Tags(ctx context.Context) ([]string, error)
	Description(ctx context.Context) (string, error)
	Metadata(ctx context.Context) (string, error)
	ServiceProperties(ctx context.Context) (*model.ServiceProperties, error)
	Layers(ctx context.Context) ([]model.LayerState, error)

	Update(ctx context.Context, update ItemUpdate) (bool, error)
	// UploadMetadata returns ErrMetadataTooLong when the document exceeds
	// MaxMetadataLength.
	UploadMetadata(ctx context.Context, xml string) (bool, error)
	UploadThumbnail(ctx context.Context, path string) (bool, error)
	// Move returns a nil result when the folder does not exist.
	Move(ctx context.Context, folder string) (*MoveResult, error)
	Protect(ctx context.Context, enable bool) (bool, error)
	ShareEveryone(ctx context.Context) (bool, error)
	ShareGroup(ctx context.Context, groupID string) (bool, error)
	// SetContentStatus returns ErrInvalidStatus or ErrNotAdmin for the
	// corresponding platform refusals.
	SetContentStatus(ctx context.Context, status string) error
	UpdateServiceDefinition(ctx context.Context, definition map[string]any) (bool, error)
	UpdateLayerDefinition(ctx context.Context, layerURL string, definition map[string]any) (bool, error)
}
