package ingestion

import (
	"context"
	"errors"
	"strings"

	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
)

// ResolveFolder picks the folder a document goes into.
//
// A folderID that parses must name an existing folder, otherwise a
// *core.FolderNotFoundError is returned. One that does not parse is taken as
// a title. A title is get-or-created as a library folder; with neither, the
// default folder is used. Repeated calls with the same input return the same folder.
func (p *Pipeline) ResolveFolder(ctx context.Context, folderID, title string) (*core.Folder, error) {
	folderID = strings.TrimSpace(folderID)
	if folderID != "" {
		id, err := core.ParseID(folderID)
		if err == nil {
			folder, err := p.folders.GetFolder(ctx, id)
			if errors.Is(err, storage.ErrNotFound) {
				return nil, &core.FolderNotFoundError{ID: id}
			}
			return folder, err
		}
		if strings.TrimSpace(title) == "" {
			title = folderID
		}
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = core.DefaultFolderTitle
	}
	return p.folders.GetOrCreateFolder(ctx, title, core.FolderTypeLibrary)
}
