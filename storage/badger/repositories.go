package badger

import "github.com/poiesic/seeq/storage"

// NewRepositories creates every repository over one backend.
// On error, repositories created so far are closed.
func NewRepositories(backend *Backend) (*storage.Repositories, error) {
	repos := &storage.Repositories{}

	fail := func(err error) (*storage.Repositories, error) {
		repos.Close()
		return nil, err
	}

	folders, err := NewFolderRepository(backend)
	if err != nil {
		return fail(err)
	}
	repos.Folders = folders

	documents, err := NewDocumentRepository(backend)
	if err != nil {
		return fail(err)
	}
	repos.Documents = documents

	chunks, err := NewChunkRepository(backend)
	if err != nil {
		return fail(err)
	}
	repos.Chunks = chunks

	labels, err := NewLabelRepository(backend)
	if err != nil {
		return fail(err)
	}
	repos.Labels = labels

	cache, err := NewCacheRepository(backend)
	if err != nil {
		return fail(err)
	}
	repos.Cache = cache

	sync, err := NewSyncRepository(backend)
	if err != nil {
		return fail(err)
	}
	repos.Sync = sync

	failures, err := NewFailureRepository(backend)
	if err != nil {
		return fail(err)
	}
	repos.Failures = failures

	return repos, nil
}
