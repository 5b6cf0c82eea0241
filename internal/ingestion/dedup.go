package ingestion

import "context"

// URLLister provides the source URLs already stored in the candidate store.
type URLLister interface {
	ExistingSourceURLs(ctx context.Context) ([]string, error)
}

// URLIndex answers "have we already seen this article URL?" for one
// ingestion run. It is a snapshot: loaded once at the start of the run, so a
// run never dedups against candidates it created itself.
type URLIndex struct {
	seen map[string]bool
}

// LoadURLIndex builds the index from the stored source URLs.
func LoadURLIndex(ctx context.Context, lister URLLister) (*URLIndex, error) {
	urls, err := lister.ExistingSourceURLs(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		seen[u] = true
	}

	return &URLIndex{seen: seen}, nil
}

// IsDuplicate reports whether the URL was already stored before this run. An
// empty URL is never a duplicate; candidates without a source URL cannot be
// matched against anything.
func (idx *URLIndex) IsDuplicate(url string) bool {
	if url == "" {
		return false
	}
	return idx.seen[url]
}
