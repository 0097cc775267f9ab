package corpus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureBlobSource is the Azure-hosted symmetric counterpart to S3Source,
// grouping blobs by their first path segment below Prefix into one
// Extension per group.
type AzureBlobSource struct {
	Container string
	Prefix    string

	client *azblob.Client
}

// NewAzureBlobSource connects to serviceURL (e.g.
// "https://<account>.blob.core.windows.net") using the shared-key
// credential cred. No other credential type is accepted.
func NewAzureBlobSource(serviceURL string, cred azblob.SharedKeyCredential, container, prefix string) (*AzureBlobSource, error) {
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, &cred, nil)
	if err != nil {
		return nil, fmt.Errorf("corpus: create azure blob client: %w", err)
	}
	return &AzureBlobSource{Container: container, Prefix: prefix, client: client}, nil
}

// Walk implements Source.
func (s *AzureBlobSource) Walk(ctx context.Context, callback func(Extension) error) error {
	grouped := make(map[string]map[string]string) // extension root -> rel path -> blob name

	pager := s.client.NewListBlobsFlatPager(s.Container, &azblob.ListBlobsFlatOptions{Prefix: &s.Prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("corpus: list blobs under %s/%s: %w", s.Container, s.Prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			name := *item.Name
			rel := strings.TrimPrefix(strings.TrimPrefix(name, s.Prefix), "/")
			parts := strings.SplitN(rel, "/", 2)
			if len(parts) != 2 {
				continue
			}
			root, scriptRel := parts[0], parts[1]
			if !scriptExtensions[path.Ext(strings.ToLower(scriptRel))] {
				continue
			}
			if grouped[root] == nil {
				grouped[root] = make(map[string]string)
			}
			grouped[root][scriptRel] = name
		}
	}

	for root, files := range grouped {
		ext := Extension{Root: path.Join(s.Container, s.Prefix, root), Scripts: make(map[string][]byte, len(files))}
		for rel, name := range files {
			content, err := s.downloadBlob(ctx, name)
			if err != nil {
				return err
			}
			ext.Scripts[rel] = content
		}
		if err := callback(ext); err != nil {
			return err
		}
	}
	return nil
}

func (s *AzureBlobSource) downloadBlob(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.Container, name, nil)
	if err != nil {
		return nil, fmt.Errorf("corpus: download blob %s/%s: %w", s.Container, name, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("corpus: read blob body %s/%s: %w", s.Container, name, err)
	}
	return buf.Bytes(), nil
}
