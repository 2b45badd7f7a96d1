// Package azure implements the Azure Blob Storage backend. A location's host
// is the container name; the storage account comes from configuration.
package azure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"

	"github.com/resourcehub/resourcehub/internal/config"
	"github.com/resourcehub/resourcehub/internal/storage"
	"github.com/resourcehub/resourcehub/pkg/checksum"
)

func init() {
	storage.Register("azblob", func(container string, cfg *config.StorageConfig) (storage.Storage, error) {
		return New(container, &cfg.Azure)
	})
}

// AzureStorage implements storage.Storage for one blob container.
type AzureStorage struct {
	client        *azblob.Client
	containerName string
}

// New creates an Azure Blob backend for container. With an endpoint and no
// account key the endpoint is expected to carry a SAS token.
func New(container string, cfg *config.AzureStorageConfig) (*AzureStorage, error) {
	if container == "" {
		return nil, fmt.Errorf("azure storage container name is required")
	}

	serviceURL := cfg.Endpoint
	if serviceURL == "" {
		if cfg.AccountName == "" {
			return nil, fmt.Errorf("azure storage account name is required")
		}
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	}

	var (
		client *azblob.Client
		err    error
	)
	switch {
	case cfg.AccountKey != "":
		if cfg.AccountName == "" {
			return nil, fmt.Errorf("azure storage account name is required")
		}
		credential, cerr := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if cerr != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", cerr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	case cfg.Endpoint != "":
		client, err = azblob.NewClientWithNoCredential(serviceURL, nil)
	default:
		return nil, fmt.Errorf("azure storage account key is required")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}

	return &AzureStorage{client: client, containerName: container}, nil
}

// Upload stores reader as a block blob with its SHA256 in the blob metadata.
func (s *AzureStorage) Upload(ctx context.Context, key string, reader io.Reader) (*storage.UploadResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	sum, err := checksum.CalculateSHA256(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	contentType := "application/json"
	blobClient := s.client.ServiceClient().NewContainerClient(s.containerName).NewBlockBlobClient(key)
	_, err = blobClient.Upload(ctx, streaming.NopCloser(bytes.NewReader(data)), &blockblob.UploadOptions{
		Metadata:    map[string]*string{"sha256": &sum},
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to Azure Blob: %w", err)
	}

	return &storage.UploadResult{
		Key:      key,
		Size:     int64(len(data)),
		Checksum: sum,
	}, nil
}

// Download retrieves the blob at key.
func (s *AzureStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	blobClient := s.client.ServiceClient().NewContainerClient(s.containerName).NewBlobClient(key)
	resp, err := blobClient.DownloadStream(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download from Azure Blob: %w", err)
	}
	return resp.Body, nil
}

// Exists checks if a blob is stored at key.
func (s *AzureStorage) Exists(ctx context.Context, key string) (bool, error) {
	blobClient := s.client.ServiceClient().NewContainerClient(s.containerName).NewBlobClient(key)
	_, err := blobClient.GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("failed to check blob existence: %w", err)
}
