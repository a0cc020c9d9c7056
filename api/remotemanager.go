package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/aouyang1/demomode/content"
	"github.com/aouyang1/demomode/util"
)

const (
	remoteCheckInterval = time.Duration(1 * time.Hour)
	remoteSyncTimeout   = time.Duration(30 * time.Minute)
)

var ErrRemoteDisabled = errors.New("remote content sync is not configured")

type downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

// RemoteManager mirrors an S3 bucket into a local folder and keeps the playlist entries for that
// folder in step with it.
type RemoteManager struct {
	client     s3.ListObjectsV2APIClient
	downloader downloader

	s3Bucket   string
	outputPath string

	catalog      *content.Catalog
	trackedFiles mapset.Set[string]

	Updated chan bool
}

// NewRemoteManager loads the shared AWS configuration for profile. It returns ErrRemoteDisabled
// when no bucket or profile is configured.
func NewRemoteManager(profile, bucket, outputPath string, catalog *content.Catalog) (*RemoteManager, error) {
	if profile == "" || bucket == "" {
		return nil, ErrRemoteDisabled
	}

	// Load the Shared AWS Configuration (~/.aws/config)
	ctxCfg, cancelCfg := context.WithTimeout(context.Background(), time.Duration(3*time.Second))
	cfg, err := config.LoadDefaultConfig(
		ctxCfg,
		config.WithSharedConfigProfile(profile),
	)
	cancelCfg()
	if err != nil {
		return nil, err
	}

	// Create an Amazon S3 service client
	s3Client := s3.NewFromConfig(cfg)

	return newRemoteManager(s3Client, manager.NewDownloader(s3Client), bucket, outputPath, catalog)
}

func newRemoteManager(client s3.ListObjectsV2APIClient, dl downloader, bucket, outputPath string, catalog *content.Catalog) (*RemoteManager, error) {
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create remote content directory: %w", err)
	}
	abs, err := filepath.Abs(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve remote content directory: %w", err)
	}

	return &RemoteManager{
		client:     client,
		downloader: dl,
		s3Bucket:   bucket,
		outputPath: abs,
		catalog:      catalog,
		trackedFiles: mapset.NewSet[string](),
		Updated:      make(chan bool, 1),
	}, nil
}

func (r *RemoteManager) Updates() <-chan bool {
	return r.Updated
}

// GetS3Keys lists every object key in the bucket.
func (r *RemoteManager) GetS3Keys(ctx context.Context) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.s3Bucket),
	})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, object := range output.Contents {
			keys = append(keys, aws.ToString(object.Key))
		}
	}
	return keys, nil
}

func (r *RemoteManager) DownloadObject(ctx context.Context, name string) error {
	path := filepath.Join(r.outputPath, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create file for s3 download, %s, %w", name, err)
	}
	defer f.Close()

	if _, err := r.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(r.s3Bucket),
		Key:    aws.String(name),
	}); err != nil {
		// a partial download must not be picked up as content
		os.Remove(path)
		return fmt.Errorf("unable to download object from s3, %s, %w", name, err)
	}
	return nil
}

func (r *RemoteManager) getLocalFiles() (mapset.Set[string], error) {
	files, err := mediaFiles(r.outputPath)
	if err != nil {
		return nil, err
	}

	names := mapset.NewSet[string]()
	for path := range files.Iter() {
		names.Add(filepath.Base(path))
	}
	if names.Cardinality() == 0 {
		slog.Info("no local files found")
	}
	return names, nil
}

func (r *RemoteManager) getRemoteFiles(ctx context.Context) (mapset.Set[string], error) {
	remoteFiles := mapset.NewSet[string]()
	keys, err := r.GetS3Keys(ctx)
	if err != nil {
		return nil, err
	}
	for key := range slices.Values(keys) {
		// nested keys would escape the flat mirror folder
		if filepath.Base(key) != key || !util.IsMedia(key) {
			continue
		}
		remoteFiles.Add(key)
	}

	if remoteFiles.Cardinality() == 0 {
		slog.Info("no remote files found")
	}
	return remoteFiles, nil
}

func (r *RemoteManager) SyncFolder(ctx context.Context) error {
	localFiles, err := r.getLocalFiles()
	if err != nil {
		return err
	}

	remoteFiles, err := r.getRemoteFiles(ctx)
	if err != nil {
		return err
	}

	toDelete := localFiles.Difference(remoteFiles).ToSlice()
	toDownload := remoteFiles.Difference(localFiles).ToSlice()
	if len(toDelete) > 0 {
		slog.Info("deleting local files", "count", len(toDelete), "names", toDelete)
		for name := range slices.Values(toDelete) {
			filePath := filepath.Join(r.outputPath, name)
			if err := os.Remove(filePath); err != nil {
				slog.Warn("unable to remove local file", "error", err)
			}
		}
	}
	if len(toDownload) > 0 {
		slog.Info("adding files", "count", len(toDownload), "names", toDownload)
		for name := range slices.Values(toDownload) {
			if err := r.DownloadObject(ctx, name); err != nil {
				slog.Warn("error while downloading s3 object", "name", name, "error", err)
			}
		}
	}

	// After syncing with S3, ensure the playlist is in sync with the mirror folder
	present, err := mediaFiles(r.outputPath)
	if err != nil {
		return err
	}
	// as with the local folder, only newly mirrored files are added so entries removed by hand
	// stay removed
	newFiles := present.Difference(r.trackedFiles)
	r.trackedFiles = present

	added := registerFiles(r.catalog, newFiles)
	removed := deregisterMissing(r.catalog, r.outputPath, present)

	// Only signal update if there were actual changes
	if added > 0 || removed > 0 {
		slog.Info("remote content changed", "bucket", r.s3Bucket, "added", added, "removed", removed)
		signal(r.Updated)
	}
	return nil
}

func (r *RemoteManager) Run(ctx context.Context) {
	ticker := time.NewTicker(remoteCheckInterval)
	defer ticker.Stop()

	for {
		// Initial sync runs immediately
		syncCtx, cancel := context.WithTimeout(ctx, remoteSyncTimeout)
		if err := r.SyncFolder(syncCtx); err != nil {
			slog.Warn("error while syncing with remote", "error", err)
		}
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
