package archive

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/melbahja/goph"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/sftp"
)

// S3Config describes an S3-compatible bucket (AWS, R2, B2, minio)
type S3Config struct {
	Access   string
	Secret   string
	Bucket   string
	Endpoint string
	Region   string
	// use http instead of https, for local minio
	Insecure bool
}

func (c *S3Config) validate() error {
	if c == nil {
		return errors.New("must provide config")
	}
	if c.Access == "" || c.Secret == "" || c.Bucket == "" || c.Endpoint == "" {
		return errors.New("must provide all fields in config")
	}
	return nil
}

// UploadS3 uploads the export at localPath to remotePath in the bucket
func UploadS3(ctx context.Context, c *S3Config, localPath string, remotePath string) (*minio.UploadInfo, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Access, c.Secret, ""),
		Region: c.Region,
		Secure: !c.Insecure,
	})
	if err != nil {
		return nil, err
	}
	found, err := mc.BucketExists(ctx, c.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bucket '%s' doesn't exist", c.Bucket)
	}
	opts := minio.PutObjectOptions{
		ContentType: contentTypeForExport(remotePath),
	}
	info, err := mc.FPutObject(ctx, c.Bucket, remotePath, localPath, opts)
	if err != nil {
		return nil, fmt.Errorf("upload of '%s' as '%s' failed with '%w'", localPath, remotePath, err)
	}
	return &info, nil
}

func contentTypeForExport(path string) string {
	switch CodecFromPath(path) {
	case CodecZstd:
		return "application/zstd"
	case CodecBrotli:
		return "application/x-brotli"
	}
	return "application/octet-stream"
}

// SFTPConfig describes an ssh server that accepts key-based logins
type SFTPConfig struct {
	User           string
	Host           string
	PrivateKeyPath string
	Passphrase     string
}

func (c *SFTPConfig) validate() error {
	if c == nil {
		return errors.New("must provide config")
	}
	if c.User == "" || c.Host == "" || c.PrivateKeyPath == "" {
		return errors.New("must provide User, Host and PrivateKeyPath")
	}
	return nil
}

// UploadSFTP copies the export at localPath to remotePath on the server,
// creating parent directories as needed. Doesn't over-write existing files.
func UploadSFTP(c *SFTPConfig, localPath string, remotePath string) error {
	if err := c.validate(); err != nil {
		return err
	}
	auth, err := goph.Key(c.PrivateKeyPath, c.Passphrase)
	if err != nil {
		return fmt.Errorf("goph.Key() failed with '%w'", err)
	}
	client, err := goph.New(c.User, c.Host, auth)
	if err != nil {
		return fmt.Errorf("goph.New() failed with '%w'", err)
	}
	defer client.Close()

	sc, err := client.NewSftp()
	if err != nil {
		return fmt.Errorf("client.NewSftp() failed with '%w'", err)
	}
	defer sc.Close()
	if err = sftpPrepareDst(sc, remotePath); err != nil {
		return err
	}
	if err = client.Upload(localPath, remotePath); err != nil {
		return fmt.Errorf("client.Upload() failed with '%w'", err)
	}
	return nil
}

func sftpPrepareDst(sc *sftp.Client, remotePath string) error {
	if _, err := sc.Stat(remotePath); err == nil {
		return fmt.Errorf("file '%s' already exists on the server", remotePath)
	}
	dir := path.Dir(remotePath)
	if err := sc.MkdirAll(dir); err != nil {
		return fmt.Errorf("sftp.MkdirAll('%s') failed with '%w'", dir, err)
	}
	return nil
}
