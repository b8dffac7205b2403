package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options はS3Storeの接続設定。
type S3Options struct {
	// Bucket は保存先バケット。
	Bucket string
	// Region はリージョン。
	Region string
	// Endpoint はS3互換ストレージのエンドポイント。空の場合はAWSを使う。
	Endpoint string
	// AccessKey は静的認証情報のアクセスキー。空の場合は既定の認証情報を使う。
	AccessKey string
	// SecretKey は静的認証情報のシークレットキー。
	SecretKey string
}

// S3Store はS3互換オブジェクトストレージに画像を保存する。
type S3Store struct {
	client *s3.Client
	bucket string
}

var _ ImageStore = (*S3Store)(nil)

// NewS3Store はS3Storeを生成する。
// Endpointを指定した場合はパス形式のアドレッシングを使う。
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: opts.Bucket}, nil
}

// Save は画像をオブジェクトとしてアップロードする。
func (s *S3Store) Save(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	// 署名とリトライのためにシーク可能なボディにする。
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("画像の読み込みに失敗: %w", err)
	}

	key := newImagePath(filename, contentType)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("画像のアップロードに失敗: %w", err)
	}
	return key, nil
}

// Delete はオブジェクトを削除する。S3は存在しないキーの削除も成功として扱う。
func (s *S3Store) Delete(ctx context.Context, imagePath string) error {
	key, err := cleanImagePath(imagePath)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("画像の削除に失敗: %w", err)
	}
	return nil
}
