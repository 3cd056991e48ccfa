package storage

import (
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
)

var (
	missingKeyCodes    = []string{"nosuchkey", "notfound"}
	missingKeyMessages = []string{"nosuchkey", "specified key does not exist", "not found"}

	missingBucketCodes    = []string{"nosuchbucket"}
	missingBucketMessages = []string{"nosuchbucket", "specified bucket does not exist"}
)

// IsNoSuchKey 判断错误是否表示对象不存在（S3/MinIO: NoSuchKey/NotFound）。
func IsNoSuchKey(err error) bool {
	return matchError(err, missingKeyCodes, missingKeyMessages)
}

// IsNoSuchBucket 判断错误是否表示 Bucket 不存在。
func IsNoSuchBucket(err error) bool {
	return matchError(err, missingBucketCodes, missingBucketMessages)
}

// matchError 先比对 minio 错误码；网关可能只留下错误文本，再按消息兜底。
func matchError(err error, codes, messages []string) bool {
	if err == nil {
		return false
	}
	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		code := strings.ToLower(strings.TrimSpace(minioErr.Code))
		for _, c := range codes {
			if code == c {
				return true
			}
		}
		if code != "" {
			return false
		}
	}
	lower := strings.ToLower(err.Error())
	for _, m := range messages {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
