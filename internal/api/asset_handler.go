package api

import (
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"adBuilder/internal/database"
	"adBuilder/internal/storage"
)

const defaultMaxAssetBytes = 5 << 20

type assetStore interface {
	CreateAsset(ctx context.Context, a database.Asset) error
	AssetExists(ctx context.Context, objectKey string) (bool, error)
}

type assetStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
}

// AssetHandler 负责区块图片的上传与访问。
type AssetHandler struct {
	store     assetStore
	Storage   assetStorage
	Logger    *slog.Logger
	ClamdAddr string
	MaxBytes  int64
}

// NewAssetHandler 返回 AssetHandler 实例。clamdAddr 为空时跳过病毒扫描。
func NewAssetHandler(store assetStore, storageClient assetStorage, logger *slog.Logger, clamdAddr string) *AssetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetHandler{
		store:     store,
		Storage:   storageClient,
		Logger:    logger,
		ClamdAddr: clamdAddr,
		MaxBytes:  defaultMaxAssetBytes,
	}
}

// UploadAsset 接收 multipart 字段 adId 与 file，扫描后存入 block-assets/<adId>/。
func (h *AssetHandler) UploadAsset(c *gin.Context) {
	adID := c.PostForm("adId")
	if _, err := uuid.Parse(adID); err != nil {
		BadRequest(c, "invalid adId")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if h.MaxBytes > 0 && file.Size > h.MaxBytes {
		BadRequest(c, "file too large")
		return
	}

	contentType, err := sniffContentType(file)
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	ext, ok := allowedAssetExts[contentType]
	if !ok {
		BadRequest(c, "unsupported image type")
		return
	}

	if h.ClamdAddr != "" {
		clean, err := h.scan(file)
		if err != nil {
			h.Logger.Error("scan file", slog.String("error", err.Error()))
			Internal(c, "failed to scan file")
			return
		}
		if !clean {
			BadRequest(c, "malicious file detected")
			return
		}
	}

	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to reopen file")
		return
	}
	defer fileReader.Close()

	objectKey := storage.BlockAssetKey(adID, uuid.NewString(), ext)
	if _, err := h.Storage.UploadFile(c.Request.Context(), objectKey, fileReader, file.Size, contentType); err != nil {
		h.Logger.Error("upload file", slog.String("error", err.Error()))
		Internal(c, "failed to upload file")
		return
	}
	asset := database.Asset{AdID: adID, ObjectKey: objectKey, ContentType: contentType, Size: file.Size}
	if err := h.store.CreateAsset(c.Request.Context(), asset); err != nil {
		h.Logger.Error("record asset", slog.String("error", err.Error()))
		Internal(c, "failed to record asset")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"objectKey": objectKey})
}

func (h *AssetHandler) scan(file *multipart.FileHeader) (bool, error) {
	fileReader, err := file.Open()
	if err != nil {
		return false, err
	}
	defer fileReader.Close()

	abortChan := make(chan bool)
	defer close(abortChan)
	scanChan, err := clamd.NewClamd(h.ClamdAddr).ScanStream(fileReader, abortChan)
	if err != nil {
		return false, err
	}
	clean := true
	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			clean = false
		}
	}
	return clean, nil
}

func sniffContentType(file *multipart.FileHeader) (string, error) {
	f, err := file.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

// GetAssetURL 返回资产的临时预签名 URL。
func (h *AssetHandler) GetAssetURL(c *gin.Context) {
	objectKey := c.Query("key")
	if objectKey == "" {
		BadRequest(c, "missing key")
		return
	}
	if _, ok := parseBlockAssetKey(objectKey); !ok {
		Forbidden(c, "access denied")
		return
	}
	exists, err := h.store.AssetExists(c.Request.Context(), objectKey)
	if err != nil {
		Internal(c, "failed to look up asset")
		return
	}
	if !exists {
		NotFound(c, "asset not found")
		return
	}

	signedURL, err := h.Storage.GeneratePresignedURL(c.Request.Context(), objectKey, 15*time.Minute)
	if err != nil {
		h.Logger.Error("generate presigned url", slog.String("error", err.Error()))
		Internal(c, "failed to generate url")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}
