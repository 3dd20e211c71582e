package cloudinary

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/swapeco-api/internal/config"
	"github.com/rajivgeraev/swapeco-api/internal/utils"
)

// CloudinaryService подписывает прямую загрузку изображений с клиента
// и удаляет изображения удалённых вещей
type CloudinaryService struct {
	cfg        config.CloudinaryConfig
	cld        *cloudinary.Cloudinary
	jwtService *utils.JWTService
	now        func() time.Time
}

// UploadParams параметры подписанной загрузки
type UploadParams struct {
	Timestamp    string `json:"timestamp"`
	Signature    string `json:"signature"`
	APIKey       string `json:"api_key"`
	CloudName    string `json:"cloud_name"`
	Folder       string `json:"folder"`
	UploadPreset string `json:"upload_preset"`
}

// NewCloudinaryService создает новый экземпляр CloudinaryService. Без
// CLOUDINARY_CLOUD_NAME удаление изображений отключено.
func NewCloudinaryService(cfg config.CloudinaryConfig, jwtService *utils.JWTService) (*CloudinaryService, error) {
	s := &CloudinaryService{cfg: cfg, jwtService: jwtService, now: time.Now}

	if cfg.CloudName != "" {
		cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
		if err != nil {
			return nil, fmt.Errorf("can't create cloudinary client: %w", err)
		}
		s.cld = cld
	}
	return s, nil
}

// SignUpload создаёт параметры для загрузки изображения напрямую в Cloudinary
func (s *CloudinaryService) SignUpload() (*UploadParams, error) {
	timestamp := strconv.FormatInt(s.now().Unix(), 10)

	params := url.Values{}
	params.Set("timestamp", timestamp)
	params.Set("folder", s.cfg.UploadFolder)
	params.Set("upload_preset", s.cfg.UploadPreset)

	signature, err := api.SignParameters(params, s.cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("can't sign upload params: %w", err)
	}

	return &UploadParams{
		Timestamp:    timestamp,
		Signature:    signature,
		APIKey:       s.cfg.APIKey,
		CloudName:    s.cfg.CloudName,
		Folder:       s.cfg.UploadFolder,
		UploadPreset: s.cfg.UploadPreset,
	}, nil
}

// GenerateUploadParams создаёт параметры для загрузки изображений
func (s *CloudinaryService) GenerateUploadParams(c fiber.Ctx) error {
	params, err := s.SignUpload()
	if err != nil {
		return err
	}
	return c.JSON(params)
}

// DestroyImages удаляет изображения по public_id. Ошибки отдельных
// изображений логируются, возвращается первая из них.
func (s *CloudinaryService) DestroyImages(ctx context.Context, publicIDs []string) error {
	if s.cld == nil {
		return nil
	}

	var firstErr error
	for _, id := range publicIDs {
		if id == "" {
			continue
		}

		res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: id})
		if err == nil && res.Error.Message != "" {
			err = fmt.Errorf("%s", res.Error.Message)
		}
		if err != nil {
			slog.Error("can't destroy image", slog.String("public_id", id), slog.Any("error", err))
			if firstErr == nil {
				firstErr = fmt.Errorf("can't destroy image %s: %w", id, err)
			}
		}
	}
	return firstErr
}
