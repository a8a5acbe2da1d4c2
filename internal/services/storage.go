package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"alfredoptarigan/idoneidad-checker/internal/models"
)

var allowedExtensions = map[models.DocumentType][]string{
	models.DocumentRequirement: {".pdf"},
	models.DocumentEvidence:    {".pdf", ".jpg", ".jpeg", ".png", ".webp"},
	models.DocumentTemplate:    {".xlsx"},
}

type StorageService interface {
	SaveFile(file *multipart.FileHeader, fileType models.DocumentType) (string, string, error)
	ReadFile(filePath string) ([]byte, error)
	GetFilePath(filename string) string
	DeleteFile(filename string) error
	EnsureUploadDir() error
}

type storageService struct {
	uploadPath string
}

func NewStorageService(uploadPath string) StorageService {
	return &storageService{
		uploadPath: uploadPath,
	}
}

func (s *storageService) EnsureUploadDir() error {
	if err := os.MkdirAll(s.uploadPath, 0755); err != nil {
		return errors.Wrap(err, "failed to create upload directory")
	}

	return nil
}

// SaveFile stores an upload under a unique name. The extension must be one
// accepted for fileType.
func (s *storageService) SaveFile(file *multipart.FileHeader, fileType models.DocumentType) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !IsAllowedExtension(fileType, ext) {
		return "", "", errors.Wrapf(ErrUnsupportedFile, "invalid file extension %q for %s", ext, fileType)
	}

	uniqueFilename := fmt.Sprintf("%s_%s%s", fileType, uuid.New().String(), ext)
	filePath := filepath.Join(s.uploadPath, uniqueFilename)

	src, err := file.Open()
	if err != nil {
		return "", "", errors.Wrap(err, "failed to open uploaded file")
	}
	defer src.Close()

	dst, err := os.Create(filePath)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to create destination file")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", "", errors.Wrap(err, "failed to save file")
	}

	return uniqueFilename, filePath, nil
}

func (s *storageService) ReadFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", filepath.Base(filePath))
	}
	return data, nil
}

func (s *storageService) GetFilePath(filename string) string {
	return filepath.Join(s.uploadPath, filename)
}

func (s *storageService) DeleteFile(filename string) error {
	if err := os.Remove(s.GetFilePath(filename)); err != nil {
		return errors.Wrap(err, "failed to delete file")
	}
	return nil
}

func IsAllowedExtension(fileType models.DocumentType, ext string) bool {
	for _, allowed := range allowedExtensions[fileType] {
		if ext == allowed {
			return true
		}
	}
	return false
}

// ReadMultipart loads an uploaded form file into memory.
func ReadMultipart(file *multipart.FileHeader) (UploadedFile, error) {
	src, err := file.Open()
	if err != nil {
		return UploadedFile{}, errors.Wrapf(err, "failed to open %s", file.Filename)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return UploadedFile{}, errors.Wrapf(err, "failed to read %s", file.Filename)
	}

	return UploadedFile{
		Name:     file.Filename,
		MIMEType: file.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}
