package services

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rfp-studio/engine/internal/models"
	"github.com/rfp-studio/engine/internal/repository"
	"github.com/rfp-studio/engine/internal/storage"
	appErr "github.com/rfp-studio/engine/pkg/errors"
	"github.com/rfp-studio/engine/pkg/logger"
	"github.com/rfp-studio/engine/pkg/utils"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// BlobStore holds document bytes. storage.FileStore is the local implementation.
type BlobStore interface {
	Save(r io.Reader, originalName string) (*storage.SaveResult, error)
	Open(rel string) (io.ReadSeekCloser, error)
	Delete(rel string) error
}

var _ BlobStore = (*storage.FileStore)(nil)

type DocumentService interface {
	Upload(ctx context.Context, actor *models.User, input *UploadDocumentInput) (*models.Document, error)
	List(ctx context.Context, actor *models.User, filters *DocumentFilters) ([]models.Document, int64, error)
	Get(ctx context.Context, actor *models.User, documentID uuid.UUID) (*models.Document, error)
	// Open returns the document metadata and its content. The caller closes the reader.
	Open(ctx context.Context, actor *models.User, documentID uuid.UUID) (*models.Document, io.ReadSeekCloser, error)
}

type UploadDocumentInput struct {
	File             io.Reader
	OriginalFilename string
	ContentType      string
	RFPID            *uuid.UUID
	ResponseID       *string
	IsPublic         bool
}

type DocumentFilters struct {
	RFPID      *uuid.UUID
	ResponseID *string
	Page       utils.Page
}

type documentService struct {
	docRepo repository.DocumentRepository
	rfpRepo repository.RFPRepository
	blobs   BlobStore
}

func NewDocumentService(docRepo repository.DocumentRepository, rfpRepo repository.RFPRepository, blobs BlobStore) DocumentService {
	return &documentService{docRepo: docRepo, rfpRepo: rfpRepo, blobs: blobs}
}

var _ DocumentService = (*documentService)(nil)

func (s *documentService) Upload(ctx context.Context, actor *models.User, input *UploadDocumentInput) (*models.Document, error) {
	logger.L().Info("upload document",
		zap.String("user_id", actor.ID.String()),
		zap.String("filename", input.OriginalFilename),
	)

	if input.RFPID != nil {
		var rfp models.RFP
		if err := s.rfpRepo.GetByID(ctx, *input.RFPID, &rfp); err != nil {
			if appErr.IsCode(err, appErr.CodeNotFound) {
				return nil, appErr.New(appErr.CodeNotFound, "rfp not found")
			}
			return nil, err
		}
		if actor.IsBuyer() && rfp.BuyerID != actor.ID {
			return nil, appErr.New(appErr.CodeForbidden, "not enough permissions to attach documents to this rfp")
		}
	}

	saved, err := s.blobs.Save(input.File, input.OriginalFilename)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErr.Wrap(err, appErr.CodeInvalid, "file exceeds maximum upload size")
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "store document failed")
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	now := time.Now().UTC()
	doc := &models.Document{
		Filename:         saved.Name,
		OriginalFilename: input.OriginalFilename,
		FilePath:         saved.Path,
		FileSize:         saved.Size,
		FileType:         strings.TrimPrefix(strings.ToLower(filepath.Ext(input.OriginalFilename)), "."),
		ContentType:      contentType,
		Checksum:         saved.Checksum,
		UserID:           actor.ID,
		RFPID:            input.RFPID,
		ResponseID:       input.ResponseID,
		IsPublic:         input.IsPublic,
		Version:          1,
		PreviousVersions: datatypes.JSONSlice[uuid.UUID]{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		if derr := s.blobs.Delete(saved.Path); derr != nil {
			logger.L().Warn("orphaned blob", zap.String("path", saved.Path), zap.Error(derr))
		}
		return nil, err
	}

	if input.RFPID != nil {
		if err := s.rfpRepo.AppendAttachment(ctx, *input.RFPID, doc.ID); err != nil {
			s.discard(ctx, doc)
			return nil, err
		}
	}

	logger.L().Info("document uploaded",
		zap.String("document_id", doc.ID.String()),
		zap.Int64("size", doc.FileSize),
	)
	return doc, nil
}

// discard removes a document whose upload could not complete.
func (s *documentService) discard(ctx context.Context, doc *models.Document) {
	if err := s.docRepo.Delete(ctx, doc.ID); err != nil {
		logger.L().Warn("orphaned document row", zap.String("document_id", doc.ID.String()), zap.Error(err))
	}
	if err := s.blobs.Delete(doc.FilePath); err != nil {
		logger.L().Warn("orphaned blob", zap.String("path", doc.FilePath), zap.Error(err))
	}
}

func (s *documentService) List(ctx context.Context, actor *models.User, filters *DocumentFilters) ([]models.Document, int64, error) {
	logger.L().Info("list documents", zap.String("user_id", actor.ID.String()))

	q := repository.DocumentQuery{RFPID: filters.RFPID, ResponseID: filters.ResponseID, Page: filters.Page}
	if actor.IsSupplier() {
		q.VisibleTo = &actor.ID
	}
	return s.docRepo.List(ctx, q)
}

func (s *documentService) Get(ctx context.Context, actor *models.User, documentID uuid.UUID) (*models.Document, error) {
	logger.L().Info("get document", zap.String("document_id", documentID.String()), zap.String("user_id", actor.ID.String()))

	var doc models.Document
	if err := s.docRepo.GetByID(ctx, documentID, &doc); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "document not found")
		}
		return nil, err
	}

	ok, err := s.canAccess(ctx, actor, &doc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErr.New(appErr.CodeForbidden, "not enough permissions to access this document")
	}
	return &doc, nil
}

func (s *documentService) Open(ctx context.Context, actor *models.User, documentID uuid.UUID) (*models.Document, io.ReadSeekCloser, error) {
	doc, err := s.Get(ctx, actor, documentID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(doc.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, nil, appErr.Wrap(err, appErr.CodeNotFound, "document content not found")
		}
		return nil, nil, appErr.Wrap(err, appErr.CodeInternal, "open document failed")
	}
	return doc, rc, nil
}

func (s *documentService) canAccess(ctx context.Context, actor *models.User, doc *models.Document) (bool, error) {
	if doc.IsPublic || doc.UserID == actor.ID {
		return true, nil
	}
	if doc.RFPID == nil || !actor.IsBuyer() {
		return false, nil
	}
	var rfp models.RFP
	if err := s.rfpRepo.GetByID(ctx, *doc.RFPID, &rfp); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return rfp.BuyerID == actor.ID, nil
}
