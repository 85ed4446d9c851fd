package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"docvault/internal/auth"
	"docvault/internal/identity"
	"docvault/internal/model"
	"docvault/internal/repository"
	repoMocks "docvault/internal/repository/mocks"
	"docvault/internal/signedlink"
	"docvault/internal/storage"
	storeMocks "docvault/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const helloWorldSHA256 = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

var (
	owner    = model.Actor{ID: "user-1", Name: "Alice"}
	stranger = model.Actor{ID: "user-2", Name: "Bob"}
	admin    = model.Actor{ID: "user-3", Name: "Root", Admin: true}
)

func newTestService(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository, gate *auth.Gate) DocumentService {
	if gate == nil {
		gate = auth.NewGate(false)
	}
	return NewDocumentService(mStore, mRepo, gate, identity.NewGenerator(), signedlink.NewSigner("link-secret"), nil)
}

func TestDocumentService_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path assigns hash, safe name and owner", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(mStore, mRepo, nil)

		mStore.On("Put", ctx, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "documents/") &&
				strings.Contains(key, "/v2/") &&
				strings.HasSuffix(key, "/report.pdf")
		}), mock.Anything, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
			return opt.ContentType == "application/pdf" && opt.Metadata["original-filename"] == "Report.PDF"
		})).Return(storage.ObjectInfo{}, nil)

		mRepo.On("Create", ctx, mock.MatchedBy(func(doc *model.Document) bool {
			return doc.Hash == helloWorldSHA256 &&
				doc.FileName == "report.pdf" &&
				doc.OwnerID == "user-1" &&
				doc.ID != "" &&
				doc.DeletedAt == nil
		}), mock.Anything).
			Run(func(args mock.Arguments) {
				// Drive the byte-write callback the way the real repository
				// does, once the lineage version is known.
				write := args.Get(2).(repository.WriteBytesFunc)
				path, err := write(ctx, 2)
				require.NoError(t, err)
				require.Contains(t, path, "/v2/report.pdf")
			}).
			Return(&model.Document{ID: "stored", Version: 2}, nil)

		doc, err := svc.Upload(ctx, owner, UploadInput{
			Reader:   strings.NewReader("hello world"),
			FileName: "Report.PDF",
			MimeType: "application/pdf",
			FileSize: 11,
		})

		require.NoError(t, err)
		assert.Equal(t, 2, doc.Version)
		mStore.AssertExpectations(t)
		mRepo.AssertExpectations(t)
	})

	t.Run("explicit owner overrides actor default", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(mStore, mRepo, nil)

		mRepo.On("Create", ctx, mock.MatchedBy(func(doc *model.Document) bool {
			return doc.OwnerID == "user-9"
		}), mock.Anything).Return(&model.Document{ID: "stored"}, nil)

		_, err := svc.Upload(ctx, owner, UploadInput{
			Reader:   strings.NewReader("x"),
			FileName: "a.txt",
			OwnerID:  "user-9",
		})

		require.NoError(t, err)
		mRepo.AssertExpectations(t)
	})

	t.Run("nil reader", func(t *testing.T) {
		svc := newTestService(nil, nil, nil)
		_, err := svc.Upload(ctx, owner, UploadInput{FileName: "a.txt"})
		assert.ErrorIs(t, err, ErrReaderNil)
	})

	t.Run("empty file", func(t *testing.T) {
		svc := newTestService(nil, nil, nil)
		_, err := svc.Upload(ctx, owner, UploadInput{Reader: strings.NewReader(""), FileName: "a.txt"})
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("repository error is wrapped", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(mStore, mRepo, nil)

		mRepo.On("Create", ctx, mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))

		_, err := svc.Upload(ctx, owner, UploadInput{
			Reader:   strings.NewReader("hello"),
			FileName: "a.txt",
		})

		assert.ErrorContains(t, err, "create document: db fail")
	})
}

func TestDocumentService_Get(t *testing.T) {
	ctx := context.Background()
	doc := &model.Document{ID: "doc-1", OwnerID: "user-1"}

	tests := []struct {
		name       string
		actor      model.Actor
		id         string
		setupMocks func(mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
	}{
		{
			name:  "owner sees own document",
			actor: owner,
			id:    "doc-1",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).Return(doc, nil)
			},
		},
		{
			name:  "admin bypasses ownership",
			actor: admin,
			id:    "doc-1",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).Return(doc, nil)
			},
		},
		{
			name:  "stranger gets not found, not unauthorized",
			actor: stranger,
			id:    "doc-1",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).Return(doc, nil)
			},
			wantErr: ErrNotFound,
		},
		{
			name:  "missing document",
			actor: owner,
			id:    "missing",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "missing", repository.ScopeAll).Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name:       "empty id",
			actor:      owner,
			id:         "",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrIDRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := newTestService(nil, mRepo, nil)
			tt.setupMocks(mRepo)

			got, err := svc.Get(ctx, tt.actor, tt.id)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "doc-1", got.ID)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_SoftDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("marks active document", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(nil, mRepo, nil)

		mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).
			Return(&model.Document{ID: "doc-1", OwnerID: "user-1"}, nil)
		mRepo.On("SoftDelete", ctx, "doc-1").Return(nil)

		assert.NoError(t, svc.SoftDelete(ctx, owner, "doc-1"))
		mRepo.AssertExpectations(t)
	})

	t.Run("already trashed is a no-op", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(nil, mRepo, nil)

		now := time.Now()
		mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).
			Return(&model.Document{ID: "doc-1", OwnerID: "user-1", DeletedAt: &now}, nil)

		assert.NoError(t, svc.SoftDelete(ctx, owner, "doc-1"))
		mRepo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
	})

	t.Run("stranger denied as not found", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(nil, mRepo, nil)

		mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).
			Return(&model.Document{ID: "doc-1", OwnerID: "user-1"}, nil)

		assert.ErrorIs(t, svc.SoftDelete(ctx, stranger, "doc-1"), ErrNotFound)
	})
}

func TestDocumentService_Restore(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("restores trashed document", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(nil, mRepo, nil)

		mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).
			Return(&model.Document{ID: "doc-1", OwnerID: "user-1", DeletedAt: &now}, nil)
		mRepo.On("Restore", ctx, "doc-1").Return(nil)

		assert.NoError(t, svc.Restore(ctx, owner, "doc-1"))
		mRepo.AssertExpectations(t)
	})

	t.Run("not trashed maps to not found", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(nil, mRepo, nil)

		mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).
			Return(&model.Document{ID: "doc-1", OwnerID: "user-1"}, nil)
		mRepo.On("Restore", ctx, "doc-1").Return(sql.ErrNoRows)

		assert.ErrorIs(t, svc.Restore(ctx, owner, "doc-1"), ErrNotFound)
	})
}

func TestDocumentService_Purge(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	trashed := &model.Document{ID: "doc-1", OwnerID: "user-1", DeletedAt: &now}

	t.Run("admin purges trashed document, bytes first", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(mStore, mRepo, nil)

		mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).Return(trashed, nil)
		mStore.On("DeleteTree", ctx, "documents/doc-1/").Return(nil)
		mRepo.On("Delete", ctx, "doc-1").Return(nil)

		assert.NoError(t, svc.Purge(ctx, admin, "doc-1"))
		mStore.AssertExpectations(t)
		mRepo.AssertExpectations(t)
	})

	t.Run("active document rejected", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(nil, mRepo, nil)

		mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).
			Return(&model.Document{ID: "doc-1", OwnerID: "user-1"}, nil)

		assert.ErrorIs(t, svc.Purge(ctx, admin, "doc-1"), ErrNotTrashed)
	})

	t.Run("owner denied under default policy", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(nil, mRepo, nil)

		mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).Return(trashed, nil)

		assert.ErrorIs(t, svc.Purge(ctx, owner, "doc-1"), ErrNotFound)
	})

	t.Run("owner allowed when policy extends purge", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(mStore, mRepo, auth.NewGate(true))

		mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).Return(trashed, nil)
		mStore.On("DeleteTree", ctx, "documents/doc-1/").Return(nil)
		mRepo.On("Delete", ctx, "doc-1").Return(nil)

		assert.NoError(t, svc.Purge(ctx, owner, "doc-1"))
	})

	t.Run("tree delete failure keeps the record", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(mStore, mRepo, nil)

		mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).Return(trashed, nil)
		mStore.On("DeleteTree", ctx, "documents/doc-1/").Return(errors.New("storage down"))

		err := svc.Purge(ctx, admin, "doc-1")
		assert.ErrorContains(t, err, "delete storage tree")
		mRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("record delete failure after tree delete is fatal", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(mStore, mRepo, nil)

		mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).Return(trashed, nil)
		mStore.On("DeleteTree", ctx, "documents/doc-1/").Return(nil)
		mRepo.On("Delete", ctx, "doc-1").Return(errors.New("db fail"))

		assert.ErrorIs(t, svc.Purge(ctx, admin, "doc-1"), ErrInconsistentPurge)
	})
}

func TestDocumentService_List(t *testing.T) {
	ctx := context.Background()
	empty := &repository.PageResult[model.Document]{Items: []model.Document{}, Total: 0}

	tests := []struct {
		name      string
		actor     model.Actor
		opts      ListOptions
		wantQuery repository.ListQuery
	}{
		{
			name:  "non-admin restricted to own documents",
			actor: owner,
			opts:  ListOptions{Scope: "active", Page: 1},
			wantQuery: repository.ListQuery{
				Scope: repository.ScopeActive, OwnerID: "user-1", Limit: 10, Offset: 0,
			},
		},
		{
			name:  "admin sees every owner",
			actor: admin,
			opts:  ListOptions{Scope: "trashed", Page: 2},
			wantQuery: repository.ListQuery{
				Scope: repository.ScopeTrashed, Limit: 10, Offset: 10,
			},
		},
		{
			name:  "junk scope normalizes to active",
			actor: owner,
			opts:  ListOptions{Scope: "banana", Page: 1},
			wantQuery: repository.ListQuery{
				Scope: repository.ScopeActive, OwnerID: "user-1", Limit: 10, Offset: 0,
			},
		},
		{
			name:  "page below one clamps",
			actor: owner,
			opts:  ListOptions{Scope: "all", Search: "report", Page: 0},
			wantQuery: repository.ListQuery{
				Scope: repository.ScopeAll, Search: "report", OwnerID: "user-1", Limit: 10, Offset: 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := newTestService(nil, mRepo, nil)

			mRepo.On("List", ctx, tt.wantQuery).Return(empty, nil)

			res, err := svc.List(ctx, tt.actor, tt.opts)

			require.NoError(t, err)
			assert.Equal(t, 10, res.PageSize)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_DownloadLinks(t *testing.T) {
	ctx := context.Background()
	doc := &model.Document{ID: "doc-1", OwnerID: "user-1", FilePath: "documents/doc-1/v1/report.pdf"}

	t.Run("issue returns a url with an embedded token", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(nil, mRepo, nil)

		mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).Return(doc, nil)

		url, err := svc.IssueDownloadLink(ctx, owner, "doc-1", 15*time.Minute)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "/documents/doc-1/download?token=doc-1."))
	})

	t.Run("issue denied for stranger", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(nil, mRepo, nil)

		mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).Return(doc, nil)

		_, err := svc.IssueDownloadLink(ctx, stranger, "doc-1", 15*time.Minute)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("download without token streams for owner", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(mStore, mRepo, nil)

		mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).Return(doc, nil)
		mStore.On("Get", ctx, doc.FilePath).
			Return(io.NopCloser(strings.NewReader("bytes")), storage.ObjectInfo{}, nil)

		rc, got, err := svc.Download(ctx, owner, "doc-1", "")
		require.NoError(t, err)
		defer rc.Close()
		assert.Equal(t, "doc-1", got.ID)

		content, _ := io.ReadAll(rc)
		assert.Equal(t, "bytes", string(content))
	})

	t.Run("valid token still requires authorization", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := newTestService(nil, mRepo, nil)

		mRepo.On("FindByID", ctx, "doc-1", repository.ScopeAll).Return(doc, nil)

		token, err := signedlink.NewSigner("link-secret").Issue("doc-1", time.Minute)
		require.NoError(t, err)

		_, _, err = svc.Download(ctx, stranger, "doc-1", token)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("token for another document rejected", func(t *testing.T) {
		svc := newTestService(nil, nil, nil)

		token, err := signedlink.NewSigner("link-secret").Issue("doc-2", time.Minute)
		require.NoError(t, err)

		_, _, err = svc.Download(ctx, owner, "doc-1", token)
		assert.ErrorIs(t, err, signedlink.ErrInvalid)
	})

	t.Run("expired token rejected before any lookup", func(t *testing.T) {
		svc := newTestService(nil, nil, nil)

		token, err := signedlink.NewSigner("link-secret").Issue("doc-1", 0)
		require.NoError(t, err)

		_, _, err = svc.Download(ctx, owner, "doc-1", token)
		assert.ErrorIs(t, err, signedlink.ErrExpired)
	})
}
