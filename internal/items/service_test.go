package items

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewear/rewear-backend/pkg/config"
	"github.com/rewear/rewear-backend/pkg/db/dbtest"
	"github.com/rewear/rewear-backend/pkg/db/models"
	"github.com/rewear/rewear-backend/pkg/enums"
	pkgerrors "github.com/rewear/rewear-backend/pkg/errors"
	"github.com/rewear/rewear-backend/pkg/imaging"
	"github.com/rewear/rewear-backend/pkg/pagination"
	"github.com/rewear/rewear-backend/pkg/storage"
)

var testMedia = config.MediaConfig{
	PublicPrefix: "/uploads",
	MaxFileBytes: 1 << 20,
	MaxFiles:     2,
	ImageMaxSize: 64,
	ImageQuality: 80,
}

func pngUpload(t *testing.T, name string) ImageUpload {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 128, 96))))
	data := buf.Bytes()
	return ImageUpload{
		Filename: name,
		Size:     int64(len(data)),
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

func rawUpload(name, content string) ImageUpload {
	return ImageUpload{
		Filename: name,
		Size:     int64(len(content)),
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(content)), nil },
	}
}

func validInput(images ...ImageUpload) CreateItemInput {
	return CreateItemInput{
		Title:       " Wool scarf ",
		Description: "Warm",
		Category:    "accessories",
		Type:        "scarf",
		Size:        "one size",
		Condition:   "like new",
		Tags:        "winter, , wool ,",
		Images:      images,
	}
}

type fixture struct {
	svc  Service
	repo *Repository
	root string
}

func newFixture(t *testing.T, repo itemRepository) fixture {
	t.Helper()
	root := t.TempDir()
	disk, err := storage.NewDisk(root)
	require.NoError(t, err)
	sqlRepo := NewRepository(dbtest.Open(t).DB())
	if repo == nil {
		repo = sqlRepo
	}
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Processor: imaging.NewProcessor(testMedia),
		Store:     disk,
		Media:     testMedia,
	})
	require.NoError(t, err)
	return fixture{svc: svc, repo: sqlRepo, root: root}
}

func storedFiles(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCreateStoresProcessedImages(t *testing.T) {
	f := newFixture(t, nil)
	owner := uuid.New()

	dto, err := f.svc.Create(context.Background(), owner, validInput(pngUpload(t, "a.png")))
	require.NoError(t, err)
	assert.Equal(t, "Wool scarf", dto.Title)
	assert.Equal(t, []string{"winter", "wool"}, dto.Tags)
	assert.Equal(t, enums.ModerationStatusPending, dto.Status)
	assert.True(t, dto.Available)
	require.Len(t, dto.Images, 1)
	assert.True(t, strings.HasPrefix(dto.Images[0], "/uploads/"))
	assert.True(t, strings.HasSuffix(dto.Images[0], ".jpg"))

	files := storedFiles(t, f.root)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Base(dto.Images[0]), files[0])

	mine, err := f.svc.ListMine(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	listed, err := f.svc.List(context.Background(), pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, listed.Items, "pending items are not listed")
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	missing := validInput()
	missing.Title = "   "
	_, err := f.svc.Create(ctx, uuid.New(), missing)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(ctx, uuid.New(), validInput(pngUpload(t, "1"), pngUpload(t, "2"), pngUpload(t, "3")))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	big := pngUpload(t, "big.png")
	big.Size = testMedia.MaxFileBytes + 1
	_, err = f.svc.Create(ctx, uuid.New(), validInput(big))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(ctx, uuid.New(), validInput(pngUpload(t, "ok.png"), rawUpload("notes.txt", "plain text")))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, storedFiles(t, f.root), "earlier images are removed when a later one is rejected")
}

type failingCreateRepo struct {
	itemRepository
}

func (failingCreateRepo) Create(ctx context.Context, item *models.Item) error {
	return errors.New("insert failed")
}

func TestCreateRemovesImagesWhenInsertFails(t *testing.T) {
	f := newFixture(t, failingCreateRepo{})

	_, err := f.svc.Create(context.Background(), uuid.New(), validInput(pngUpload(t, "a.png")))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Empty(t, storedFiles(t, f.root))
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, uuid.New(), validInput())
	require.NoError(t, err)
	require.NoError(t, f.repo.UpdateStatus(ctx, created.ID, enums.ModerationStatusApproved))

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ModerationStatusApproved, got.Status)

	_, err = f.svc.Get(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	page, err := f.svc.List(ctx, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, created.ID, page.Items[0].ID)

	_, err = f.svc.List(ctx, pagination.Params{Cursor: "not*base64"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{}, ParseTags(""))
	assert.Equal(t, []string{"a", "b c"}, ParseTags(" a ,, b c , "))
}
