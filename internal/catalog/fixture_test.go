package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/internal/testdb"
	"github.com/angelmondragon/catalog-backend/pkg/config"
	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/catalog-backend/pkg/db/types"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	failOn enums.OutboxEventType
}

func (n *recordingNotifier) Publish(_ context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("missing transaction")
	}
	if n.failOn != "" && event.Type == n.failOn {
		return errors.New("notifier unavailable")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

func (n *recordingNotifier) ofType(eventType enums.OutboxEventType) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Event
	for _, e := range n.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type stubPhotos struct{}

func (stubPhotos) Resolve(_ context.Context, id string) (*dbtypes.Photo, error) {
	if id == "missing" {
		return nil, pkgerrors.New(pkgerrors.CodeFailedDependency, "photo not found on cdn")
	}
	return &dbtypes.Photo{ID: id, URL: "https://cdn.test/" + id, Filename: id + ".jpg"}, nil
}

type stubPointOfSale struct {
	body json.RawMessage
	err  error
}

func (s stubPointOfSale) ActiveVariations(context.Context, string, string) (json.RawMessage, error) {
	return s.body, s.err
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	repo     *Repository
	svc      *service
	notifier *recordingNotifier
	actor    Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testdb.Open(t)
	repo := NewRepository(conn)
	notifier := &recordingNotifier{}
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	svc, err := NewService(repo, db.FromGorm(conn), notifier, stubPhotos{}, stubPointOfSale{body: json.RawMessage(`[]`)}, config.CatalogConfig{DaysNew: 30}, logg)
	require.NoError(t, err)
	return &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       conn,
		repo:     repo,
		svc:      svc.(*service),
		notifier: notifier,
		actor:    Actor{UserID: uuid.New(), Role: enums.RoleContentManager},
	}
}

func (f *fixture) brand(name string) uuid.UUID {
	f.t.Helper()
	row := models.Brand{ID: uuid.New(), Name: name}
	require.NoError(f.t, f.db.Create(&row).Error)
	return row.ID
}

func (f *fixture) category(name string, parent *uuid.UUID, level int) uuid.UUID {
	f.t.Helper()
	row := models.Category{ID: uuid.New(), Name: name, ParentID: parent, Level: level}
	require.NoError(f.t, f.db.Create(&row).Error)
	return row.ID
}

func (f *fixture) color(name string) uuid.UUID {
	f.t.Helper()
	row := models.Color{ID: uuid.New(), Name: name}
	require.NoError(f.t, f.db.Create(&row).Error)
	return row.ID
}

// feature creates a feature with one value per name and returns the value ids
// in the same order.
func (f *fixture) feature(name string, variation, multichoice bool, values ...string) (uuid.UUID, []uuid.UUID) {
	f.t.Helper()
	feature := models.Feature{ID: uuid.New(), Name: name, IsVariation: variation, IsMultichoice: multichoice, IsVisible: true}
	require.NoError(f.t, f.db.Create(&feature).Error)
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		row := models.FeatureValue{ID: uuid.New(), FeatureID: feature.ID, Value: v}
		require.NoError(f.t, f.db.Create(&row).Error)
		ids = append(ids, row.ID)
	}
	return feature.ID, ids
}

func (f *fixture) master(name string, visible bool, variation ...uuid.UUID) *MasterDetail {
	f.t.Helper()
	out, err := f.svc.CreateMaster(f.ctx, f.actor, CreateMasterInput{
		CommonName:          name,
		VariationFeatureIDs: variation,
		IsVisible:           visible,
	})
	require.NoError(f.t, err)
	return out
}

func (f *fixture) variant(masterID uuid.UUID, colorID *uuid.UUID, visible bool, features ...FeatureSelection) *VariantDetail {
	f.t.Helper()
	out, err := f.svc.CreateVariant(f.ctx, f.actor, CreateVariantInput{
		MasterID:  masterID,
		ColorID:   colorID,
		Features:  features,
		IsVisible: visible,
	})
	require.NoError(f.t, err)
	return out
}

func (f *fixture) product(id uuid.UUID) models.Product {
	f.t.Helper()
	var row models.Product
	require.NoError(f.t, f.db.First(&row, "id = ?", id).Error)
	return row
}

func (f *fixture) setOffers(id uuid.UUID, count int) {
	f.t.Helper()
	require.NoError(f.t, f.db.Model(&models.Product{}).Where("id = ?", id).Update("offers_count", count).Error)
}

func (f *fixture) freeze(now time.Time) {
	f.svc.now = func() time.Time { return now }
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, pkgerrors.CodeOf(err), "unexpected error: %v", err)
}

func ptr[T any](v T) *T {
	return &v
}
