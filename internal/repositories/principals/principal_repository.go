package principals

import (
	"context"
	"errors"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"peerprep/interview/internal/models"
)

var ErrPrincipalNotFound = errors.New("principal not found")

// Open connects to postgres when dsn is set and to a sqlite file otherwise,
// then migrates the principals table.
func Open(dsn, sqlitePath string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	var (
		db  *gorm.DB
		err error
	)
	if strings.TrimSpace(dsn) != "" {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		db, err = gorm.Open(sqlite.Open(sqlitePath), cfg)
	}
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.Principal{}); err != nil {
		return nil, err
	}
	return db, nil
}

type Repository struct {
	DB *gorm.DB
}

func (r *Repository) GetByPrincipalID(id string) (*models.Principal, error) {
	var p models.Principal
	err := r.DB.First(&p, "principal_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPrincipalNotFound
	}
	return &p, err
}

// Ensure returns the stored principal for id, creating it on first sight.
// Name and email are only written on creation.
func (r *Repository) Ensure(id, name, email string) (*models.Principal, error) {
	p := models.Principal{}
	err := r.DB.
		Where(models.Principal{PrincipalID: id}).
		Attrs(models.Principal{Name: name, Email: email}).
		FirstOrCreate(&p).Error
	if err != nil {
		// a concurrent first sight may have won the unique index
		if existing, getErr := r.GetByPrincipalID(id); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return &p, nil
}

// Profiles returns the stored profiles for ids, keyed by principal id.
func (r *Repository) Profiles(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	out := make(map[string]models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Principal
	if err := r.DB.WithContext(ctx).Where("principal_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].PrincipalID] = rows[i].Profile()
	}
	return out, nil
}
