package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// documentRow is one document. Fields are stored as JSON with a type tag per
// value so timestamps and integers survive the round trip.
type documentRow struct {
	Path       string `gorm:"primaryKey;size:512"`
	Collection string `gorm:"size:512;not null;index"`
	Data       string `gorm:"type:text;not null"`
	Version    int64  `gorm:"not null"`
	CreateTime time.Time
	UpdateTime time.Time
}

func (documentRow) TableName() string { return "documents" }

// GormBackend keeps documents in a SQL database through gorm.
type GormBackend struct {
	db *gorm.DB
}

// OpenGorm connects to driver ("postgres" or "sqlite") and migrates the
// documents table.
func OpenGorm(driver, dsn string) (*GormBackend, error) {
	var dial gorm.Dialector
	switch driver {
	case "postgres":
		dial = postgres.Open(dsn)
	case "sqlite":
		dial = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("docstore: unknown driver %q", driver)
	}
	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate documents: %w", err)
	}
	log.Info().Str("module", "docstore").Str("driver", driver).Msg("database connected")
	return &GormBackend{db: db}, nil
}

func (g *GormBackend) Load(ctx context.Context, p Path) (Doc, bool, error) {
	var rows []documentRow
	if err := g.db.WithContext(ctx).Where("path = ?", string(p)).Limit(1).Find(&rows).Error; err != nil {
		return Doc{}, false, err
	}
	if len(rows) == 0 {
		return Doc{}, false, nil
	}
	d, err := rows[0].doc()
	return d, err == nil, err
}

func (g *GormBackend) List(ctx context.Context, collection Path) ([]Doc, error) {
	var rows []documentRow
	if err := g.db.WithContext(ctx).Where("collection = ?", string(collection)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Doc, 0, len(rows))
	for _, r := range rows {
		d, err := r.doc()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (g *GormBackend) Apply(ctx context.Context, batch []Mutation) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range batch {
			if m.Doc == nil {
				if err := tx.Where("path = ?", string(m.Path)).Delete(&documentRow{}).Error; err != nil {
					return err
				}
				continue
			}
			row, err := rowOf(*m.Doc)
			if err != nil {
				return err
			}
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "path"}},
				DoUpdates: clause.AssignmentColumns([]string{"collection", "data", "version", "create_time", "update_time"}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *GormBackend) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type encodedValue struct {
	K string     `json:"k"`
	S string     `json:"s,omitempty"`
	B bool       `json:"b,omitempty"`
	I int64      `json:"i,omitempty"`
	F float64    `json:"f,omitempty"`
	T *time.Time `json:"t,omitempty"`
	A []string   `json:"a,omitempty"`
}

func rowOf(d Doc) (documentRow, error) {
	enc := make(map[string]encodedValue, len(d.Fields))
	for k, v := range d.Fields {
		switch x := v.(type) {
		case nil:
			enc[k] = encodedValue{K: "n"}
		case string:
			enc[k] = encodedValue{K: "s", S: x}
		case bool:
			enc[k] = encodedValue{K: "b", B: x}
		case int64:
			enc[k] = encodedValue{K: "i", I: x}
		case float64:
			enc[k] = encodedValue{K: "f", F: x}
		case time.Time:
			enc[k] = encodedValue{K: "t", T: &x}
		case []string:
			enc[k] = encodedValue{K: "a", A: x}
		default:
			return documentRow{}, fmt.Errorf("docstore: cannot encode %T in field %q", v, k)
		}
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return documentRow{}, err
	}
	return documentRow{
		Path:       string(d.Path),
		Collection: string(d.Path.Parent()),
		Data:       string(data),
		Version:    d.Version,
		CreateTime: d.CreateTime,
		UpdateTime: d.UpdateTime,
	}, nil
}

func (r documentRow) doc() (Doc, error) {
	var enc map[string]encodedValue
	if err := json.Unmarshal([]byte(r.Data), &enc); err != nil {
		return Doc{}, fmt.Errorf("docstore: corrupt document %s: %w", r.Path, err)
	}
	fields := make(Fields, len(enc))
	for k, v := range enc {
		switch v.K {
		case "s":
			fields[k] = v.S
		case "b":
			fields[k] = v.B
		case "i":
			fields[k] = v.I
		case "f":
			fields[k] = v.F
		case "t":
			if v.T != nil {
				fields[k] = v.T.UTC()
			}
		case "a":
			if v.A == nil {
				v.A = []string{}
			}
			fields[k] = v.A
		default:
			fields[k] = nil
		}
	}
	return Doc{
		Path:       Path(r.Path),
		Fields:     fields,
		Version:    r.Version,
		CreateTime: r.CreateTime.UTC(),
		UpdateTime: r.UpdateTime.UTC(),
	}, nil
}
