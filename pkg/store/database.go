package store

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"dario.cat/mergo"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type DBOptions struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Options  string

	MaxOpenConns int
	MaxIdleConns int

	CACert string
}

var defaultOptions = DBOptions{
	MaxOpenConns: 50,
	MaxIdleConns: 10,
}

// JSONWebKey is the persisted form of a managed key. The private
// material is stored as the key's JWK JSON serialization.
type JSONWebKey struct {
	KeyID     string `gorm:"primaryKey;size:64"`
	Use       string `gorm:"index;size:8"`
	Algorithm string `gorm:"size:16"`
	Material  []byte
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// DatabaseStore persists keys through gorm. MySQL is the production
// driver, sqlite is supported for local use and tests.
type DatabaseStore struct {
	db *gorm.DB
}

func GenerateDSN(options DBOptions) (string, error) {
	var dsn string

	if options.Driver == "mysql" {
		tls := ""
		if options.CACert != "" {
			tls = "&tls=custom"
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True%s", options.User, options.Password,
			options.Host, options.Port, options.Database, tls)
		if options.Options != "" {
			dsn += "&" + options.Options
		}
	} else if options.Driver == "sqlite" {
		dsn = options.Database
	} else {
		return "", fmt.Errorf("unsupported driver: %s", options.Driver)
	}

	return dsn, nil
}

func HandleCACert(driver string, cacert string) error {
	rootCertPool := x509.NewCertPool()
	pem, err := base64.StdEncoding.DecodeString(cacert)
	if err != nil {
		return err
	}
	if ok := rootCertPool.AppendCertsFromPEM(pem); !ok {
		return fmt.Errorf("failed to append PEM")
	}

	if driver == "mysql" {
		err := gomysql.RegisterTLSConfig("custom", &tls.Config{
			RootCAs: rootCertPool,
		})
		if err != nil {
			return errors.New("error registering tls config: " + err.Error())
		}
	}

	return nil
}

func isValidDriver(driver string) bool {
	return driver == "mysql" || driver == "sqlite"
}

// Connect opens the database, applies option defaults, runs migrations
// and returns a ready store.
func Connect(options DBOptions) (*DatabaseStore, error) {
	if !isValidDriver(options.Driver) {
		return nil, errors.New("invalid driver: " + options.Driver)
	}

	err := mergo.Merge(&options, defaultOptions)
	if err != nil {
		return nil, errors.New("failed to apply defaults: " + err.Error())
	}

	if options.CACert != "" {
		err := HandleCACert(options.Driver, options.CACert)
		if err != nil {
			return nil, err
		}
	}

	dsn, err := GenerateDSN(options)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	switch options.Driver {
	case "mysql":
		var conn *sql.DB
		conn, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, err
		}
		db, err = gorm.Open(mysql.New(mysql.Config{Conn: conn}), &gorm.Config{})
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(options.MaxOpenConns)
	sqlDB.SetMaxIdleConns(options.MaxIdleConns)
	sqlDB.SetConnMaxIdleTime(time.Minute * 5)

	if err := db.AutoMigrate(&JSONWebKey{}); err != nil {
		return nil, err
	}

	return &DatabaseStore{db: db}, nil
}

// NewDatabaseStore wraps an existing gorm connection.
func NewDatabaseStore(db *gorm.DB) (*DatabaseStore, error) {
	if err := db.AutoMigrate(&JSONWebKey{}); err != nil {
		return nil, err
	}
	return &DatabaseStore{db: db}, nil
}

func (s *DatabaseStore) Save(ctx context.Context, key *Key) error {
	material, err := json.Marshal(key.Material)
	if err != nil {
		return err
	}

	row := JSONWebKey{
		KeyID:     key.ID,
		Use:       key.Use,
		Algorithm: key.Algorithm,
		Material:  material,
		CreatedAt: key.CreatedAt,
		ExpiresAt: key.ExpiresAt,
		RevokedAt: key.RevokedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *DatabaseStore) Get(ctx context.Context, kid string) (*Key, error) {
	var row JSONWebKey
	err := s.db.WithContext(ctx).Where("key_id = ?", kid).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return rowToKey(&row)
}

func (s *DatabaseStore) Current(ctx context.Context, use string) (*Key, error) {
	var row JSONWebKey
	err := s.db.WithContext(ctx).
		Where("`use` = ? AND revoked_at IS NULL", use).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return rowToKey(&row)
}

func (s *DatabaseStore) Last(ctx context.Context, use string, n int) ([]*Key, error) {
	var rows []JSONWebKey
	q := s.db.WithContext(ctx).
		Where("`use` = ?", use).
		Order("created_at DESC")
	if n > 0 {
		q = q.Limit(n)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	keys := make([]*Key, 0, len(rows))
	for i := range rows {
		k, err := rowToKey(&rows[i])
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *DatabaseStore) Revoke(ctx context.Context, kid string) error {
	var row JSONWebKey
	err := s.db.WithContext(ctx).Where("key_id = ?", kid).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrKeyNotFound
	}
	if err != nil {
		return err
	}
	if row.RevokedAt != nil {
		return ErrKeyRevoked
	}

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(&row).Update("revoked_at", &now).Error
}

func (s *DatabaseStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&JSONWebKey{}).Error
}

func rowToKey(row *JSONWebKey) (*Key, error) {
	material, err := jwk.ParseKey(row.Material)
	if err != nil {
		return nil, fmt.Errorf("corrupt key material for %s: %w", row.KeyID, err)
	}

	return &Key{
		ID:        row.KeyID,
		Use:       row.Use,
		Algorithm: row.Algorithm,
		Material:  material,
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
		RevokedAt: row.RevokedAt,
	}, nil
}
