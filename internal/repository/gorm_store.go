package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"todoapp/internal/errors"
	"todoapp/internal/model"
)

const (
	usersTable           = "users"
	adminsTable          = "admins"
	taskCollectionsTable = "task_collections"

	// MySQL's utf8mb4 default collation is case-insensitive; usernames are not.
	mysqlTableOptions = "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin"
)

type credentialRow struct {
	Username     string `gorm:"primaryKey;size:191"`
	PasswordHash string `gorm:"not null;size:255"`
}

// taskCollectionRow stores a user's whole ordered collection as one JSON
// document, so a save is a single-row upsert.
type taskCollectionRow struct {
	Username string `gorm:"primaryKey;size:191"`
	Tasks    string `gorm:"type:longtext;not null"`
}

func (taskCollectionRow) TableName() string { return taskCollectionsTable }

// GormStore is the relational deployment. The DB should be opened with
// TranslateError so duplicate keys map to gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB
}

// Ensure GormStore implements Store
var _ Store = (*GormStore)(nil)

// NewGormStore migrates the schema and returns the store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	migrator := db
	if db.Dialector.Name() == "mysql" {
		migrator = db.Set("gorm:table_options", mysqlTableOptions)
	}
	if err := migrator.Table(usersTable).AutoMigrate(&credentialRow{}); err != nil {
		return nil, errors.Storage("migrate users", err)
	}
	if err := migrator.Table(adminsTable).AutoMigrate(&credentialRow{}); err != nil {
		return nil, errors.Storage("migrate admins", err)
	}
	if err := migrator.AutoMigrate(&taskCollectionRow{}); err != nil {
		return nil, errors.Storage("migrate task collections", err)
	}
	// tables created by an older schema keep their collation until altered
	for _, stmt := range binaryKeyStatements(db.Dialector.Name()) {
		if err := db.Exec(stmt).Error; err != nil {
			return nil, errors.Storage("set username collation", err)
		}
	}
	return &GormStore{db: db}, nil
}

// binaryKeyStatements pins every username key to a binary collation on
// MySQL. Other dialects compare case-sensitively already.
func binaryKeyStatements(dialect string) []string {
	if dialect != "mysql" {
		return nil
	}
	tables := []string{usersTable, adminsTable, taskCollectionsTable}
	stmts := make([]string, 0, len(tables))
	for _, table := range tables {
		stmts = append(stmts, fmt.Sprintf(
			"ALTER TABLE `%s` MODIFY `username` varchar(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL", table))
	}
	return stmts
}

func (s *GormStore) Users() CredentialRepository {
	return &gormCredentials{db: s.db, table: usersTable}
}

func (s *GormStore) Admins() CredentialRepository {
	return &gormCredentials{db: s.db, table: adminsTable}
}

func (s *GormStore) Tasks() TaskRepository {
	return &gormTasks{db: s.db}
}

func (s *GormStore) DeleteUser(ctx context.Context, username string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Table(usersTable).Where("username = ?", username).Delete(&credentialRow{})
		if res.Error != nil {
			return errors.Storage("delete user", res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.ErrUserNotFound
		}
		if err := tx.Where("username = ?", username).Delete(&taskCollectionRow{}).Error; err != nil {
			return errors.Storage("delete tasks", err)
		}
		return nil
	})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Storage("ping db", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Storage("ping db", err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormCredentials struct {
	db    *gorm.DB
	table string
}

func (r *gormCredentials) Create(ctx context.Context, user *model.User) error {
	row := credentialRow{Username: user.Username, PasswordHash: user.PasswordHash}
	err := r.db.WithContext(ctx).Table(r.table).Create(&row).Error
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.ErrUsernameTaken
	}
	if err != nil {
		return errors.Storage("create credential", err)
	}
	return nil
}

func (r *gormCredentials) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var row credentialRow
	err := r.db.WithContext(ctx).Table(r.table).Where("username = ?", username).Take(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Storage("read credential", err)
	}
	return &model.User{Username: row.Username, PasswordHash: row.PasswordHash}, nil
}

func (r *gormCredentials) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	res := r.db.WithContext(ctx).Table(r.table).
		Where("username = ?", username).
		Update("password_hash", passwordHash)
	if res.Error != nil {
		return errors.Storage("update credential", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

func (r *gormCredentials) List(ctx context.Context) ([]model.User, error) {
	var rows []credentialRow
	if err := r.db.WithContext(ctx).Table(r.table).Order("username").Find(&rows).Error; err != nil {
		return nil, errors.Storage("list credentials", err)
	}
	users := make([]model.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, model.User{Username: row.Username, PasswordHash: row.PasswordHash})
	}
	return users, nil
}

type gormTasks struct {
	db *gorm.DB
}

func (r *gormTasks) Load(ctx context.Context, username string) ([]model.Task, error) {
	var row taskCollectionRow
	err := r.db.WithContext(ctx).Where("username = ?", username).Take(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return []model.Task{}, nil
	}
	if err != nil {
		return nil, errors.Storage("read tasks", err)
	}
	var tasks []model.Task
	if err := json.Unmarshal([]byte(row.Tasks), &tasks); err != nil {
		return nil, errors.Storage("decode tasks", err)
	}
	return normalize(tasks), nil
}

func (r *gormTasks) Save(ctx context.Context, username string, tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	payload, err := json.Marshal(tasks)
	if err != nil {
		return errors.Storage("encode tasks", err)
	}
	row := taskCollectionRow{Username: username, Tasks: string(payload)}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"tasks"}),
	}).Create(&row).Error
	if err != nil {
		return errors.Storage("write tasks", err)
	}
	return nil
}
