package bootstrap

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/infrastructure/persistence"
	"github.com/clinicq/backend/pkg/auth"
	"github.com/clinicq/backend/pkg/constants"
	"github.com/clinicq/backend/pkg/utils"
)

// FixtureObject is one entry of a Django-style fixture file
type FixtureObject struct {
	Model  string                 `json:"model"`
	PK     json.Number            `json:"pk"`
	Fields map[string]interface{} `json:"fields"`
}

type fieldKind int

const (
	kindValue fieldKind = iota
	kindForeignKey
	kindTime
	kindPassword
	kindBool
	kindInt
	kindFloat
)

type fieldSpec struct {
	column string
	kind   fieldKind
}

type modelSpec struct {
	table  string
	order  int
	fields map[string]fieldSpec
	// ignored are fields Django dumps that have no column here
	ignored  map[string]bool
	defaults func() map[string]interface{}
}

var fixtureModels = map[string]modelSpec{
	"auth.user": {
		table: constants.TableUser,
		order: 0,
		fields: map[string]fieldSpec{
			"username":     {"username", kindValue},
			"email":        {"email", kindValue},
			"password":     {"password", kindPassword},
			"is_active":    {"is_active", kindBool},
			"is_superuser": {"is_superuser", kindBool},
			"date_joined":  {"date_joined", kindTime},
		},
		ignored: map[string]bool{
			"is_staff": true, "first_name": true, "last_name": true,
			"last_login": true, "groups": true, "user_permissions": true,
		},
		defaults: func() map[string]interface{} {
			return map[string]interface{}{"date_joined": time.Now().UTC(), "is_active": true, "email": ""}
		},
	},
	"api.clinic": {
		table: constants.TableClinic,
		order: 1,
		fields: map[string]fieldSpec{
			"name":      {"name", kindValue},
			"address":   {"address", kindValue},
			"city":      {"city", kindValue},
			"latitude":  {"latitude", kindFloat},
			"longitude": {"longitude", kindFloat},
		},
	},
	"api.doctor": {
		table: constants.TableDoctor,
		order: 2,
		fields: map[string]fieldSpec{
			"user":           {"user_id", kindForeignKey},
			"name":           {"name", kindValue},
			"specialization": {"specialization", kindValue},
			"clinic":         {"clinic_id", kindForeignKey},
			"role":           {"role", kindValue},
		},
	},
	"api.receptionist": {
		table: constants.TableReceptionist,
		order: 3,
		fields: map[string]fieldSpec{
			"user":   {"user_id", kindForeignKey},
			"clinic": {"clinic_id", kindForeignKey},
			"role":   {"role", kindValue},
		},
	},
	"api.patient": {
		table: constants.TablePatient,
		order: 4,
		fields: map[string]fieldSpec{
			"user":              {"user_id", kindForeignKey},
			"name":              {"name", kindValue},
			"age":               {"age", kindInt},
			"phone_number":      {"phone_number", kindValue},
			"is_phone_verified": {"is_phone_verified", kindBool},
			"otp":               {"otp", kindValue},
			"otp_expiry":        {"otp_expiry", kindTime},
		},
	},
}

// ParseFixture decodes a fixture document and checks every model and field
func ParseFixture(data []byte) ([]FixtureObject, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var objects []FixtureObject
	if err := dec.Decode(&objects); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	for i, obj := range objects {
		spec, ok := fixtureModels[strings.ToLower(obj.Model)]
		if !ok {
			return nil, fmt.Errorf("object %d: unknown model %q", i, obj.Model)
		}
		if _, err := obj.PK.Int64(); err != nil {
			return nil, fmt.Errorf("object %d (%s): pk must be an integer", i, obj.Model)
		}
		for name := range obj.Fields {
			if _, known := spec.fields[name]; !known && !spec.ignored[name] {
				return nil, fmt.Errorf("object %d (%s): unknown field %q", i, obj.Model, name)
			}
		}
	}
	return objects, nil
}

func columnValue(kind fieldKind, raw interface{}) (interface{}, error) {
	if raw == nil {
		return nil, nil
	}
	switch kind {
	case kindTime:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected a timestamp string, got %T", raw)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	case kindPassword:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", raw)
		}
		if auth.IsHashed(s) {
			return s, nil
		}
		return auth.HashPassword(s)
	case kindBool:
		return utils.ToBool(raw), nil
	case kindInt, kindForeignKey:
		return utils.ToInt64(raw)
	case kindFloat:
		return utils.ToFloat64(raw)
	}

	if n, ok := raw.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		return n.Float64()
	}
	switch raw.(type) {
	case string, bool:
		return raw, nil
	}
	return nil, fmt.Errorf("unsupported value %v (%T)", raw, raw)
}

// LoadResult summarises a loaddata run
type LoadResult struct {
	Objects  int
	Created  int
	Fixtures int
}

// Loader installs fixtures in one transaction
type Loader struct {
	rows   *persistence.FixtureRepository
	tx     *persistence.TransactionManager
	dirs   []string
	logger *zap.Logger
}

// NewLoader creates a Loader; dirs are searched for fixtures named without a path
func NewLoader(db *sql.DB, dirs []string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		rows:   persistence.NewFixtureRepository(db),
		tx:     persistence.NewTransactionManager(db),
		dirs:   dirs,
		logger: logger,
	}
}

// Resolve finds a fixture by path, then in each fixture directory
func (l *Loader) Resolve(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	if !filepath.IsAbs(name) {
		for _, dir := range l.dirs {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("no fixture named %q found", name)
}

// LoadFiles parses every named fixture and installs all of them atomically
func (l *Loader) LoadFiles(ctx context.Context, names ...string) (*LoadResult, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no fixture named")
	}

	var all []FixtureObject
	for _, name := range names {
		path, err := l.Resolve(name)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read fixture: %w", err)
		}
		objects, err := ParseFixture(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, objects...)
	}

	result, err := l.Load(ctx, all)
	if err != nil {
		return nil, err
	}
	result.Fixtures = len(names)
	l.logger.Info("[Fixtures] installed",
		zap.Int("objects", result.Objects), zap.Int("created", result.Created), zap.Int("fixtures", result.Fixtures))
	return result, nil
}

// Load upserts objects by primary key, parents before children, in one transaction
func (l *Loader) Load(ctx context.Context, objects []FixtureObject) (*LoadResult, error) {
	ordered := append([]FixtureObject(nil), objects...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return fixtureModels[strings.ToLower(ordered[i].Model)].order < fixtureModels[strings.ToLower(ordered[j].Model)].order
	})

	result := &LoadResult{}
	err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		for _, obj := range ordered {
			created, err := l.install(ctx, obj)
			if err != nil {
				return err
			}
			result.Objects++
			if created {
				result.Created++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loaddata rolled back: %w", err)
	}
	return result, nil
}

func (l *Loader) install(ctx context.Context, obj FixtureObject) (bool, error) {
	model := strings.ToLower(obj.Model)
	spec, ok := fixtureModels[model]
	if !ok {
		return false, fmt.Errorf("unknown model %q", obj.Model)
	}
	pk, err := obj.PK.Int64()
	if err != nil {
		return false, fmt.Errorf("%s: pk must be an integer", obj.Model)
	}

	values := map[string]interface{}{}
	if spec.defaults != nil {
		for k, v := range spec.defaults() {
			values[k] = v
		}
	}
	set := map[string]bool{}
	for name, raw := range obj.Fields {
		field, known := spec.fields[name]
		if !known {
			continue
		}
		v, err := columnValue(field.kind, raw)
		if err != nil {
			return false, fmt.Errorf("%s pk=%d field %s: %w", obj.Model, pk, name, err)
		}
		values[field.column] = v
		set[field.column] = true
	}

	// defaults only fill columns of new rows; an update touches the given fields
	exists, err := l.rows.Exists(ctx, spec.table, pk)
	if err != nil {
		return false, err
	}

	columns := make([]string, 0, len(values))
	for col := range values {
		if exists && !set[col] {
			continue
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		args[i] = values[col]
	}

	if exists {
		return false, l.rows.Update(ctx, spec.table, pk, columns, args)
	}
	return true, l.rows.Insert(ctx, spec.table, pk, columns, args)
}
