package iot

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"sensorium.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Locations() LocationStore       { return &locationStore{db: s.db} }
func (s *PGStore) Sensors() SensorStore           { return &sensorStore{db: s.db} }
func (s *PGStore) Measurements() MeasurementStore { return &measurementStore{db: s.db} }

// Location store -----------------------------------------------------------
type locationStore struct{ db *sql.DB }

func (s *locationStore) Create(ctx context.Context, loc *Location) error {
	if loc.ID == "" {
		loc.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into locations(id, name, description, owner) values($1,$2,$3,$4)`,
		loc.ID, loc.Name, loc.Description, loc.Owner,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *locationStore) Find(ctx context.Context, id string) (*Location, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, description, owner, created_at, updated_at from locations where id=$1`, id)
	return scanLocation(row)
}

func (s *locationStore) ListByOwner(ctx context.Context, owner string) ([]*Location, error) {
	return s.list(ctx,
		`select id, name, description, owner, created_at, updated_at from locations where owner=$1 order by created_at asc`,
		owner)
}

func (s *locationStore) ListAll(ctx context.Context) ([]*Location, error) {
	return s.list(ctx,
		`select id, name, description, owner, created_at, updated_at from locations order by created_at asc`)
}

func (s *locationStore) list(ctx context.Context, query string, args ...any) ([]*Location, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, loc)
	}
	return res, rows.Err()
}

func (s *locationStore) Update(ctx context.Context, loc *Location) error {
	res, err := s.db.ExecContext(ctx,
		`update locations set name=$2, description=$3, updated_at=now() where id=$1`,
		loc.ID, loc.Name, loc.Description,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *locationStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from locations where id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *locationStore) DeleteByOwner(ctx context.Context, owner string) (int, error) {
	res, err := s.db.ExecContext(ctx, `delete from locations where owner=$1`, owner)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*Location, error) {
	var loc Location
	if err := row.Scan(&loc.ID, &loc.Name, &loc.Description, &loc.Owner, &loc.CreatedAt, &loc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &loc, nil
}

// Sensor store -------------------------------------------------------------
type sensorStore struct{ db *sql.DB }

const sensorColumns = `id, name, type, location_id, owner, api_key, is_active, created_at, updated_at`

func (s *sensorStore) Create(ctx context.Context, sensor *Sensor) error {
	if sensor.ID == "" {
		sensor.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into sensors(id, name, type, location_id, owner, api_key, is_active) values($1,$2,$3,$4,$5,$6,$7)`,
		sensor.ID, sensor.Name, sensor.Type, nullable(sensor.LocationID), sensor.Owner, sensor.APIKey, sensor.IsActive,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *sensorStore) Find(ctx context.Context, id string) (*Sensor, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+sensorColumns+` from sensors where id=$1`, id)
	return scanSensor(row)
}

func (s *sensorStore) FindByAPIKey(ctx context.Context, apiKey string) (*Sensor, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+sensorColumns+` from sensors where api_key=$1`, apiKey)
	return scanSensor(row)
}

func (s *sensorStore) ListByOwner(ctx context.Context, owner string) ([]*Sensor, error) {
	return s.list(ctx,
		`select `+sensorColumns+` from sensors where owner=$1 order by created_at asc`, owner)
}

func (s *sensorStore) ListAll(ctx context.Context) ([]*Sensor, error) {
	return s.list(ctx, `select `+sensorColumns+` from sensors order by created_at asc`)
}

func (s *sensorStore) list(ctx context.Context, query string, args ...any) ([]*Sensor, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Sensor
	for rows.Next() {
		sensor, err := scanSensor(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, sensor)
	}
	return res, rows.Err()
}

func (s *sensorStore) Update(ctx context.Context, sensor *Sensor) error {
	res, err := s.db.ExecContext(ctx,
		`update sensors set name=$2, type=$3, location_id=$4, owner=$5, api_key=$6, is_active=$7, updated_at=now() where id=$1`,
		sensor.ID, sensor.Name, sensor.Type, nullable(sensor.LocationID), sensor.Owner, sensor.APIKey, sensor.IsActive,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *sensorStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from sensors where id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *sensorStore) DeleteByOwner(ctx context.Context, owner string) (int, error) {
	res, err := s.db.ExecContext(ctx, `delete from sensors where owner=$1`, owner)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

func (s *sensorStore) CountByLocation(ctx context.Context, locationID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from sensors where location_id=$1`, locationID).Scan(&count)
	return count, err
}

func scanSensor(row rowScanner) (*Sensor, error) {
	var (
		sensor     Sensor
		locationID sql.NullString
	)
	if err := row.Scan(&sensor.ID, &sensor.Name, &sensor.Type, &locationID, &sensor.Owner,
		&sensor.APIKey, &sensor.IsActive, &sensor.CreatedAt, &sensor.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sensor.LocationID = locationID.String
	return &sensor, nil
}

// Measurement store --------------------------------------------------------
type measurementStore struct{ db *sql.DB }

func (s *measurementStore) Create(ctx context.Context, m *Measurement) error {
	if m.ID == "" {
		m.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into measurements(id, sensor_id, value, unit, ts) values($1,$2,$3,$4,$5)`,
		m.ID, m.SensorID, m.Value, m.Unit, m.Timestamp,
	)
	return err
}

func (s *measurementStore) ListBySensor(ctx context.Context, sensorID string) ([]*Measurement, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, sensor_id, value, unit, ts from measurements where sensor_id=$1 order by ts desc`,
		sensorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Measurement
	for rows.Next() {
		var m Measurement
		if err := rows.Scan(&m.ID, &m.SensorID, &m.Value, &m.Unit, &m.Timestamp); err != nil {
			return nil, err
		}
		res = append(res, &m)
	}
	return res, rows.Err()
}

func (s *measurementStore) DeleteBySensor(ctx context.Context, sensorID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `delete from measurements where sensor_id=$1`, sensorID)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

// helpers ------------------------------------------------------------------

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
