package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store over the central PostgreSQL database.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const identityColumns = `
	i.id, i.email, i.name, i.organization, i.role, i.active,
	i.permissions, i.assigned_partitions, tm.partition_key,
	i.created_at, i.updated_at`

const identityFrom = `
	from identities i
	left join tenant_mappings tm on tm.email = i.email`

func (s *PGStore) CreateIdentity(ctx context.Context, identity *Identity, passwordHash string) error {
	perms, _ := json.Marshal(identity.Permissions)
	assigned, _ := json.Marshal(identity.AssignedPartitions)
	_, err := s.db.ExecContext(ctx, `
		insert into identities(id, email, name, organization, role, active, permissions, assigned_partitions, password_hash)
		values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		identity.ID, identity.Email, identity.Name, identity.Organization,
		string(identity.Role), identity.Active, perms, assigned, passwordHash,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *PGStore) FindIdentity(ctx context.Context, id string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select`+identityColumns+identityFrom+` where i.id=$1`, id)
	return scanIdentity(row)
}

func (s *PGStore) FindIdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select`+identityColumns+identityFrom+` where i.email=$1`, NormalizeEmail(email))
	return scanIdentity(row)
}

func (s *PGStore) CredentialByEmail(ctx context.Context, email string) (*Identity, string, error) {
	row := s.db.QueryRowContext(ctx,
		`select`+identityColumns+`, i.password_hash`+identityFrom+` where i.email=$1`, NormalizeEmail(email))

	identity := &Identity{}
	var (
		perms     []byte
		assigned  []byte
		partition sql.NullString
		hash      string
	)
	err := row.Scan(
		&identity.ID, &identity.Email, &identity.Name, &identity.Organization,
		&identity.Role, &identity.Active, &perms, &assigned, &partition,
		&identity.CreatedAt, &identity.UpdatedAt, &hash,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	finishIdentity(identity, perms, assigned, partition)
	return identity, hash, nil
}

func (s *PGStore) UpdatePassword(ctx context.Context, identityID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update identities set password_hash=$2, updated_at=now() where id=$1`,
		identityID, passwordHash)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *PGStore) SetRolePermissions(ctx context.Context, identityID string, role Role, permissions []string) error {
	perms, _ := json.Marshal(permissions)
	res, err := s.db.ExecContext(ctx,
		`update identities set role=$2, permissions=$3, updated_at=now() where id=$1`,
		identityID, string(role), perms)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *PGStore) SetActive(ctx context.Context, identityID string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`update identities set active=$2, updated_at=now() where id=$1`,
		identityID, active)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *PGStore) CreateResetToken(ctx context.Context, tok *ResetToken) error {
	_, err := s.db.ExecContext(ctx, `
		insert into password_reset_tokens(id, identity_id, token, expires_at, used, created_at)
		values($1,$2,$3,$4,$5,$6)`,
		tok.ID, tok.IdentityID, tok.Token, tok.ExpiresAt, tok.Used, tok.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *PGStore) FindResetToken(ctx context.Context, token string) (*ResetToken, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, identity_id, token, expires_at, used, created_at
		from password_reset_tokens where token=$1`, token)
	rec := &ResetToken{}
	err := row.Scan(&rec.ID, &rec.IdentityID, &rec.Token, &rec.ExpiresAt, &rec.Used, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PGStore) MarkResetTokenUsed(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx,
		`update password_reset_tokens set used=true where token=$1`, token)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// --- helpers ---

func scanIdentity(row *sql.Row) (*Identity, error) {
	identity := &Identity{}
	var (
		perms     []byte
		assigned  []byte
		partition sql.NullString
	)
	err := row.Scan(
		&identity.ID, &identity.Email, &identity.Name, &identity.Organization,
		&identity.Role, &identity.Active, &perms, &assigned, &partition,
		&identity.CreatedAt, &identity.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	finishIdentity(identity, perms, assigned, partition)
	return identity, nil
}

func finishIdentity(identity *Identity, perms, assigned []byte, partition sql.NullString) {
	_ = json.Unmarshal(perms, &identity.Permissions)
	_ = json.Unmarshal(assigned, &identity.AssignedPartitions)
	if partition.Valid {
		identity.HomePartition = partition.String
	}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
