package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// schemaVersion records which generation of the partition layout Provision
// writes. Bump when the fixed table set changes.
const schemaVersion = 1

var _ Provisioner = (*PGProvisioner)(nil)

// PGProvisioner initializes tenant partitions as PostgreSQL schemas. Every
// statement is guarded ("if not exists" / upsert) so re-running converges
// instead of failing or duplicating constraints.
type PGProvisioner struct {
	db *sql.DB
}

func NewPGProvisioner(db *sql.DB) *PGProvisioner {
	return &PGProvisioner{db: db}
}

// partitionTables is the fixed set of sub-collections every partition gets.
// Identifiers are interpolated, so the schema name must pass validKey first.
var partitionTables = []string{
	`create table if not exists %[1]s.users (
		id text primary key,
		email text not null,
		name text not null default '',
		role text not null default 'user',
		active boolean not null default true,
		created_at timestamptz not null default now()
	)`,
	`create unique index if not exists users_email_key on %[1]s.users (email)`,
	`create table if not exists %[1]s.chart_of_accounts (
		id text primary key,
		code text not null,
		name text not null,
		account_type text not null,
		parent_code text,
		created_at timestamptz not null default now()
	)`,
	`create unique index if not exists chart_of_accounts_code_key on %[1]s.chart_of_accounts (code)`,
	`create table if not exists %[1]s.journal_entries (
		id text primary key,
		entry_date date not null,
		account_code text not null,
		description text not null default '',
		debit bigint not null default 0,
		credit bigint not null default 0,
		created_at timestamptz not null default now()
	)`,
	`create index if not exists journal_entries_date_idx on %[1]s.journal_entries (entry_date)`,
	`create index if not exists journal_entries_account_idx on %[1]s.journal_entries (account_code)`,
	`create table if not exists %[1]s.email_templates (
		id text primary key,
		name text not null,
		subject text not null default '',
		body text not null default '',
		created_at timestamptz not null default now()
	)`,
	`create unique index if not exists email_templates_name_key on %[1]s.email_templates (name)`,
}

// Provision creates the partition schema, its fixed table set and uniqueness
// constraints, and upserts the one-row metadata record keyed on partition
// name. Concurrent initializers converge on the same record.
func (p *PGProvisioner) Provision(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`create schema if not exists %s`, key)); err != nil {
		return err
	}
	for _, ddl := range partitionTables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(ddl, key)); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		insert into tenant_partitions(name, schema_version, initialized_at)
		values ($1,$2,now())
		on conflict (name) do update set schema_version = excluded.schema_version`,
		key, schemaVersion,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// validKey rejects anything outside the derived-key alphabet before it is
// interpolated into DDL identifiers.
func validKey(key string) error {
	if !strings.HasPrefix(key, Namespace) || len(key) == len(Namespace) {
		return fmt.Errorf("%w: partition key %q lacks namespace prefix", ErrInvalidInput, key)
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
		default:
			return fmt.Errorf("%w: partition key %q contains invalid character", ErrInvalidInput, key)
		}
	}
	return nil
}

var _ MappingStore = (*PGMappingStore)(nil)

// PGMappingStore persists identity→partition mappings in the central store.
type PGMappingStore struct {
	db *sql.DB
}

func NewPGMappingStore(db *sql.DB) *PGMappingStore {
	return &PGMappingStore{db: db}
}

func (s *PGMappingStore) Upsert(ctx context.Context, email, partitionKey string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into tenant_mappings(email, partition_key, updated_at)
		values ($1,$2,now())
		on conflict (email) do update set partition_key = excluded.partition_key, updated_at = now()`,
		email, partitionKey,
	)
	return err
}

func (s *PGMappingStore) Find(ctx context.Context, email string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx,
		`select partition_key from tenant_mappings where email=$1`, email).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *PGMappingStore) ListPartitions(ctx context.Context, prefix string) ([]PartitionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		select name, schema_version, initialized_at
		from tenant_partitions
		where name like $1
		order by name`, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []PartitionInfo
	for rows.Next() {
		var info PartitionInfo
		if err := rows.Scan(&info.Name, &info.SchemaVersion, &info.InitializedAt); err != nil {
			return nil, err
		}
		res = append(res, info)
	}
	return res, rows.Err()
}
