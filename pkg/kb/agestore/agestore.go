// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package agestore provides access to the vector store age index.
package agestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/revdoc/janitor/pkg/kb/models"
)

// Store provides read and delete access to the vector store of the
// documentation pipeline. The vector_registry table records the creation
// timestamp of each vector table, and is the only table consulted during
// discovery.
type Store struct {
	db bun.IDB
}

// New creates a new [Store] on top of the given database connection.
func New(db bun.IDB) *Store {
	return &Store{db: db}
}

// CreatedAt returns the creation timestamp of the vector table backing the
// given resource id. The boolean result indicates whether the age index has a
// row for the resource at all; a missing row means the resource is not yet
// eligible for cleanup.
func (s *Store) CreatedAt(ctx context.Context, resourceID string) (time.Time, bool, error) {
	var item models.VectorTable
	err := s.db.NewSelect().
		Model(&item).
		Where("table_name = ?", resourceID).
		Scan(ctx)

	switch {
	case err == nil:
		return item.CreatedAt, true, nil
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, false, nil
	default:
		return time.Time{}, false, err
	}
}

// DropTable drops the vector table backing the given resource id and removes
// its row from the age index. Both operations are idempotent, so that
// re-delivered triggers can safely retry them.
func (s *Store) DropTable(ctx context.Context, resourceID string) error {
	_, err := s.db.NewDropTable().
		TableExpr("?", bun.Ident(resourceID)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = s.db.NewDelete().
		Model((*models.VectorTable)(nil)).
		Where("table_name = ?", resourceID).
		Exec(ctx)

	return err
}
