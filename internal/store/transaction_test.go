// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockProvider(t *testing.T) (*provider, sqlmock.Sqlmock) {
	db, mdb, err := sqlmock.New()
	require.NoError(t, err)
	gdb, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return &provider{gdb: gdb, db: db}, mdb
}

func TestTransactionOk(t *testing.T) {
	ctx := context.Background()

	p, mdb := newMockProvider(t)

	preCommitCalled := false
	finalizerCalled := false
	postCommitCalled := false

	mdb.ExpectBegin()
	mdb.ExpectExec("INSERT.*a_table").WillReturnResult(driver.ResultNoRows)
	mdb.ExpectExec("INSERT.*b_table").WillReturnResult(driver.ResultNoRows)
	mdb.ExpectCommit()

	err := p.Transaction(ctx, func(ctx context.Context, tx DBTX) error {
		err := tx.DB().Exec("INSERT INTO a_table (col1) VALUES ('abc');").Error
		require.NoError(t, err)
		tx.AddPreCommit(func(ctx context.Context, preCommitTX DBTX) error {
			preCommitCalled = true
			err := preCommitTX.DB().Exec("INSERT INTO b_table (col1) VALUES ('def');").Error
			require.Same(t, tx, preCommitTX)
			require.NoError(t, err)
			return nil
		})
		tx.AddFinalizer(func(ctx context.Context, err error) {
			require.Nil(t, err)
			finalizerCalled = true
		})
		tx.AddPostCommit(func(ctx context.Context) {
			postCommitCalled = true
		})
		return nil
	})
	require.NoError(t, err)

	require.True(t, preCommitCalled)
	require.True(t, finalizerCalled)
	require.True(t, postCommitCalled)

	require.NoError(t, mdb.ExpectationsWereMet())
}

func TestTransactionFnErrorRollsBack(t *testing.T) {
	ctx := context.Background()

	p, mdb := newMockProvider(t)

	finalizerCalled := false
	postCommitCalled := false

	mdb.ExpectBegin()
	mdb.ExpectRollback()

	err := p.Transaction(ctx, func(ctx context.Context, tx DBTX) error {
		tx.AddFinalizer(func(ctx context.Context, err error) {
			require.Error(t, err)
			finalizerCalled = true
		})
		tx.AddPostCommit(func(ctx context.Context) {
			postCommitCalled = true
		})
		return fmt.Errorf("pop")
	})
	require.Regexp(t, "pop", err)

	require.True(t, finalizerCalled)
	require.False(t, postCommitCalled)

	require.NoError(t, mdb.ExpectationsWereMet())
}

func TestTransactionPreCommitError(t *testing.T) {
	ctx := context.Background()

	p, mdb := newMockProvider(t)

	mdb.ExpectBegin()
	mdb.ExpectRollback()

	err := p.Transaction(ctx, func(ctx context.Context, tx DBTX) error {
		tx.AddPreCommit(func(ctx context.Context, preCommitTX DBTX) error {
			return fmt.Errorf("pre-commit pop")
		})
		return nil
	})
	require.Regexp(t, "pre-commit pop", err)

	require.NoError(t, mdb.ExpectationsWereMet())
}
