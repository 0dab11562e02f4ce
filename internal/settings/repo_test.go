package settings

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "gemini_api_key", "wordpress_url", "wordpress_token", "similar_top_k"}).
		AddRow(1, "key-1", "https://blog.test", "token-1", 5)
	mock.ExpectQuery("SELECT (.+) FROM settings WHERE id = 1").WillReturnRows(rows)

	repo := NewPostgresRepo(db)
	s, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key-1", s.GeminiAPIKey)
	assert.Equal(t, "https://blog.test", s.WordPressURL)
	assert.Equal(t, 5, s.SimilarTopK)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE settings").
		WithArgs("new-key", "https://new.test", "t", 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresRepo(db)
	err = repo.Update(context.Background(), &Settings{
		GeminiAPIKey:   "new-key",
		WordPressURL:   "https://new.test",
		WordPressToken: "t",
		SimilarTopK:    10,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
