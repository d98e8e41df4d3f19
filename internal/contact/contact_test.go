package contact

import (
	"context"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(gormsqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&Submission{}))
	return db
}

func TestSubmit_StoresTrimmedPending(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	sub, err := svc.Submit(ctx, "  Ada ", " ada@example.com ", "  Hi there  ")
	require.NoError(t, err)
	assert.Equal(t, "Ada", sub.Name)
	assert.Equal(t, "ada@example.com", sub.Email)
	assert.Equal(t, "Hi there", sub.Message)
	assert.Equal(t, StatusPending, sub.Status)
	assert.NotZero(t, sub.ID)

	_, err = svc.Submit(ctx, "Bob", "bob@example.org", "second")
	require.NoError(t, err)

	list, err := svc.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Bob", list[0].Name)
}

func TestSubmit_Validation(t *testing.T) {
	svc := NewService(openTestDB(t))

	tests := []struct {
		name, email, message string
		want                 error
	}{
		{"", "a@b.co", "hi", ErrMissingFields},
		{"A", "   ", "hi", ErrMissingFields},
		{"A", "a@b.co", "  \n ", ErrMissingFields},
		{"A", "not-an-email", "hi", ErrInvalidEmail},
		{"A", "a@b", "hi", ErrInvalidEmail},
		{"A", "a b@c.io", "hi", ErrInvalidEmail},
		{"A", "a@b.co", strings.Repeat("x", MaxMessageLength+1), ErrTooLong},
	}
	for _, tt := range tests {
		_, err := svc.Submit(context.Background(), tt.name, tt.email, tt.message)
		assert.ErrorIs(t, err, tt.want, "input %q %q", tt.name, tt.email)
	}

	_, err := svc.Submit(context.Background(), "A", "a@b.co", strings.Repeat("é", MaxMessageLength))
	assert.NoError(t, err, "limit counts characters, not bytes")
}
